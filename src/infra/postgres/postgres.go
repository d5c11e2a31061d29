package postgres

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"graphorm/src/domain"
)

//go:embed schema.sql
var schemaDDL string

const (
	connIdleTime     = 5 * time.Minute
	connLifetime     = 30 * time.Minute
	poolHealthPeriod = time.Minute
)

// NewPostgresClient abre um pool sem conectar; a primeira falha de rede
// aparece no Ping do start ou na primeira query.
func NewPostgresClient(host string, port string, dbname string, username string, password string, maxConnections int) (*pgxpool.Pool, error) {
	dsn := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(username, password),
		Host:     net.JoinHostPort(host, port),
		Path:     "/" + dbname,
		RawQuery: "sslmode=disable",
	}

	config, err := pgxpool.ParseConfig(dsn.String())
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config for %s: %w", dsn.Redacted(), err)
	}

	config.MaxConns = int32(max(maxConnections, 1)) //nolint:gosec
	config.MinConns = 1
	config.MaxConnIdleTime = connIdleTime
	config.MaxConnLifetime = connLifetime
	config.HealthCheckPeriod = poolHealthPeriod

	// uma escrita aninhada ociosa segura locks das arestas; derruba em 60s
	config.ConnConfig.RuntimeParams = map[string]string{
		"timezone":                            "UTC",
		"statement_timeout":                   "30s",
		"lock_timeout":                        "10s",
		"idle_in_transaction_session_timeout": "60s",
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		return nil, fmt.Errorf("postgres: open pool %s: %w", dsn.Redacted(), err)
	}
	return pool, nil
}

// EnsureSchema creates the entities/edges tables when missing.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schemaDDL); err != nil {
		return fmt.Errorf("failed to apply graph schema: %w", err)
	}
	return nil
}

func IsUniqueViolation(err error) bool {
	return hasCode(err, pgerrcodeUniqueViolation)
}

func IsForeignKeyViolation(err error) bool {
	return hasCode(err, pgerrcodeForeignKeyViolation)
}

func IsSerializationFailure(err error) bool {
	return hasCode(err, pgerrcodeSerializationFailure, pgerrcodeDeadlockDetected)
}

// IsUnavailable reports transport failures: connect errors, timeouts, closed pools.
func IsUnavailable(err error) bool {
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) || pgconn.Timeout(err) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return false
}

const (
	pgerrcodeUniqueViolation      = "23505"
	pgerrcodeForeignKeyViolation  = "23503"
	pgerrcodeSerializationFailure = "40001"
	pgerrcodeDeadlockDetected     = "40P01"
)

func hasCode(err error, codes ...string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		for _, code := range codes {
			if pgErr.Code == code {
				return true
			}
		}
	}
	return false
}

// attribute maps driver errors onto the error taxonomy when the cause is known.
func attribute(err error) error {
	switch {
	case err == nil:
		return nil
	case IsSerializationFailure(err), IsUniqueViolation(err):
		return fmt.Errorf("%w: %w", domain.ErrWriteConflict, err)
	case IsForeignKeyViolation(err):
		return fmt.Errorf("%w: %w", domain.ErrEntityNotFound, err)
	case IsUnavailable(err):
		return fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}
	return err
}

// Ela constrói um payload JSON para ser usado com o operador @> do PostgreSQL.
// Gera algo como {"document": {"value": "123.456.789-00"}}
// Essa estrutura é important para usarmos o index GIN em consultas JSONB.
func BuildSearchJSON(path string, value interface{}) (string, error) {
	keys := strings.Split(path, ".")
	jsonMap := map[string]interface{}{keys[len(keys)-1]: value}

	for i := len(keys) - 2; i >= 0; i-- {
		jsonMap = map[string]interface{}{keys[i]: jsonMap}
	}

	bytes, err := json.Marshal(jsonMap)

	if err != nil {
		return "", err
	}

	return string(bytes), nil
}
