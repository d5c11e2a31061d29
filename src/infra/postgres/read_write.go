package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ReadWriteClient routes traversals to the read replica and nested writes to
// the primary. With a single host both sides share one pool.
type ReadWriteClient struct {
	readPool  *pgxpool.Pool
	writePool *pgxpool.Pool
}

func NewReadWriteClient(
	readHost string,
	writeHost string,
	readPort string,
	writePort string,
	dbname string,
	username string,
	password string,
	maxConnections int,
) (*ReadWriteClient, error) {
	writePool, err := NewPostgresClient(writeHost, writePort, dbname, username, password, maxConnections)
	if err != nil {
		return nil, err
	}

	if readHost == writeHost && readPort == writePort {
		return &ReadWriteClient{readPool: writePool, writePool: writePool}, nil
	}

	readPool, err := NewPostgresClient(readHost, readPort, dbname, username, password, maxConnections)
	if err != nil {
		writePool.Close()
		return nil, err
	}

	return &ReadWriteClient{readPool: readPool, writePool: writePool}, nil
}

func (rwc *ReadWriteClient) GetReadPool() *pgxpool.Pool {
	return rwc.readPool
}

func (rwc *ReadWriteClient) GetWritePool() *pgxpool.Pool {
	return rwc.writePool
}

// Ping checks both sides; a replica outage is reported even if the primary is up.
func (rwc *ReadWriteClient) Ping(ctx context.Context) error {
	err := rwc.writePool.Ping(ctx)
	if rwc.readPool != rwc.writePool {
		err = errors.Join(err, rwc.readPool.Ping(ctx))
	}
	if err != nil {
		return attribute(err)
	}
	return nil
}

func (rwc *ReadWriteClient) Close() {
	rwc.writePool.Close()
	if rwc.readPool != rwc.writePool {
		rwc.readPool.Close()
	}
}
