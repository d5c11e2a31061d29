package repositories

import (
	"context"
	"crypto/md5"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"graphorm/src/graph"
	"graphorm/src/infra/metrics"
	"graphorm/src/write"
)

// QueryCache is the subset of the redis client the cached session needs.
type QueryCache interface {
	GetKey(ctx context.Context, key string) (string, bool, error)
	SetWithRegistry(ctx context.Context, cacheKey string, cacheValue string, registryKeys []string) error
	InvalidateRegistries(ctx context.Context, registryKeys []string) error
	Generations(ctx context.Context, keys []string) ([]int64, error)
	BumpGenerations(ctx context.Context, keys []string) error
}

// CachedGraphSession decora uma graph.Session com cache de traversals.
// A chave inclui a geração de cada label lida; um commit incrementa a geração
// das labels tocadas, então um set atrasado de uma leitura anterior ao commit
// cai numa chave que ninguém mais consulta. Os registries só liberam memória.
type CachedGraphSession struct {
	session graph.Session
	cache   QueryCache
}

func NewCachedGraphSession(session graph.Session, cache QueryCache) *CachedGraphSession {
	return &CachedGraphSession{session: session, cache: cache}
}

func (r *CachedGraphSession) RunQuery(ctx context.Context, spec graph.TraversalSpec) ([]graph.Row, error) {
	labels := spec.Labels()
	generations, err := r.cache.Generations(ctx, generationKeys(labels))
	if err != nil {
		// sem geração não há como saber se a entrada é atual: vai direto ao store
		metrics.CacheLookupsTotal.WithLabelValues("error").Inc()
		log.Printf("Cache generations unavailable for %v: %v", labels, err)
		return r.session.RunQuery(ctx, spec)
	}

	cacheKey, err := r.generateCacheKey(spec, generations)
	if err != nil {
		return nil, err
	}

	rows, found, err := r.getFromCache(ctx, cacheKey)
	if found && err == nil {
		metrics.CacheLookupsTotal.WithLabelValues("hit").Inc()
		return rows, nil
	}

	if err != nil {
		// Log erro de cache mas continua com o store
		metrics.CacheLookupsTotal.WithLabelValues("error").Inc()
		log.Printf("Cache error for key %s: %v", cacheKey, err)
	} else {
		metrics.CacheLookupsTotal.WithLabelValues("miss").Inc()
	}

	rows, err = r.session.RunQuery(ctx, spec)
	if err != nil {
		return nil, err
	}

	go func() {
		// Timeout de 30 segundos para operação de cache
		ctxWithTimeout, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		r.setInCache(ctxWithTimeout, cacheKey, rows, registryKeys(labels))
	}()

	return rows, nil
}

// Begin não passa pelo cache; a invalidação acontece em AfterCommit.
func (r *CachedGraphSession) Begin(ctx context.Context) (graph.Tx, error) {
	return r.session.Begin(ctx)
}

// AfterCommit avança a geração de toda label tocada pela escrita e depois
// apaga as entradas registradas. Roda no caminho do commit para que uma
// leitura logo após a escrita não encontre a entrada antiga.
func (r *CachedGraphSession) AfterCommit(ctx context.Context, result write.Result) {
	ctx = context.WithoutCancel(ctx)
	labels := result.Labels()

	if err := r.cache.BumpGenerations(ctx, generationKeys(labels)); err != nil {
		log.Printf("Failed to bump cache generations for %v: %v", labels, err)
	}
	keys := registryKeys(labels)
	if err := r.cache.InvalidateRegistries(ctx, keys); err != nil {
		log.Printf("Failed to invalidate cache for %v: %v", keys, err)
	}
}

func (r *CachedGraphSession) generateCacheKey(spec graph.TraversalSpec, generations []int64) (string, error) {
	keyData, err := json.Marshal(struct {
		Spec        graph.TraversalSpec `json:"spec"`
		Generations []int64             `json:"generations"`
	}{spec, generations})
	if err != nil {
		return "", fmt.Errorf("CachedGraphSession - failed to encode traversal: %w", err)
	}

	// Hash para chave mais limpa e consistente
	hash := md5.Sum(keyData)
	return fmt.Sprintf("graph:traversal:%x", hash), nil
}

func (r *CachedGraphSession) getFromCache(ctx context.Context, cacheKey string) ([]graph.Row, bool, error) {
	cachedJSON, found, err := r.cache.GetKey(ctx, cacheKey)
	if !found || err != nil {
		return nil, found, err
	}

	var rows []graph.Row
	if err := json.Unmarshal([]byte(cachedJSON), &rows); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal cached data: %w", err)
	}

	return rows, true, nil
}

func (r *CachedGraphSession) setInCache(ctx context.Context, cacheKey string, rows []graph.Row, registry []string) {
	if rows == nil {
		rows = []graph.Row{}
	}

	dataJSON, err := json.Marshal(rows)
	if err != nil {
		log.Printf("Failed to marshal cache data for key %s: %v", cacheKey, err)
		return
	}

	if err := r.cache.SetWithRegistry(ctx, cacheKey, string(dataJSON), registry); err != nil {
		log.Printf("Failed to set cache with registry for key %s: %v", cacheKey, err)
		return
	}
}

func generationKeys(labels []string) []string {
	keys := make([]string, len(labels))
	for i, label := range labels {
		keys[i] = fmt.Sprintf("generation:label:%s", label)
	}
	return keys
}

func registryKeys(labels []string) []string {
	keys := make([]string, len(labels))
	for i, label := range labels {
		keys[i] = fmt.Sprintf("registry:label:%s", label)
	}
	return keys
}
