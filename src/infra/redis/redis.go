package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClient guarda traversals serializadas. Cada entrada pode ser
// registrada em sets de registry; apagar o registry apaga as entradas.
type RedisClient struct {
	client redis.UniversalClient
	ttl    time.Duration
	prefix string
}

// NewRedisClient usa cluster quando addrs lista mais de um host.
func NewRedisClient(addrs string, poolSize int, ttl time.Duration) *RedisClient {
	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:        strings.Split(addrs, ","),
		PoolSize:     poolSize,
		MinIdleConns: max(poolSize/10, 1),
		MaxRedirects: 3,

		// cache lento é pior que cache ausente
		DialTimeout:  2 * time.Second,
		ReadTimeout:  300 * time.Millisecond,
		WriteTimeout: 300 * time.Millisecond,

		MaxRetries:      2,
		MinRetryBackoff: 20 * time.Millisecond,
		MaxRetryBackoff: 200 * time.Millisecond,
	})

	return NewRedisClientFrom(client, ttl)
}

func NewRedisClientFrom(client redis.UniversalClient, ttl time.Duration) *RedisClient {
	return &RedisClient{client: client, ttl: ttl}
}

// WithPrefix devolve uma cópia que isola todas as chaves sob prefix.
func (rc *RedisClient) WithPrefix(prefix string) *RedisClient {
	clone := *rc
	clone.prefix = prefix
	return &clone
}

func (rc *RedisClient) key(key string) string {
	return rc.prefix + key
}

func (rc *RedisClient) SetKey(ctx context.Context, key string, value string) error {
	return rc.client.Set(ctx, rc.key(key), value, rc.ttl).Err()
}

// SetWithRegistry grava o valor e o adiciona a cada registry. Os registries
// expiram junto com a entrada mais nova.
func (rc *RedisClient) SetWithRegistry(ctx context.Context, cacheKey string, cacheValue string, registryKeys []string) error {
	_, err := rc.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, rc.key(cacheKey), cacheValue, rc.ttl)
		for _, registryKey := range registryKeys {
			pipe.SAdd(ctx, rc.key(registryKey), cacheKey)
			pipe.Expire(ctx, rc.key(registryKey), rc.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis: set %s: %w", cacheKey, err)
	}
	return nil
}

func (rc *RedisClient) GetKey(ctx context.Context, key string) (string, bool, error) {
	value, err := rc.client.Get(ctx, rc.key(key)).Result()
	switch {
	case errors.Is(err, redis.Nil):
		return "", false, nil
	case err != nil:
		return "", false, err
	}
	return value, true, nil
}

// Delete apaga as chaves uma a uma dentro do pipeline: em cluster elas caem
// em slots diferentes e um DEL com várias chaves seria recusado.
func (rc *RedisClient) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	cmds, err := rc.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, key := range keys {
			pipe.Del(ctx, rc.key(key))
		}
		return nil
	})
	if err == nil {
		return nil
	}

	var failed []error
	for i, cmd := range cmds {
		if cmd.Err() != nil {
			failed = append(failed, fmt.Errorf("%s: %w", keys[i], cmd.Err()))
		}
	}
	return fmt.Errorf("redis: delete: %w", errors.Join(append(failed, err)...))
}

// InvalidateRegistries apaga as entradas registradas e os próprios registries.
func (rc *RedisClient) InvalidateRegistries(ctx context.Context, registryKeys []string) error {
	keys := make([]string, 0, len(registryKeys))
	for _, registryKey := range registryKeys {
		members, err := rc.client.SMembers(ctx, rc.key(registryKey)).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("redis: registry %s: %w", registryKey, err)
		}
		keys = append(keys, members...)
		keys = append(keys, registryKey)
	}
	return rc.Delete(ctx, keys...)
}

// Generations lê o contador de cada chave; chave ausente vale zero.
// Os contadores não expiram: expirar um deles reabriria chaves antigas.
func (rc *RedisClient) Generations(ctx context.Context, keys []string) ([]int64, error) {
	cmds, err := rc.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, key := range keys {
			pipe.Get(ctx, rc.key(key))
		}
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis: generations: %w", err)
	}

	generations := make([]int64, len(keys))
	for i, cmd := range cmds {
		n, err := cmd.(*redis.StringCmd).Int64()
		switch {
		case errors.Is(err, redis.Nil):
			continue
		case err != nil:
			return nil, fmt.Errorf("redis: generation %s: %w", keys[i], err)
		}
		generations[i] = n
	}
	return generations, nil
}

func (rc *RedisClient) BumpGenerations(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	_, err := rc.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, key := range keys {
			pipe.Incr(ctx, rc.key(key))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis: bump generations: %w", err)
	}
	return nil
}

// FlushByPrefix remove tudo sob o prefixo atual. Só para testes.
func (rc *RedisClient) FlushByPrefix(ctx context.Context) error {
	if rc.prefix == "" {
		return errors.New("redis: refusing to flush without prefix")
	}

	iter := rc.client.Scan(ctx, 0, rc.prefix+"*", 500).Iterator()
	for iter.Next(ctx) {
		if err := rc.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

func (rc *RedisClient) HealthCheck(ctx context.Context) error {
	return rc.client.Ping(ctx).Err()
}

func (rc *RedisClient) Close() error {
	return rc.client.Close()
}
