// cache.go — LRU-кэш публичных ключей с TTL.
// Обёртка над hashicorp/golang-lru/v2/expirable. Кэшируются только
// публичные ключи: приватные всегда читаются из БД.
package kms

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus-метрики кэша.
var (
	keyCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sv_key_cache_hits_total",
		Help: "Общее количество попаданий в LRU-кэш публичных ключей.",
	})
	keyCacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sv_key_cache_misses_total",
		Help: "Общее количество промахов LRU-кэша публичных ключей.",
	})
)

// publicKeyCache — LRU-кэш публичных ключей (owner_username → PEM).
type publicKeyCache struct {
	cache *expirable.LRU[string, string]
}

// newPublicKeyCache создаёт кэш указанного размера и TTL.
func newPublicKeyCache(maxSize int, ttl time.Duration) *publicKeyCache {
	return &publicKeyCache{
		cache: expirable.NewLRU[string, string](maxSize, nil, ttl),
	}
}

// get возвращает публичный ключ из кэша. Обновляет метрики hit/miss.
func (c *publicKeyCache) get(ownerUsername string) (string, bool) {
	val, ok := c.cache.Get(ownerUsername)
	if ok {
		keyCacheHitsTotal.Inc()
		return val, true
	}
	keyCacheMissesTotal.Inc()
	return "", false
}

// set добавляет публичный ключ в кэш.
func (c *publicKeyCache) set(ownerUsername, publicPEM string) {
	c.cache.Add(ownerUsername, publicPEM)
}
