package cache

import (
	"sync"
	"time"
)

type InMemory[K comparable, V any] struct {
	storage map[K]V
	lastSet map[K]time.Time

	mx sync.RWMutex
}

func NewInMemory[K comparable, V any]() *InMemory[K, V] {
	return &InMemory[K, V]{
		storage: make(map[K]V, 100),
		lastSet: make(map[K]time.Time, 100),

		mx: sync.RWMutex{},
	}
}

func (c *InMemory[K, V]) Get(key K) (V, bool) {
	c.mx.RLock()
	defer c.mx.RUnlock()

	v, ok := c.storage[key]
	return v, ok
}

func (c *InMemory[K, V]) Set(key K, value V, ttl time.Duration) {
	c.mx.Lock()
	defer c.mx.Unlock()
	c.storage[key] = value
	c.lastSet[key] = time.Now()

	go func() {
		time.Sleep(ttl + time.Minute) // add extra minute
		c.mx.Lock()
		defer c.mx.Unlock()
		if _, ok := c.storage[key]; !ok {
			return
		}
		if time.Since(c.lastSet[key]) > ttl {
			delete(c.storage, key)
			delete(c.lastSet, key)
		}
	}()
}
