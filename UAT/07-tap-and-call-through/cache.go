package cache

import "strings"

// Loader fetches values that the cache does not hold.
type Loader struct {
	Load func(key string) (string, error)
}

// NewLoader returns a loader computing values from their keys.
func NewLoader() *Loader {
	return &Loader{
		Load: func(key string) (string, error) { return strings.ToUpper(key), nil },
	}
}

// Cache memoizes a Loader.
type Cache struct {
	loader *Loader
	values map[string]string
}

// New returns an empty cache over loader.
func New(loader *Loader) *Cache {
	return &Cache{loader: loader, values: make(map[string]string)}
}

// Get returns the value for key, loading it on first use.
func (c *Cache) Get(key string) (string, error) {
	if value, ok := c.values[key]; ok {
		return value, nil
	}

	value, err := c.loader.Load(key)
	if err != nil {
		return "", err
	}

	c.values[key] = value

	return value, nil
}
