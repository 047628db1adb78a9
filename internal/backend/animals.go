package backend

import (
	"context"
	"net/http"
	"net/url"

	"github.com/patrickmn/go-cache"

	"github.com/tphakala/zoolog/internal/errors"
	"github.com/tphakala/zoolog/internal/logger"
	"github.com/tphakala/zoolog/internal/observability/metrics"
)

const (
	cacheName      = "animals"
	animalsListKey = "animals:list"
	animalKeyFmt   = "animal:"
)

// ListAnimals returns all animals visible to the logged in account
func (c *Client) ListAnimals(ctx context.Context) ([]Animal, error) {
	if cached, found := c.cache.Get(animalsListKey); found {
		if animals, ok := cached.([]Animal); ok {
			c.metrics.RecordCache(cacheName, true)
			c.log.Debug("animal list cache hit", logger.Int("count", len(animals)))
			return animals, nil
		}
	}
	c.metrics.RecordCache(cacheName, false)

	var animals []Animal
	if err := c.doJSON(ctx, metrics.OpListAnimals, http.MethodGet, pathAnimals, nil, &animals); err != nil {
		return nil, err
	}

	c.cache.Set(animalsListKey, animals, cache.DefaultExpiration)
	for i := range animals {
		a := animals[i]
		c.cache.Set(animalKeyFmt+a.ID, &a, cache.DefaultExpiration)
	}
	return animals, nil
}

// GetAnimal returns one animal by ID
func (c *Client) GetAnimal(ctx context.Context, id string) (*Animal, error) {
	if id == "" {
		return nil, errors.ValidationError("animal id is required")
	}
	if cached, found := c.cache.Get(animalKeyFmt + id); found {
		if a, ok := cached.(*Animal); ok {
			c.metrics.RecordCache(cacheName, true)
			return a, nil
		}
	}
	c.metrics.RecordCache(cacheName, false)

	var a Animal
	if err := c.doJSON(ctx, metrics.OpGetAnimal, http.MethodGet, pathAnimals+url.PathEscape(id), nil, &a); err != nil {
		return nil, err
	}
	c.cache.Set(animalKeyFmt+id, &a, cache.DefaultExpiration)
	return &a, nil
}
