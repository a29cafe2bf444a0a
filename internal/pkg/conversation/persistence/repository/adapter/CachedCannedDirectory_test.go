package adapter

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	cache "go-deskline/internal/infrastructure/cache/port"
	"go-deskline/internal/pkg/conversation/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCache struct {
	mu     sync.Mutex
	values map[string]string
	getErr error
	setErr error
	sets   int
}

func newFakeCache() *fakeCache {
	return &fakeCache{values: make(map[string]string)}
}

func (c *fakeCache) Get(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return "", c.getErr
	}
	v, ok := c.values[key]
	if !ok {
		return "", cache.ErrMiss
	}
	return v, nil
}

func (c *fakeCache) Set(_ context.Context, key string, value string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.setErr != nil {
		return c.setErr
	}
	c.sets++
	c.values[key] = value
	return nil
}

func (c *fakeCache) Del(_ context.Context, keys ...string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := c.values[k]; ok {
			delete(c.values, k)
			n++
		}
	}
	return n, nil
}

func (c *fakeCache) Ping(context.Context) error { return nil }
func (c *fakeCache) Close() error               { return nil }

type countingDirectory struct {
	responses []domain.CannedResponse
	err       error
	calls     int
}

func (d *countingDirectory) Responses(context.Context) ([]domain.CannedResponse, error) {
	d.calls++
	if d.err != nil {
		return nil, d.err
	}
	return d.responses, nil
}

var cannedFixture = []domain.CannedResponse{
	{Shortcut: "welcome", Category: "greetings", Content: "Welcome! How can I help?"},
	{Shortcut: "wrap", Category: "closings", Content: "Anything else?"},
}

func TestCachedDirectoryServesSecondReadFromCache(t *testing.T) {
	inner := &countingDirectory{responses: cannedFixture}
	c := newFakeCache()
	dir := NewCachedCannedDirectory(inner, c, time.Minute)

	first, err := dir.Responses(context.Background())
	require.NoError(t, err)
	assert.Equal(t, cannedFixture, first)
	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, 1, c.sets)

	second, err := dir.Responses(context.Background())
	require.NoError(t, err)
	assert.Equal(t, cannedFixture, second)
	// Served from cache; the database was not asked again.
	assert.Equal(t, 1, inner.calls)
}

func TestCachedDirectoryFallsThroughOnCacheError(t *testing.T) {
	inner := &countingDirectory{responses: cannedFixture}
	c := newFakeCache()
	c.getErr = errors.New("redis down")
	c.setErr = errors.New("redis down")
	dir := NewCachedCannedDirectory(inner, c, time.Minute)

	out, err := dir.Responses(context.Background())
	require.NoError(t, err)
	assert.Equal(t, cannedFixture, out)
	assert.Equal(t, 1, inner.calls)
}

func TestCachedDirectoryRefetchesPoisonedEntry(t *testing.T) {
	inner := &countingDirectory{responses: cannedFixture}
	c := newFakeCache()
	c.values["deskline:canned_responses"] = "not json"
	dir := NewCachedCannedDirectory(inner, c, time.Minute)

	out, err := dir.Responses(context.Background())
	require.NoError(t, err)
	assert.Equal(t, cannedFixture, out)
	assert.Equal(t, 1, inner.calls)
	// The poisoned entry was overwritten with a good one.
	second, err := dir.Responses(context.Background())
	require.NoError(t, err)
	assert.Equal(t, cannedFixture, second)
	assert.Equal(t, 1, inner.calls)
}

func TestCachedDirectoryPropagatesInnerError(t *testing.T) {
	inner := &countingDirectory{err: errors.New("db down")}
	dir := NewCachedCannedDirectory(inner, newFakeCache(), time.Minute)

	_, err := dir.Responses(context.Background())
	assert.Error(t, err)
}
