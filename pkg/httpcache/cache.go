// Package httpcache caches upstream HTTP response bodies in memory, optionally
// persisting them to disk between runs.
package httpcache

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/maypok86/otter/v2"
)

const cacheFile = "tzconv-cache.gob"

// Entry is one cached body.
type Entry struct {
	ExpiresAt time.Time
	Data      []byte
}

// Cache is a TTL cache of response bodies. It is safe for concurrent use.
// A nil *Cache is valid and never hits.
type Cache struct {
	cache      *otter.Cache[string, Entry]
	logger     *slog.Logger
	saveCancel context.CancelFunc
	dir        string
	saveWg     sync.WaitGroup
	ttl        time.Duration
	mu         sync.Mutex
}

// NewMemory returns a cache that lives only as long as the process.
func NewMemory(ttl time.Duration, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		cache: otter.Must(&otter.Options[string, Entry]{
			MaximumSize:      10_000,
			ExpiryCalculator: otter.ExpiryWriting[string, Entry](ttl),
		}),
		ttl:    ttl,
		logger: logger,
	}
}

// New returns a cache persisted to dir. Entries are loaded now, saved every
// 15 minutes while ctx is live, and saved again by Close.
func New(ctx context.Context, dir string, ttl time.Duration, logger *slog.Logger) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}

	c := NewMemory(ttl, logger)
	c.dir = dir

	if err := c.load(); err != nil {
		c.logger.Warn("failed to load cache from disk", "error", err)
	}
	c.logger.Debug("cache initialized", "dir", dir, "entries", c.cache.EstimatedSize())

	saveCtx, cancel := context.WithCancel(ctx)
	c.saveCancel = cancel
	c.saveWg.Add(1)
	go c.saveLoop(saveCtx)

	return c, nil
}

// Key derives the cache key for a URL and optional request body.
func Key(url string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(url))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns the body cached under key.
func (c *Cache) Get(key string) ([]byte, bool) {
	if c == nil {
		return nil, false
	}
	entry, ok := c.cache.GetIfPresent(key)
	if !ok {
		return nil, false
	}
	if time.Now().After(entry.ExpiresAt) {
		c.cache.Invalidate(key)
		return nil, false
	}
	return entry.Data, true
}

// Set caches data under key for the cache TTL.
func (c *Cache) Set(key string, data []byte) {
	if c == nil {
		return
	}
	c.cache.Set(key, Entry{Data: data, ExpiresAt: time.Now().Add(c.ttl)})
}

// APICall returns a cached response for a request to url with the given payload.
func (c *Cache) APICall(url string, payload []byte) ([]byte, bool) {
	data, ok := c.Get(Key(url, payload))
	if ok {
		c.logger.Debug("API cache hit", "url", url)
	}
	return data, ok
}

// SetAPICall caches the response for a request to url with the given payload.
func (c *Cache) SetAPICall(url string, payload, data []byte) error {
	c.Set(Key(url, payload), data)
	return nil
}

// Len returns the approximate number of entries.
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	return c.cache.EstimatedSize()
}

// Close stops the save loop and writes the cache to disk when it has a directory.
func (c *Cache) Close() error {
	if c == nil || c.dir == "" {
		return nil
	}
	if c.saveCancel != nil {
		c.saveCancel()
	}
	c.saveWg.Wait()
	if err := c.save(); err != nil {
		return fmt.Errorf("saving cache: %w", err)
	}
	return nil
}

func (c *Cache) load() error {
	path := filepath.Join(c.dir, cacheFile)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("opening cache file: %w", err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			c.logger.Debug("failed to close cache file", "error", err)
		}
	}()

	var entries map[string]Entry
	if err := gob.NewDecoder(f).Decode(&entries); err != nil {
		return fmt.Errorf("decoding cache file: %w", err)
	}

	now := time.Now()
	for key, entry := range entries {
		if now.Before(entry.ExpiresAt) {
			c.cache.Set(key, entry)
		}
	}
	return nil
}

func (c *Cache) save() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	path := filepath.Join(c.dir, cacheFile)
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("creating temp cache file: %w", err)
	}
	defer func() {
		if err := os.Remove(tmp); err != nil && !os.IsNotExist(err) {
			c.logger.Debug("failed to remove temp cache file", "error", err)
		}
	}()

	entries := make(map[string]Entry)
	now := time.Now()
	for key, entry := range c.cache.All() {
		if now.Before(entry.ExpiresAt) {
			entries[key] = entry
		}
	}

	if err := gob.NewEncoder(f).Encode(entries); err != nil {
		_ = f.Close() //nolint:errcheck // encode error wins
		return fmt.Errorf("encoding cache: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing cache file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replacing cache file: %w", err)
	}
	c.logger.Debug("cache saved", "entries", len(entries), "path", path)
	return nil
}

func (c *Cache) saveLoop(ctx context.Context) {
	defer c.saveWg.Done()
	ticker := time.NewTicker(15 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.save(); err != nil {
				c.logger.Error("periodic cache save failed", "error", err)
			}
		}
	}
}

// HTTPClient is the subset of *http.Client used here.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// CachedClient serves repeated GET requests from a Cache. Only 200 responses are cached.
type CachedClient struct {
	cache  *Cache
	client HTTPClient
	logger *slog.Logger
}

// NewCachedClient wraps client. A nil cache disables caching.
func NewCachedClient(cache *Cache, client HTTPClient, logger *slog.Logger) *CachedClient {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedClient{cache: cache, client: client, logger: logger}
}

// Do performs req, consulting the cache for GET requests.
func (c *CachedClient) Do(req *http.Request) (*http.Response, error) {
	if c.cache == nil || req.Method != http.MethodGet {
		return c.client.Do(req)
	}

	url := req.URL.String()
	key := Key(url, nil)
	if data, ok := c.cache.Get(key); ok {
		c.logger.Debug("cache hit", "url", url)
		resp := &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(bytes.NewReader(data)),
			Header:     make(http.Header),
			Request:    req,
		}
		resp.Header.Set("X-From-Cache", "true")
		return resp, nil
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return resp, nil
	}

	body, err := io.ReadAll(resp.Body)
	if closeErr := resp.Body.Close(); closeErr != nil {
		c.logger.Debug("failed to close response body", "error", closeErr)
	}
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	c.cache.Set(key, body)
	resp.Body = io.NopCloser(bytes.NewReader(body))
	return resp, nil
}
