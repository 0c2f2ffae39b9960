package httpcache

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSet(t *testing.T) {
	c := NewMemory(time.Hour, nil)
	_, ok := c.Get("k")
	assert.False(t, ok)

	c.Set("k", []byte("v"))
	data, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", string(data))
}

func TestNilCache(t *testing.T) {
	var c *Cache
	c.Set("k", []byte("v"))
	_, ok := c.Get("k")
	assert.False(t, ok)
	_, ok = c.APICall("https://example.com", nil)
	assert.False(t, ok)
	assert.NoError(t, c.SetAPICall("https://example.com", nil, []byte("x")))
	assert.Equal(t, 0, c.Len())
	assert.NoError(t, c.Close())
}

func TestAPICallKeysIncludePayload(t *testing.T) {
	c := NewMemory(time.Hour, nil)
	require.NoError(t, c.SetAPICall("https://api.example.com", []byte("a"), []byte("first")))

	data, ok := c.APICall("https://api.example.com", []byte("a"))
	require.True(t, ok)
	assert.Equal(t, "first", string(data))

	_, ok = c.APICall("https://api.example.com", []byte("b"))
	assert.False(t, ok)
}

func TestPersistence(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	c, err := New(ctx, dir, time.Hour, nil)
	require.NoError(t, err)
	c.Set("k", []byte("kept"))
	require.NoError(t, c.Close())

	reopened, err := New(ctx, dir, time.Hour, nil)
	require.NoError(t, err)
	defer func() { assert.NoError(t, reopened.Close()) }()

	data, ok := reopened.Get("k")
	require.True(t, ok)
	assert.Equal(t, "kept", string(data))
}

func TestCachedClient(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path == "/fail" {
			http.Error(w, "nope", http.StatusBadGateway)
			return
		}
		_, _ = io.WriteString(w, `{"ok":true}`) //nolint:errcheck // test server
	}))
	defer srv.Close()

	client := NewCachedClient(NewMemory(time.Hour, nil), srv.Client(), nil)

	for range 3 {
		req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL+"/ok", http.NoBody)
		require.NoError(t, err)
		resp, err := client.Do(req)
		require.NoError(t, err)
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		require.NoError(t, resp.Body.Close())
		assert.Equal(t, `{"ok":true}`, string(body))
	}
	assert.Equal(t, int32(1), hits.Load())

	for range 2 {
		req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL+"/fail", http.NoBody)
		require.NoError(t, err)
		resp, err := client.Do(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
		require.NoError(t, resp.Body.Close())
	}
	assert.Equal(t, int32(3), hits.Load(), "errors must not be cached")
}
