package domainid

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusnet/academic-platform/internal/auth"
	"github.com/campusnet/academic-platform/internal/auth/authtest"
)

type mapCache struct {
	mu   sync.Mutex
	data map[string]string
	ttls map[string]time.Duration
	err  error
}

func newMapCache() *mapCache {
	return &mapCache{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *mapCache) GetString(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", false, m.err
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *mapCache) SetString(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.data[key] = value
	m.ttls[key] = ttl
	return nil
}

func lookupServer(t *testing.T, status int, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, Path, r.URL.Path)
		assert.Contains(t, r.Header.Get("Authorization"), "Bearer ")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestResolveCachesBothKinds(t *testing.T) {
	srv, calls := lookupServer(t, http.StatusOK, `{"studentId":"s-1","teacherId":"t-1"}`)
	shared := newMapCache()
	client := New(Options{BaseURL: srv.URL, Shared: shared, CacheTTL: time.Minute})
	token := authtest.Shared(t).Token(t, "u-1", "ADMIN", nil)

	id, err := client.Resolve(context.Background(), token, auth.DomainStudent)
	require.NoError(t, err)
	assert.Equal(t, "s-1", id)

	id, err = client.Resolve(context.Background(), token, auth.DomainTeacher)
	require.NoError(t, err)
	assert.Equal(t, "t-1", id)
	assert.Equal(t, int32(1), calls.Load())

	key := cacheKey(token, auth.DomainStudent)
	assert.Equal(t, "s-1", shared.data[key])
	assert.Equal(t, time.Minute, shared.ttls[key])
	assert.NotContains(t, key, token)
}

func TestResolveTTLBoundedByToken(t *testing.T) {
	srv, _ := lookupServer(t, http.StatusOK, `{"studentId":"s-1"}`)
	shared := newMapCache()
	client := New(Options{BaseURL: srv.URL, Shared: shared, CacheTTL: time.Hour})
	token := authtest.Shared(t).Token(t, "u-1", "ADMIN", map[string]any{"exp": time.Now().Add(10 * time.Minute).Unix()})

	_, err := client.Resolve(context.Background(), token, auth.DomainStudent)
	require.NoError(t, err)
	ttl := shared.ttls[cacheKey(token, auth.DomainStudent)]
	assert.LessOrEqual(t, ttl, 10*time.Minute)
	assert.Greater(t, ttl, 9*time.Minute)
}

func TestResolveErrors(t *testing.T) {
	token := authtest.Shared(t).Token(t, "u-1", "ADMIN", nil)

	t.Run("not found", func(t *testing.T) {
		srv, _ := lookupServer(t, http.StatusNotFound, `{}`)
		_, err := New(Options{BaseURL: srv.URL}).Resolve(context.Background(), token, auth.DomainStudent)
		assert.ErrorIs(t, err, auth.ErrDomainIDNotFound)
	})

	t.Run("empty field", func(t *testing.T) {
		srv, calls := lookupServer(t, http.StatusOK, `{"studentId":"s-1"}`)
		client := New(Options{BaseURL: srv.URL})
		_, err := client.Resolve(context.Background(), token, auth.DomainTeacher)
		assert.ErrorIs(t, err, auth.ErrDomainIDNotFound)
		_, err = client.Resolve(context.Background(), token, auth.DomainTeacher)
		assert.ErrorIs(t, err, auth.ErrDomainIDNotFound)
		assert.Equal(t, int32(2), calls.Load(), "misses are not cached")
	})

	t.Run("upstream failure", func(t *testing.T) {
		srv, _ := lookupServer(t, http.StatusBadGateway, `oops`)
		_, err := New(Options{BaseURL: srv.URL}).Resolve(context.Background(), token, auth.DomainStudent)
		assert.ErrorIs(t, err, auth.ErrInternal)
		assert.Equal(t, auth.CauseRemote, auth.AsError(err).Cause)
	})

	t.Run("bad body", func(t *testing.T) {
		srv, _ := lookupServer(t, http.StatusOK, `{"studentId":`)
		_, err := New(Options{BaseURL: srv.URL}).Resolve(context.Background(), token, auth.DomainStudent)
		assert.ErrorIs(t, err, auth.ErrInternal)
	})

	t.Run("not configured", func(t *testing.T) {
		_, err := New(Options{}).Resolve(context.Background(), token, auth.DomainStudent)
		assert.ErrorIs(t, err, auth.ErrInternal)
	})

	t.Run("timeout", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(time.Second):
			}
		}))
		defer srv.Close()
		_, err := New(Options{BaseURL: srv.URL, Timeout: 20 * time.Millisecond}).Resolve(context.Background(), token, auth.DomainStudent)
		assert.ErrorIs(t, err, auth.ErrInternal)
	})
}

func TestSharedCacheFailureDegradesToMiss(t *testing.T) {
	srv, calls := lookupServer(t, http.StatusOK, `{"teacherId":"t-9"}`)
	shared := newMapCache()
	shared.err = assert.AnError
	client := New(Options{BaseURL: srv.URL, Shared: shared})
	token := authtest.Shared(t).Token(t, "u-1", "TEACHER", nil)

	id, err := client.Resolve(context.Background(), token, auth.DomainTeacher)
	require.NoError(t, err)
	assert.Equal(t, "t-9", id)

	_, err = client.Resolve(context.Background(), token, auth.DomainTeacher)
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load(), "served from the local cache")
}
