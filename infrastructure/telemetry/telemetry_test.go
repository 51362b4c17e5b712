package telemetry

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_AuthAttempt(t *testing.T) {
	m := NewMetrics()
	m.AuthAttempt("login", OutcomeSuccess)
	m.AuthAttempt("login", OutcomeSuccess)
	m.AuthAttempt("login", OutcomeRejected)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.authAttempts.WithLabelValues("login", OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.authAttempts.WithLabelValues("login", OutcomeRejected)))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.AuthAttempt("login", OutcomeError)
	m.PostCreated()
	m.TrackFeedClients(func() int { return 1 })

	called := false
	h := m.Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.True(t, called)
}

func TestMetrics_MiddlewareUsesRoutePattern(t *testing.T) {
	m := NewMetrics()
	m.TrackFeedClients(func() int { return 3 })
	m.PostCreated()

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/posts/{postId}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.Handle("/metrics", m.Handler())

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/posts/abc", nil))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `route="/posts/{postId}"`)
	assert.Contains(t, string(body), `status="404"`)
	assert.Contains(t, string(body), "socialnet_feed_clients 3")
	assert.Contains(t, string(body), "socialnet_posts_created_total 1")
}

func TestInitTracing_DisabledWithoutEndpoint(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), "", "socialnet", "test")
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}
