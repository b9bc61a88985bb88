package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hyperjump/lexembed/internal/config"
	"github.com/hyperjump/lexembed/internal/embedding"
	"github.com/hyperjump/lexembed/internal/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

const testDim = 8

func newService() *embedding.Service {
	return embedding.NewService(embedding.Options{ModelName: config.DefaultModelName}, zap.NewNop())
}

func startService(t *testing.T, svc *embedding.Service, enc *embedding.MockEncoder) {
	t.Helper()
	if enc == nil {
		enc = embedding.NewMockEncoder(testDim)
	}
	err := svc.Start(context.Background(), func(context.Context) (*embedding.Model, error) {
		return &embedding.Model{Tokenizer: &embedding.SimpleTokenizer{}, Encoder: enc}, nil
	})
	require.NoError(t, err)
}

func newTestServer(t *testing.T, svc *embedding.Service) *httptest.Server {
	t.Helper()
	cfg := config.Default()
	cfg.Model.HiddenSize = testDim
	ts := httptest.NewServer(server.NewServer(svc, cfg, nil, zap.NewNop()).Router())
	t.Cleanup(ts.Close)
	return ts
}

func TestClient_HealthAndInfo(t *testing.T) {
	svc := newService()
	ts := newTestServer(t, svc)
	c := New(ts.URL + "/")
	ctx := context.Background()

	_, err := c.Health(ctx)
	require.Error(t, err)
	assert.True(t, IsUnavailable(err))
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "Model not loaded", se.Detail)

	startService(t, svc, nil)
	health, err := c.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "cls", health.Method)

	info, err := c.Info(ctx)
	require.NoError(t, err)
	assert.Equal(t, testDim, info.Dimension)
	assert.Contains(t, info.Endpoints, "/embed")
}

func TestClient_Embed(t *testing.T) {
	svc := newService()
	startService(t, svc, nil)
	c := New(newTestServer(t, svc).URL)
	ctx := context.Background()

	vecs, err := c.Embed(ctx, "art. 2043 c.c.", "risarcimento del danno")
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Len(t, vecs[0], testDim)

	one, err := c.EmbedText(ctx, "risarcimento del danno")
	require.NoError(t, err)
	assert.Equal(t, vecs[1], one)

	legacy, err := c.EmbedLegacy(ctx, "risarcimento del danno")
	require.NoError(t, err)
	assert.NotEqual(t, one, legacy[0])

	_, err = c.Embed(ctx)
	assert.Error(t, err)
}

func TestClient_EmbedServerError(t *testing.T) {
	enc := embedding.NewMockEncoder(testDim)
	enc.Err = errors.New("boom")
	svc := newService()
	startService(t, svc, enc)
	c := New(newTestServer(t, svc).URL)

	_, err := c.Embed(context.Background(), "x")
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusInternalServerError, se.StatusCode)
	assert.Contains(t, se.Detail, "boom")
	assert.False(t, IsUnavailable(err))
}

func TestClient_NonJSONError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer ts.Close()

	_, err := New(ts.URL).Health(context.Background())
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadGateway, se.StatusCode)
	assert.Equal(t, "bad gateway", se.Detail)
}

func TestClient_WaitReady(t *testing.T) {
	svc := newService()
	c := New(newTestServer(t, svc).URL, WithPollInterval(5*time.Millisecond, 20*time.Millisecond))

	go func() {
		time.Sleep(30 * time.Millisecond)
		_ = svc.Start(context.Background(), func(context.Context) (*embedding.Model, error) {
			return &embedding.Model{Tokenizer: &embedding.SimpleTokenizer{}, Encoder: embedding.NewMockEncoder(testDim)}, nil
		})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := c.WaitReady(ctx)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultModelName, health.Model)
}

func TestClient_WaitReadyContextDone(t *testing.T) {
	svc := newService()
	core, logs := observer.New(zap.DebugLevel)
	c := New(newTestServer(t, svc).URL,
		WithPollInterval(5*time.Millisecond, 10*time.Millisecond),
		WithLogger(zap.New(core)),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.WaitReady(ctx)
	require.Error(t, err)
	assert.Positive(t, logs.FilterMessage("embedding server not ready").Len())
}

func TestClient_WithHTTPClientTimeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer ts.Close()

	c := New(ts.URL, WithHTTPClient(&http.Client{Timeout: 20 * time.Millisecond}))
	_, err := c.Health(context.Background())
	require.Error(t, err)
	var se *StatusError
	assert.False(t, errors.As(err, &se))
}

func TestNew_Defaults(t *testing.T) {
	assert.Equal(t, DefaultBaseURL, New("").BaseURL())
	assert.Equal(t, "http://host:9000", New("http://host:9000///").BaseURL())
}
