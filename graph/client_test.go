package graph_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jrsteele09/go-onedrive-upload/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *graph.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return graph.NewClient(srv.URL, graph.WithHTTPClient(srv.Client()))
}

func TestUploadContent_Success(t *testing.T) {
	var gotPath, gotAuth, gotType, gotBody string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		gotPath = r.URL.EscapedPath()
		gotAuth = r.Header.Get("Authorization")
		gotType = r.Header.Get("Content-Type")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"item-1","name":"report 2024.txt","size":5,"webUrl":"https://onedrive.example/item-1","lastModifiedDateTime":"2024-06-01T10:00:00Z"}`))
	})

	item, err := client.UploadContent(context.Background(), "tok-123", "report 2024.txt", strings.NewReader("hello"), 5)
	require.NoError(t, err)

	assert.Equal(t, "/me/drive/root:/report%202024.txt:/content", gotPath)
	assert.Equal(t, "Bearer tok-123", gotAuth)
	assert.Equal(t, "application/octet-stream", gotType)
	assert.Equal(t, "hello", gotBody)

	assert.Equal(t, "item-1", item.ID)
	assert.Equal(t, "report 2024.txt", item.Name)
	assert.Equal(t, int64(5), item.Size)
	assert.Equal(t, time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC), item.ModifiedAt)
}

func TestUploadContent_SuccessWithoutBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	item, err := client.UploadContent(context.Background(), "tok", "a.txt", strings.NewReader("x"), 1)
	require.NoError(t, err)
	assert.Equal(t, "a.txt", item.Name)
}

func TestUploadContent_RemoteError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("request-id", "req-42")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":"accessDenied"}}`))
	})

	_, err := client.UploadContent(context.Background(), "tok", "a.txt", strings.NewReader("x"), 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, graph.ErrForbidden)

	var graphErr *graph.GraphError
	require.True(t, errors.As(err, &graphErr))
	assert.Equal(t, http.StatusForbidden, graphErr.StatusCode)
	assert.Equal(t, "req-42", graphErr.RequestID)
	assert.Equal(t, `{"error":{"code":"accessDenied"}}`, graphErr.Message)
}

func TestUploadContent_StatusClassification(t *testing.T) {
	tests := []struct {
		status   int
		sentinel error
	}{
		{http.StatusUnauthorized, graph.ErrUnauthorized},
		{http.StatusConflict, graph.ErrConflict},
		{http.StatusRequestEntityTooLarge, graph.ErrTooLarge},
		{http.StatusTooManyRequests, graph.ErrThrottled},
		{http.StatusInsufficientStorage, graph.ErrInsufficientStorage},
		{http.StatusBadGateway, graph.ErrServerError},
		{http.StatusAccepted, graph.ErrUnexpected},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			})
			_, err := client.UploadContent(context.Background(), "tok", "a.txt", strings.NewReader("x"), 1)
			assert.ErrorIs(t, err, tt.sentinel)
		})
	}
}

func TestUploadContent_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := graph.NewClient(url)
	_, err := client.UploadContent(context.Background(), "tok", "a.txt", strings.NewReader("x"), 1)
	require.Error(t, err)

	var graphErr *graph.GraphError
	assert.False(t, errors.As(err, &graphErr))
}

func TestUploadContent_InvalidFilename(t *testing.T) {
	called := false
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		called = true
		w.WriteHeader(http.StatusCreated)
	})

	_, err := client.UploadContent(context.Background(), "tok", "../etc", strings.NewReader("x"), 1)
	require.Error(t, err)
	assert.False(t, called)
}

func TestUploadContent_RateLimiterCancelled(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	}))
	t.Cleanup(srv.Close)
	client := graph.NewClient(srv.URL, graph.WithHTTPClient(srv.Client()), graph.WithRateLimit(0.001, 1))

	// The first request consumes the only token in the bucket.
	_, err := client.UploadContent(context.Background(), "tok", "a.txt", strings.NewReader("x"), 1)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = client.UploadContent(ctx, "tok", "a.txt", strings.NewReader("x"), 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
