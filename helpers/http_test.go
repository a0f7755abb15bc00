package helpers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFetchWithRandomHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Check that headers are set
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		assert.NotEmpty(t, r.Header.Get("Accept"))
		assert.Equal(t, "zh-CN", r.Header.Get("Accept-Language"))
		assert.NotEmpty(t, r.Header.Get("referer"))

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("<html><body>Hello, World!</body></html>"))
	}))
	defer server.Close()

	body, err := FetchWithRandomHeaders(context.Background(), server.URL, "zh-CN")
	assert.NoError(t, err)
	assert.Contains(t, string(body), "Hello, World!")
}

func TestFetchWithRandomHeadersNonUTF8(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
		w.WriteHeader(http.StatusOK)
		// "Coupon Code: CAFÉ" with É as the single latin-1 byte 0xC9
		w.Write([]byte("<html><body>Coupon Code: CAF\xc9</body></html>"))
	}))
	defer server.Close()

	body, err := FetchWithRandomHeaders(context.Background(), server.URL, "")
	assert.NoError(t, err)
	assert.Contains(t, string(body), "Coupon Code: CAFÉ")
}

func TestFetchWithRandomHeadersError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := FetchWithRandomHeaders(context.Background(), server.URL, "")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status code: 500")
	assert.False(t, errors.Is(err, ErrRateLimited))

	// Test with rate limiting
	serverRateLimited := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "60")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer serverRateLimited.Close()

	_, err = FetchWithRandomHeaders(context.Background(), serverRateLimited.URL, "")
	assert.Error(t, err)
	assert.True(t, errors.Is(err, ErrRateLimited))

	var statusErr *StatusError
	assert.True(t, errors.As(err, &statusErr))
	assert.Equal(t, "60", statusErr.RetryAfter)
}

func TestFetchWithRandomHeadersCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := FetchWithRandomHeaders(ctx, "http://127.0.0.1:1/", "")
	assert.Error(t, err)
}

func TestFetchWithRandomHeadersInvalidURL(t *testing.T) {
	_, err := FetchWithRandomHeaders(context.Background(), "http://invalid.url.that.does.not.exist", "")
	assert.Error(t, err)
}
