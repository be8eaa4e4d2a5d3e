package robusthttp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetriesServerErrors(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewInteractiveClient(
		WithRetryWaitMin(time.Millisecond),
		WithRetryWaitMax(5*time.Millisecond),
	)
	resp, err := client.Get(srv.URL)
	require.NoError(err)
	defer resp.Body.Close()
	assert.Equal(http.StatusOK, resp.StatusCode)
	assert.Equal(int32(3), hits.Load())
}

func TestNoRetryOn429(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewClient(WithRetryWaitMin(time.Millisecond))
	resp, err := client.Get(srv.URL)
	require.NoError(err)
	defer resp.Body.Close()
	assert.Equal(http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(int32(1), hits.Load(), "rate-limit responses must reach the caller untouched")
}

func TestRetryPolicyTable(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	retry, err := DefaultRetryPolicy(ctx, &http.Response{StatusCode: http.StatusTooManyRequests}, nil)
	assert.NoError(err)
	assert.False(retry)

	retry, _ = DefaultRetryPolicy(ctx, &http.Response{StatusCode: http.StatusServiceUnavailable}, nil)
	assert.True(retry)

	retry, _ = DefaultRetryPolicy(ctx, &http.Response{StatusCode: http.StatusOK}, nil)
	assert.False(retry)
}
