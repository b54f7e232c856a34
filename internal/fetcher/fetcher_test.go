package fetcher

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type doerFunc func(*http.Request) (*http.Response, error)

func (f doerFunc) Do(r *http.Request) (*http.Response, error) { return f(r) }

func okResponse(body string) *http.Response {
	return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(strings.NewReader(body))}
}

type sleepRecorder struct{ waits []time.Duration }

func (s *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	s.waits = append(s.waits, d)
	return nil
}

func TestFetch_ExhaustsAfterMaxAttempts(t *testing.T) {
	var calls int32
	netErr := errors.New("connection refused")
	rec := &sleepRecorder{}

	f := New(Options{MaxAttempts: 3, BaseDelay: time.Second},
		WithDoer(doerFunc(func(*http.Request) (*http.Response, error) {
			atomic.AddInt32(&calls, 1)
			return nil, netErr
		})),
		WithSleep(rec.sleep),
	)

	_, err := f.Fetch(context.Background(), "https://example.com")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFetchExhausted))
	assert.True(t, errors.Is(err, netErr))

	var ex *ExhaustedError
	require.True(t, errors.As(err, &ex))
	assert.Equal(t, 3, ex.Attempts)

	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
	// Linear backoff and no wait after the final attempt.
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, rec.waits)
}

func TestFetch_SucceedsOnSecondAttempt(t *testing.T) {
	var calls int32
	rec := &sleepRecorder{}

	f := New(Options{MaxAttempts: 3, BaseDelay: 500 * time.Millisecond},
		WithDoer(doerFunc(func(*http.Request) (*http.Response, error) {
			if atomic.AddInt32(&calls, 1) == 1 {
				return nil, errors.New("reset")
			}
			return okResponse("<html>ok</html>"), nil
		})),
		WithSleep(rec.sleep),
	)

	body, err := f.Fetch(context.Background(), "https://example.com")
	require.NoError(t, err)
	assert.Equal(t, "<html>ok</html>", string(body))
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
	assert.Equal(t, []time.Duration{500 * time.Millisecond}, rec.waits)
}

func TestFetch_NonSuccessStatusIsFailure(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	f := New(Options{MaxAttempts: 2, UserAgent: "test-agent"}, WithSleep((&sleepRecorder{}).sleep))
	_, err := f.Fetch(context.Background(), srv.URL)

	var st *StatusError
	require.True(t, errors.As(err, &st))
	assert.Equal(t, http.StatusServiceUnavailable, st.StatusCode)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestFetch_PerAttemptTimeout(t *testing.T) {
	f := New(Options{MaxAttempts: 2, Timeout: 20 * time.Millisecond},
		WithDoer(doerFunc(func(r *http.Request) (*http.Response, error) {
			<-r.Context().Done()
			return nil, r.Context().Err()
		})),
		WithSleep((&sleepRecorder{}).sleep),
	)

	start := time.Now()
	_, err := f.Fetch(context.Background(), "https://slow.example.com")
	assert.True(t, errors.Is(err, ErrFetchExhausted))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestFetch_CancelledContextStops(t *testing.T) {
	var calls int32
	ctx, cancel := context.WithCancel(context.Background())

	f := New(Options{MaxAttempts: 5},
		WithDoer(doerFunc(func(*http.Request) (*http.Response, error) {
			atomic.AddInt32(&calls, 1)
			cancel()
			return nil, errors.New("boom")
		})),
	)

	_, err := f.Fetch(ctx, "https://example.com")
	assert.ErrorIs(t, err, context.Canceled)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestOptionsDefaults(t *testing.T) {
	o := New(Options{}).Options()
	assert.Equal(t, DefaultTimeout, o.Timeout)
	assert.Equal(t, DefaultMaxAttempts, o.MaxAttempts)
	assert.Equal(t, DefaultBaseDelay, o.BaseDelay)
	assert.Equal(t, DefaultUserAgent, o.UserAgent)
}

func TestSleepHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Sleep(ctx, time.Hour), context.Canceled)
}
