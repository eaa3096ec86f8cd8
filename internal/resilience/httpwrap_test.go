package resilience

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type trackedBody struct {
	io.Reader
	closed atomic.Bool
}

func (b *trackedBody) Close() error {
	b.closed.Store(true)
	return nil
}

// scriptedTransport answers each round trip with the next scripted status and
// records the response bodies it handed out.
type scriptedTransport struct {
	statuses []int
	bodies   []*trackedBody
}

func (tr *scriptedTransport) RoundTrip(*http.Request) (*http.Response, error) {
	status := tr.statuses[0]
	if len(tr.statuses) > 1 {
		tr.statuses = tr.statuses[1:]
	}
	body := &trackedBody{Reader: bytes.NewReader([]byte(`{"detail":"sink error"}`))}
	tr.bodies = append(tr.bodies, body)
	return &http.Response{
		StatusCode: status,
		Status:     http.StatusText(status),
		Body:       body,
		Header:     http.Header{},
	}, nil
}

func retryTestClient(tr *scriptedTransport, attempts int) HTTPClient {
	return HTTPClient{
		Client:      &http.Client{Transport: tr},
		Breaker:     NewBreaker(100, 0.99, time.Second),
		MaxAttempts: attempts,
		BaseBackoff: time.Millisecond,
	}
}

func TestHTTPClientClosesRetriedResponseBodies(t *testing.T) {
	tr := &scriptedTransport{statuses: []int{500, 503, 202}}
	cl := retryTestClient(tr, 3)

	req, err := http.NewRequest(http.MethodPost, "http://sink.local/events", bytes.NewReader([]byte(`{}`)))
	require.NoError(t, err)

	resp, err := cl.Do(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	t.Cleanup(func() { _ = resp.Body.Close() })

	require.Len(t, tr.bodies, 3)
	require.True(t, tr.bodies[0].closed.Load())
	require.True(t, tr.bodies[1].closed.Load())
	// The body of the response handed back to the caller stays open.
	require.False(t, tr.bodies[2].closed.Load())
}

func TestHTTPClientClosesBodiesWhenAllAttemptsFail(t *testing.T) {
	tr := &scriptedTransport{statuses: []int{503}}
	cl := retryTestClient(tr, 2)

	req, err := http.NewRequest(http.MethodPost, "http://sink.local/events", nil)
	require.NoError(t, err)

	_, err = cl.Do(context.Background(), req)
	require.Error(t, err)

	require.Len(t, tr.bodies, 2)
	for i, body := range tr.bodies {
		require.True(t, body.closed.Load(), "attempt %d body left open", i+1)
	}
}
