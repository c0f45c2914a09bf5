package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSend_ParsesSID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		require.Equal(t, "+15551234567", r.PostForm.Get("To"))
		require.Equal(t, "+15550001111", r.PostForm.Get("From"))
		u, _, ok := r.BasicAuth()
		require.True(t, ok)
		require.Equal(t, "AC0", u)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"sid":"SM123"}`))
	}))
	defer srv.Close()

	p := NewTwilioProvider(srv.URL, "AC0", "tok", "+15550001111", 1000, 3, 1000)
	sid, err := p.Send(context.Background(), "+15551234567", "hi")
	require.NoError(t, err)
	require.Equal(t, "SM123", sid)
	require.True(t, p.Ready())
}

func TestSend_RejectionDoesNotTripBreaker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":21211,"message":"invalid 'To' number"}`))
	}))
	defer srv.Close()

	p := NewTwilioProvider(srv.URL, "AC0", "tok", "+15550001111", 1000, 2, 60000)
	for i := 0; i < 5; i++ {
		_, err := p.Send(context.Background(), "+15551234567", "hi")
		require.ErrorIs(t, err, ErrRejected)
	}
	require.True(t, p.Ready(), "a provider that answers is not a provider that is down")
}

func TestSend_OutagesOpenCircuit(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := NewTwilioProvider(srv.URL, "AC0", "tok", "+15550001111", 1000, 2, 60000)

	_, err := p.Send(context.Background(), "+15551234567", "hi")
	require.Error(t, err)
	_, err = p.Send(context.Background(), "+15551234567", "hi")
	require.Error(t, err)

	// circuit is open now: no further upstream calls
	_, err = p.Send(context.Background(), "+15551234567", "hi")
	require.ErrorIs(t, err, ErrUnavailable)
	require.EqualValues(t, 2, calls.Load())
	require.False(t, p.Ready())
}
