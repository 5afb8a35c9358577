package backend

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tempWav(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "utterance.wav")
	require.NoError(t, os.WriteFile(path, []byte("RIFFfakewav"), 0o644))
	return path
}

// flakyTransport fails the first n round trips with a connection error and
// delegates the rest.
type flakyTransport struct {
	remaining int32
	base      http.RoundTripper
}

func (t *flakyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if atomic.AddInt32(&t.remaining, -1) >= 0 {
		return nil, errors.New("connection refused")
	}
	return t.base.RoundTrip(req)
}

func TestSubmitRetriesTransientThenSucceeds(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		_, _, err := r.FormFile("audio")
		require.NoError(t, err)
		w.Write([]byte(`{"intent":"general_chat","transcribed_text":"namaste","message":"ok","full_play_url":"http://x/reply.wav"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, Options{
		Retries:    2,
		RetryPause: time.Millisecond,
		HTTPClient: &http.Client{Transport: &flakyTransport{remaining: 2, base: http.DefaultTransport}},
	})

	resp, err := client.Submit(context.Background(), tempWav(t))
	require.NoError(t, err)
	assert.Equal(t, "general_chat", resp.Intent)
	assert.Equal(t, "http://x/reply.wav", resp.FullPlayURL)
	assert.EqualValues(t, 1, atomic.LoadInt32(&hits))
}

func TestSubmitGivesUpAfterRetryCeiling(t *testing.T) {
	client := NewClient("http://127.0.0.1:0", Options{
		Retries:    2,
		RetryPause: time.Millisecond,
		HTTPClient: &http.Client{Transport: &flakyTransport{remaining: 99}},
	})

	_, err := client.Submit(context.Background(), tempWav(t))
	require.Error(t, err)
	assert.True(t, IsTransient(err))
}

func TestSubmitDoesNotRetryOnStatusError(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, Options{Retries: 2, RetryPause: time.Millisecond})

	_, err := client.Submit(context.Background(), tempWav(t))
	require.Error(t, err)

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.Status)
	assert.False(t, IsTransient(err))
	assert.EqualValues(t, 1, atomic.LoadInt32(&hits), "4xx must not be retried")
}

func TestSubmitMalformedJSONIsTerminal(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Write([]byte("<html>not json</html>"))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, Options{Retries: 2, RetryPause: time.Millisecond})

	_, err := client.Submit(context.Background(), tempWav(t))
	require.Error(t, err)

	var de *DecodeError
	assert.ErrorAs(t, err, &de)
	assert.False(t, IsTransient(err))
	assert.EqualValues(t, 1, atomic.LoadInt32(&hits))
}

func TestFetchAudioWritesFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("RIFFwavbytes"))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, Options{})
	path := filepath.Join(t.TempDir(), "reply.wav")

	require.NoError(t, client.FetchAudio(context.Background(), srv.URL, path))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "RIFFwavbytes", string(b))
}

func TestFetchAudioNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, Options{})
	err := client.FetchAudio(context.Background(), srv.URL, filepath.Join(t.TempDir(), "reply.wav"))

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusInternalServerError, se.Status)
}
