// Package backend is the HTTP client for the remote inference service:
// it uploads one utterance, gets back an intent plus an optional playable
// reply, and keeps transport flakiness away from the device loop.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	log "log/slog"
)

// Response mirrors the backend's JSON reply to POST /audio.
type Response struct {
	Intent          string   `json:"intent"`
	TranscribedText string   `json:"transcribed_text"`
	ResponseText    string   `json:"response_text,omitempty"`
	FullPlayURL     string   `json:"full_play_url,omitempty"`
	Message         string   `json:"message"`
	Error           string   `json:"error,omitempty"`
	Contact         *Contact `json:"contact,omitempty"`
}

// Contact is attached when the detected intent asks to call someone.
type Contact struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// TransientError wraps timeouts and connection failures, the only errors
// the retry policy acts on.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return fmt.Sprintf("backend unreachable: %v", e.Err) }
func (e *TransientError) Unwrap() error { return e.Err }

// StatusError is any non-2xx reply. Never retried.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string { return fmt.Sprintf("backend returned %d: %s", e.Status, e.Body) }

// DecodeError is a 2xx reply whose body was not the JSON we expect. Never
// retried.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string { return fmt.Sprintf("malformed backend response: %v", e.Err) }
func (e *DecodeError) Unwrap() error { return e.Err }

// IsTransient reports whether err is worth another attempt.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

type Options struct {
	Timeout    time.Duration // per attempt
	Retries    int           // extra attempts after the first
	RetryPause time.Duration
	HTTPClient *http.Client
}

type Client struct {
	url        string
	http       *http.Client
	timeout    time.Duration
	retries    int
	retryPause time.Duration
}

func NewClient(url string, opt Options) *Client {
	if opt.Timeout <= 0 {
		opt.Timeout = 45 * time.Second
	}
	if opt.Retries < 0 {
		opt.Retries = 0
	}
	if opt.RetryPause <= 0 {
		opt.RetryPause = time.Second
	}
	if opt.HTTPClient == nil {
		opt.HTTPClient = &http.Client{}
	}
	return &Client{
		url:        url,
		http:       opt.HTTPClient,
		timeout:    opt.Timeout,
		retries:    opt.Retries,
		retryPause: opt.RetryPause,
	}
}

// Submit uploads the WAV file at wavPath as multipart field "audio".
// Timeouts and connection errors are retried up to the configured ceiling
// with a fixed pause; every other failure is terminal on the first hit.
func (c *Client) Submit(ctx context.Context, wavPath string) (*Response, error) {
	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			log.Warn("Retrying backend request", "attempt", attempt+1, "err", lastErr)
			select {
			case <-time.After(c.retryPause):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		resp, err := c.post(ctx, wavPath)
		if err == nil {
			return resp, nil
		}
		if !IsTransient(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

func (c *Client) post(ctx context.Context, wavPath string) (*Response, error) {
	f, err := os.Open(wavPath)
	if err != nil {
		return nil, fmt.Errorf("open recording: %w", err)
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("audio", filepath.Base(wavPath))
	if err != nil {
		return nil, fmt.Errorf("build multipart: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, fmt.Errorf("read recording: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("build multipart: %w", err)
	}

	actx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(actx, http.MethodPost, c.url, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &TransientError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &StatusError{Status: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &DecodeError{Err: err}
	}
	return &out, nil
}

// FetchAudio downloads the reply audio referenced by the backend response
// into a file at path.
func (c *Client) FetchAudio(ctx context.Context, rawURL, path string) error {
	actx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(actx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &TransientError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &StatusError{Status: resp.StatusCode}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create reply file: %w", err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("download reply audio: %w", err)
	}
	return f.Close()
}
