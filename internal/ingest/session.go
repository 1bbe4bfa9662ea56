package ingest

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Response is a fully-read HTTP response. Bodies are consumed inside the
// per-request deadline so callers never hold a live connection.
type Response struct {
	Status      int
	ContentType string
	Disposition string
	Body        []byte
}

// Session is the one network resource shared across a whole import job.
// Created lazily by the orchestrator, reused for every probe and download,
// and released exactly once at job end.
type Session struct {
	client    *http.Client
	closeOnce sync.Once
}

// NewSession creates a session with a client tuned for scraping.
func NewSession() *Session {
	return &Session{client: newFetchClient()}
}

func newFetchClient() *http.Client {
	return &http.Client{
		Timeout: 60 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 5,
			IdleConnTimeout:     30 * time.Second,
			TLSHandshakeTimeout: 15 * time.Second,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return errors.New("stopped after 10 redirects")
			}
			return nil
		},
	}
}

// Get performs a GET with retry on transient statuses. Non-2xx responses are
// returned, not turned into errors; callers decide what a bad status means.
func (s *Session) Get(ctx context.Context, rawURL string) (*Response, error) {
	return s.do(ctx, http.MethodGet, rawURL)
}

// Head performs a lightweight existence probe. The returned Body is empty.
func (s *Session) Head(ctx context.Context, rawURL string) (*Response, error) {
	return s.do(ctx, http.MethodHead, rawURL)
}

func (s *Session) do(ctx context.Context, method, rawURL string) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.FetchTimeout)
	defer cancel()

	var lastStatus int

	operation := func() (*Response, error) {
		req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		req.Header.Set("User-Agent", randomUserAgent())
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/json;q=0.9,*/*;q=0.8")
		req.Header.Set("Accept-Language", "en-US,en;q=0.9")
		req.Header.Set("Accept-Encoding", "gzip, deflate")

		resp, err := s.client.Do(req)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		defer resp.Body.Close()

		lastStatus = resp.StatusCode
		if isRetryableStatus(resp.StatusCode) {
			io.Copy(io.Discard, resp.Body)
			return nil, fmt.Errorf("status %d", resp.StatusCode)
		}

		var body []byte
		if method != http.MethodHead {
			body, err = readResponseBody(resp)
			if err != nil {
				return nil, backoff.Permanent(fmt.Errorf("read body: %w", err))
			}
		}
		return &Response{
			Status:      resp.StatusCode,
			ContentType: resp.Header.Get("Content-Type"),
			Disposition: resp.Header.Get("Content-Disposition"),
			Body:        body,
		}, nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = 5 * time.Second

	res, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(3),
		backoff.WithMaxElapsedTime(cfg.FetchTimeout))
	if err != nil {
		// Retries exhausted on a retryable status: surface the status so
		// callers can report it instead of a bare error string.
		if lastStatus != 0 {
			return &Response{Status: lastStatus}, nil
		}
		return nil, err
	}
	return res, nil
}

// Close releases the session's idle connections. Safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.client.CloseIdleConnections()
	})
}

// readResponseBody reads the response body, handling gzip decompression if needed.
func readResponseBody(resp *http.Response) ([]byte, error) {
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		return io.ReadAll(gz)
	}
	return io.ReadAll(resp.Body)
}

// isRetryableStatus returns true for HTTP status codes worth retrying.
func isRetryableStatus(code int) bool {
	switch code {
	case 429, 500, 502, 503, 504:
		return true
	}
	return false
}
