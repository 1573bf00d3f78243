package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"studio-cli/internal/xblock"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// HTTPStore talks to a Studio-compatible server:
//
//	GET  {base}/xblock/{id}   -> block snapshot
//	POST {base}/xblock/{id}   <- Update
type HTTPStore struct {
	base   *url.URL
	client *http.Client
	log    *zap.Logger
}

type HTTPOption func(*HTTPStore)

func WithHTTPClient(c *http.Client) HTTPOption {
	return func(s *HTTPStore) { s.client = c }
}

func WithLogger(l *zap.Logger) HTTPOption {
	return func(s *HTTPStore) { s.log = l }
}

func NewHTTPStore(baseURL string, opts ...HTTPOption) (*HTTPStore, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("remote: missing base url")
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Wrap(err, "remote: parse base url")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.Errorf("remote: unsupported scheme %q", u.Scheme)
	}
	s := &HTTPStore{
		base:   u,
		client: &http.Client{Timeout: 60 * time.Second},
		log:    zap.NewNop(),
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

func (s *HTTPStore) blockURL(id string) string {
	u := *s.base
	u.Path = strings.TrimRight(u.Path, "/") + "/xblock/" + url.PathEscape(id)
	u.RawPath = ""
	return u.String()
}

func (s *HTTPStore) Fetch(ctx context.Context, id string) (*xblock.Node, error) {
	body, err := s.do(ctx, http.MethodGet, id, nil)
	if err != nil {
		return nil, err
	}
	n, err := xblock.Parse(body)
	if err != nil {
		return nil, errors.Wrapf(err, "fetch %s", id)
	}
	return n, nil
}

func (s *HTTPStore) UpdateFields(ctx context.Context, id string, u Update) error {
	b, err := json.Marshal(u)
	if err != nil {
		return errors.Wrap(err, "encode update")
	}
	_, err = s.do(ctx, http.MethodPost, id, b)
	return err
}

func (s *HTTPStore) do(ctx context.Context, method, id string, payload []byte) ([]byte, error) {
	target := s.blockURL(id)
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	reqID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", reqID)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		s.log.Warn("request failed",
			zap.String("method", method),
			zap.String("url", target),
			zap.String("request_id", reqID),
			zap.Error(err),
		)
		return nil, errors.Wrapf(err, "%s %s", method, target)
	}
	defer resp.Body.Close()

	out, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, errors.Wrap(err, "read response")
	}
	s.log.Debug("request",
		zap.String("method", method),
		zap.String("url", target),
		zap.String("request_id", reqID),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(start)),
	)

	if resp.StatusCode == http.StatusNotFound {
		return nil, NotFound(id)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{
			Method: method,
			URL:    target,
			Code:   resp.StatusCode,
			Body:   strings.TrimSpace(string(out)),
		}
	}
	return out, nil
}
