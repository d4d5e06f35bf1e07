// Package voiceit is a thin client for the VoiceIt voice-biometrics REST API.
//
// Only the calls the IVR needs are implemented. Retry policy belongs to the
// caller; this package never retries.
package voiceit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	DefaultBaseURL = "https://api.voiceit.io"

	contentTypeJSON = "application/json"
)

var (
	ErrMissingCredentials = errors.New("voiceit: api key and token are required")
	ErrDecode             = errors.New("voiceit: invalid json response")
)

// StatusError is returned for any HTTP status other than 200/201.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("voiceit: unexpected status %d", e.StatusCode)
}

// Config configures the client.
type Config struct {
	APIKey   string
	APIToken string
	BaseURL  string
	Timeout  time.Duration

	// HTTPClient is optional; tests point it at httptest servers.
	HTTPClient *http.Client
}

type Client struct {
	rc *resty.Client
}

func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" || cfg.APIToken == "" {
		return nil, ErrMissingCredentials
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	var rc *resty.Client
	if cfg.HTTPClient != nil {
		rc = resty.NewWithClient(cfg.HTTPClient)
	} else {
		rc = resty.New()
	}
	rc.SetBaseURL(base).
		SetBasicAuth(cfg.APIKey, cfg.APIToken).
		SetTimeout(timeout).
		SetHeader("Accept", contentTypeJSON)

	return &Client{rc: rc}, nil
}

// Request performs one authenticated call. body is JSON-encoded when non-nil;
// on 200/201 the response is decoded into out (when non-nil).
func (c *Client) Request(ctx context.Context, method, path, contentType string, body, out any) error {
	if contentType == "" {
		contentType = contentTypeJSON
	}
	req := c.rc.R().
		SetContext(ctx).
		SetHeader("Content-Type", contentType).
		ForceContentType(contentTypeJSON)
	if body != nil {
		req.SetBody(body)
	}
	if out != nil {
		req.SetResult(out)
	}

	resp, err := req.Execute(method, path)
	if resp != nil && resp.RawResponse != nil {
		switch resp.StatusCode() {
		case http.StatusOK, http.StatusCreated:
		default:
			return &StatusError{StatusCode: resp.StatusCode(), Body: truncate(string(resp.Body()), 512)}
		}
	}
	if err != nil {
		if isDecodeError(err) {
			return fmt.Errorf("%w: %s %s: %v", ErrDecode, method, path, err)
		}
		return fmt.Errorf("voiceit: %s %s: %w", method, path, err)
	}
	return nil
}

func isDecodeError(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &syntaxErr) || errors.As(err, &typeErr) || errors.Is(err, io.ErrUnexpectedEOF)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
