package httpclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	jsoniter "github.com/json-iterator/go"
)

const (
	ContentTypeApplicationJson string = "application/json"
	ContentTypeFormUrlencoded  string = "application/x-www-form-urlencoded"
	ContentType                string = "Content-Type"
	Accept                     string = "Accept"
	Authorization              string = "Authorization"
)

const DefaultMaxResponseSize int64 = 1024 * 1024 * 10 // 10MB
const DefaultRetries int = 3
const DefaultInitialDelay = time.Second

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// HttpError is a non-2xx response that is neither 401 nor 403.
type HttpError struct {
	StatusCode int
	Body       []byte
}

func (e *HttpError) Error() string {
	return fmt.Sprintf("HTTP error %d: %s", e.StatusCode, e.Body)
}

// AuthError is a 401 or 403 response. It is never retried: re-attempting
// with an already-invalid token cannot succeed.
type AuthError struct {
	StatusCode int
	Message    string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed (%d): %s", e.StatusCode, e.Message)
}

// TransientError wraps the last failure after all attempts are exhausted.
type TransientError struct {
	Attempts int
	Last     error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("request failed after %d attempts: %v", e.Attempts, e.Last)
}

func (e *TransientError) Unwrap() error {
	return e.Last
}

type HttpClient struct {
	Headers         http.Header
	MaxResponseSize int64
	Retries         int
	InitialDelay    time.Duration
}

func NewClient() *HttpClient {
	return &HttpClient{
		Headers:         http.Header{},
		MaxResponseSize: DefaultMaxResponseSize,
		Retries:         DefaultRetries,
		InitialDelay:    DefaultInitialDelay,
	}
}

func (c *HttpClient) WithMaxSize(maxResponseSize int64) *HttpClient {
	c.MaxResponseSize = maxResponseSize
	return c
}

func (c *HttpClient) WithRetries(retries int) *HttpClient {
	c.Retries = retries
	return c
}

func (c *HttpClient) WithInitialDelay(delay time.Duration) *HttpClient {
	c.InitialDelay = delay
	return c
}

func (c *HttpClient) WithHeaders(headers ...string) *HttpClient {
	if c.Headers == nil {
		c.Headers = http.Header{}
	}
	for i := 0; i+1 < len(headers); i += 2 {
		if headers[i] == "" {
			continue
		}
		c.Headers.Add(headers[i], headers[i+1])
	}
	return c
}

// authMessage extracts a human-readable message from an error body. The
// backend reports errors as {"detail": "..."}; anything else falls back to a
// generic message so classification never fails on a bad body.
func authMessage(body []byte) string {
	var detail struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &detail); err == nil && detail.Detail != "" {
		return detail.Detail
	}
	return "authentication required"
}

func (c *HttpClient) httpInvoke(ctx context.Context, client *http.Client, method string, contentType string, url string, reader io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, err
	}
	if c.Headers != nil {
		req.Header = c.Headers.Clone()
	}
	if contentType != "" {
		req.Header.Set(ContentType, contentType)
	}
	if req.Header.Get(Accept) == "" {
		req.Header.Set(Accept, ContentTypeApplicationJson)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		dErr := resp.Body.Close()
		if dErr != nil {
			fmt.Printf("failed to close body: %v", dErr)
		}
	}()
	buf, err := c.readResponse(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, &AuthError{resp.StatusCode, authMessage(buf)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HttpError{resp.StatusCode, buf}
	}
	return buf, nil
}

func (c *HttpClient) readResponse(body io.Reader) ([]byte, error) {
	if c.MaxResponseSize > 0 {
		body = NewLimitErrorReader(body, c.MaxResponseSize)
	}
	buf, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	return buf, nil
}

// Do issues the request with bounded exponential backoff. The delay before
// re-attempt i (0-indexed from the first retry) is InitialDelay * 2^i and
// there is no delay after the final attempt. An AuthError aborts the retry
// loop immediately.
func (c *HttpClient) Do(ctx context.Context, client *http.Client, method string, contentType string, url string, body []byte) ([]byte, error) {
	retries := c.Retries
	if retries < 1 {
		retries = 1
	}
	var last error
	for attempt := 0; attempt < retries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(c.InitialDelay << (attempt - 1)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		buf, err := c.httpInvoke(ctx, client, method, contentType, url, reader)
		if err == nil {
			return buf, nil
		}
		var authErr *AuthError
		if errors.As(err, &authErr) {
			return nil, err
		}
		last = err
	}
	return nil, &TransientError{Attempts: retries, Last: last}
}

func (c *HttpClient) GetJson(ctx context.Context, client *http.Client, url string, res any) error {
	buf, err := c.Do(ctx, client, http.MethodGet, "", url, nil)
	if err != nil {
		return err
	}
	if res == nil {
		return nil
	}
	return json.Unmarshal(buf, res)
}

func (c *HttpClient) PostJson(ctx context.Context, client *http.Client, url string, req any, res any) error {
	return c.requestResponseJson(ctx, client, http.MethodPost, url, req, res)
}

func (c *HttpClient) PutJson(ctx context.Context, client *http.Client, url string, req any, res any) error {
	return c.requestResponseJson(ctx, client, http.MethodPut, url, req, res)
}

func (c *HttpClient) Delete(ctx context.Context, client *http.Client, url string) error {
	_, err := c.Do(ctx, client, http.MethodDelete, "", url, nil)
	return err
}

// PostForm submits an application/x-www-form-urlencoded body, as the login
// endpoint requires.
func (c *HttpClient) PostForm(ctx context.Context, client *http.Client, url string, form string, res any) error {
	buf, err := c.Do(ctx, client, http.MethodPost, ContentTypeFormUrlencoded, url, []byte(form))
	if err != nil {
		return err
	}
	if res == nil {
		return nil
	}
	return json.Unmarshal(buf, res)
}

func (c *HttpClient) requestResponseJson(ctx context.Context, client *http.Client, method string, url string, req any, res any) error {
	var body []byte
	if req != nil {
		buf, err := json.Marshal(req)
		if err != nil {
			return fmt.Errorf("marshal failed: %v", err)
		}
		body = buf
	}
	resbuf, err := c.Do(ctx, client, method, contentTypeFor(body), url, body)
	if err != nil {
		return err
	}
	if res == nil {
		return nil
	}
	return json.Unmarshal(resbuf, res)
}

func contentTypeFor(body []byte) string {
	if body == nil {
		return ""
	}
	return ContentTypeApplicationJson
}

type LimitErrorReader struct {
	reader *io.LimitedReader
}

func NewLimitErrorReader(r io.Reader, limit int64) *LimitErrorReader {
	return &LimitErrorReader{
		reader: &io.LimitedReader{R: r, N: limit},
	}
}

func (ler *LimitErrorReader) Read(p []byte) (int, error) {
	if ler.reader.N <= 0 {
		return 0, errors.New("response body too large")
	}
	return ler.reader.Read(p)
}
