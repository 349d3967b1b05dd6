package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/trezcool/masomo-attendance/core"
	"github.com/trezcool/masomo-attendance/core/attendance"
)

const maxErrorBody = 512

// HTTPError is a non-2xx answer from the backend.
type HTTPError struct {
	Method string
	URL    string
	Code   int
	Body   string
}

func (err *HTTPError) Error() string {
	return fmt.Sprintf("%s %s: %d %s", err.Method, err.URL, err.Code, http.StatusText(err.Code))
}

// Is makes a 404 match attendance.ErrNotFound.
func (err *HTTPError) Is(target error) bool {
	return target == attendance.ErrNotFound && err.Code == http.StatusNotFound
}

// Client is the generic JSON data-access collaborator of the school backend.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewClient(conf core.BackendConfig) *Client {
	return &Client{
		baseURL: strings.TrimRight(conf.BaseURL, "/"),
		token:   conf.Token,
		http: &http.Client{
			Timeout:   conf.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// expandPath substitutes "{classId}" with the escaped class ID.
func expandPath(path, classID string) string {
	return strings.ReplaceAll(path, "{classId}", url.PathEscape(classID))
}

func (c *Client) GetJSON(ctx context.Context, path string, query url.Values) (json.RawMessage, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, errors.Wrap(err, "building request")
	}
	return c.do(req)
}

func (c *Client) PostJSON(ctx context.Context, path string, body interface{}) (json.RawMessage, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, errors.Wrap(err, "encoding request body")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, "building request")
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *Client) do(req *http.Request) (json.RawMessage, error) {
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s", req.Method, req.URL.Path)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s %s", req.Method, req.URL.Path)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		return nil, &HTTPError{Method: req.Method, URL: req.URL.Path, Code: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}
