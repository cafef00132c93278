// Package redcap implements the record export/import calls of the REDCap API
// and builds genomics records from merged panel tables.
package redcap

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Jeffail/gabs"
	"github.com/cenkalti/backoff"
	"go.uber.org/zap"
)

// Options configures a Client.
type Options struct {
	URL        string
	Token      string
	Timeout    time.Duration
	MaxRetries int
}

// Client talks to one REDCap project through its API token.
type Client struct {
	url        string
	token      string
	http       *http.Client
	maxRetries int
	logger     *zap.Logger
}

// NewClient creates a client for the project behind opts.Token.
func NewClient(opts Options) (*Client, error) {
	if opts.URL == "" {
		return nil, errors.New("redcap: API URL is empty")
	}
	if _, err := url.ParseRequestURI(opts.URL); err != nil {
		return nil, fmt.Errorf("redcap: invalid API URL: %w", err)
	}
	if opts.Token == "" {
		return nil, errors.New("redcap: API token is empty")
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}

	return &Client{
		url:        opts.URL,
		token:      opts.Token,
		http:       &http.Client{Timeout: opts.Timeout},
		maxRetries: opts.MaxRetries,
		logger:     zap.NewNop(),
	}, nil
}

// SetLogger sets the logger for retry and request messages.
func (c *Client) SetLogger(l *zap.Logger) {
	c.logger = l
}

// ExportRecords returns the flat records holding fields for the given events.
func (c *Client) ExportRecords(ctx context.Context, fields, events []string) ([]map[string]string, error) {
	form := c.form("export")
	for i, f := range fields {
		form.Set(fmt.Sprintf("fields[%d]", i), f)
	}
	for i, e := range events {
		form.Set(fmt.Sprintf("events[%d]", i), e)
	}
	form.Set("rawOrLabel", "raw")
	form.Set("exportSurveyFields", "false")

	body, err := c.post(ctx, "export records", form)
	if err != nil {
		return nil, err
	}

	parsed, err := gabs.ParseJSON(body)
	if err != nil {
		return nil, &ServiceError{Op: "export records", StatusCode: http.StatusOK, Message: "response is not JSON: " + err.Error()}
	}
	children, err := parsed.Children()
	if err != nil {
		return nil, &ServiceError{Op: "export records", StatusCode: http.StatusOK, Message: "response is not a record list"}
	}

	records := make([]map[string]string, 0, len(children))
	for i, child := range children {
		fieldsMap, err := child.ChildrenMap()
		if err != nil {
			return nil, &ServiceError{Op: "export records", StatusCode: http.StatusOK, Message: fmt.Sprintf("record %d is not an object", i)}
		}
		rec := make(map[string]string, len(fieldsMap))
		for k, v := range fieldsMap {
			rec[k] = stringValue(v.Data())
		}
		records = append(records, rec)
	}

	c.logger.Debug("exported records", zap.Int("count", len(records)))
	return records, nil
}

// ImportRecords writes records with overwriteBehavior=normal and returns the
// number of records REDCap reports as imported.
func (c *Client) ImportRecords(ctx context.Context, records []Record) (int, error) {
	data, err := json.Marshal(records)
	if err != nil {
		return 0, fmt.Errorf("encode records: %w", err)
	}

	form := c.form("import")
	form.Set("overwriteBehavior", "normal")
	form.Set("forceAutoNumber", "false")
	form.Set("returnContent", "count")
	form.Set("data", string(data))

	body, err := c.post(ctx, "import records", form)
	if err != nil {
		return 0, err
	}

	parsed, err := gabs.ParseJSON(body)
	if err != nil {
		return 0, &ServiceError{Op: "import records", StatusCode: http.StatusOK, Message: "response is not JSON: " + err.Error()}
	}
	count, err := strconv.Atoi(stringValue(parsed.Path("count").Data()))
	if err != nil {
		return 0, &ServiceError{Op: "import records", StatusCode: http.StatusOK, Message: "response has no count"}
	}

	c.logger.Debug("imported records", zap.Int("count", count))
	return count, nil
}

func (c *Client) form(action string) url.Values {
	form := url.Values{}
	form.Set("token", c.token)
	form.Set("content", "record")
	form.Set("action", action)
	form.Set("format", "json")
	form.Set("type", "flat")
	form.Set("returnFormat", "json")
	return form
}

// post sends form to the API, retrying transport errors, 429 and 5xx
// responses with exponential backoff.
func (c *Client) post(ctx context.Context, op string, form url.Values) ([]byte, error) {
	var body []byte

	attempt := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, strings.NewReader(form.Encode()))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("%s: create request: %w", op, err))
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(fmt.Errorf("%s: %w", op, err))
			}
			return &ServiceError{Op: op, Message: err.Error()}
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return &ServiceError{Op: op, StatusCode: resp.StatusCode, Message: "read body: " + err.Error()}
		}

		if resp.StatusCode != http.StatusOK {
			serr := &ServiceError{Op: op, StatusCode: resp.StatusCode, Message: errorMessage(data, resp.Status)}
			if retryable(resp.StatusCode) {
				return serr
			}
			return backoff.Permanent(serr)
		}

		body = data
		return nil
	}

	b := backoff.WithContext(backoff.WithMaxRetries(newBackOff(), uint64(c.maxRetries)), ctx)
	notify := func(err error, wait time.Duration) {
		c.logger.Warn("retrying REDCap request",
			zap.String("op", op),
			zap.Duration("wait", wait),
			zap.Error(err))
	}

	if err := backoff.RetryNotify(attempt, b, notify); err != nil {
		return nil, err
	}
	return body, nil
}

// newBackOff is replaced in tests to avoid sleeping.
var newBackOff = func() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.MaxElapsedTime = 2 * time.Minute
	return b
}

func retryable(status int) bool {
	switch status {
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return status >= 500
}

// errorMessage extracts REDCap's {"error": "..."} message, falling back to the
// raw body or HTTP status.
func errorMessage(body []byte, status string) string {
	if parsed, err := gabs.ParseJSON(body); err == nil {
		if msg, ok := parsed.Path("error").Data().(string); ok && msg != "" {
			return msg
		}
	}
	if trimmed := bytes.TrimSpace(body); len(trimmed) > 0 {
		return string(trimmed)
	}
	return status
}

func stringValue(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

// ServiceError reports a failed REDCap API call. StatusCode is 0 when no
// response was received.
type ServiceError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *ServiceError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("redcap %s failed: %s", e.Op, e.Message)
	}
	return fmt.Sprintf("redcap %s failed (HTTP %d): %s", e.Op, e.StatusCode, e.Message)
}
