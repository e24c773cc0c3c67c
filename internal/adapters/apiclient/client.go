// Package apiclient is a Go client for the public shapeshift API
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"shapeshift/internal/core/version"
	"shapeshift/internal/platform/config"
	perr "shapeshift/internal/platform/errors"
	histdom "shapeshift/internal/services/api/history/domain"
	credom "shapeshift/internal/services/credits/domain"
	gendom "shapeshift/internal/services/generation/domain"
)

const (
	baseURLDefault = "http://localhost:4000/api/v1"
	defaultTimeout = 60 * time.Second
)

// Options configures the Client
type Options struct {
	BaseURL   string
	Token     string
	UserAgent string
	Timeout   time.Duration
}

// FromConfig reads SHAPESHIFT_API_URL, SHAPESHIFT_TOKEN and SHAPESHIFT_TIMEOUT
func FromConfig(cfg config.Conf) Options {
	c := cfg.Prefix("SHAPESHIFT_")
	return Options{
		BaseURL:   c.MayString("API_URL", baseURLDefault),
		Token:     c.MayString("TOKEN", ""),
		UserAgent: version.UserAgent("shapeshift-cli"),
		Timeout:   c.MayDuration("TIMEOUT", defaultTimeout),
	}
}

// Client calls the API with a bearer token and unwraps response envelopes
type Client struct {
	http *http.Client
	opts Options
}

// New returns a Client, filling unset options with defaults
func New(o Options) *Client {
	if o.BaseURL == "" {
		o.BaseURL = baseURLDefault
	}
	o.BaseURL = strings.TrimRight(o.BaseURL, "/")
	if o.UserAgent == "" {
		o.UserAgent = version.UserAgent("shapeshift-cli")
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	return &Client{http: &http.Client{Timeout: o.Timeout}, opts: o}
}

// envelope mirrors the server envelope with the payload left raw
type envelope struct {
	StatusCode int             `json:"status_code"`
	Code       perr.ErrorCode  `json:"code"`
	Error      string          `json:"error"`
	Field      string          `json:"field"`
	Data       json.RawMessage `json:"data"`
}

// do sends one request and decodes the envelope payload into out
// Non-2xx answers become coded errors; the status is returned for callers that read data on errors
func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, out any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.opts.BaseURL+path, body)
	if err != nil {
		return 0, perr.Wrap(err, perr.ErrorCodeUnknown, "build request")
	}
	if c.opts.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.opts.Token)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.opts.UserAgent)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, perr.Wrap(err, perr.ErrorCodeUnavailable, "api request failed")
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(io.LimitReader(resp.Body, 8<<20)).Decode(&env); err != nil {
		return resp.StatusCode, perr.Wrapf(err, codeForStatus(resp.StatusCode), "api answered %d without an envelope", resp.StatusCode)
	}
	if resp.StatusCode >= 300 && env.Error != "" {
		code := env.Code
		if code == perr.ErrorCodeUnknown {
			code = codeForStatus(resp.StatusCode)
		}
		return resp.StatusCode, perr.WithField(perr.New(code, env.Error), env.Field)
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return resp.StatusCode, perr.Wrap(err, perr.ErrorCodeJSON, "decode api payload")
		}
	}
	return resp.StatusCode, nil
}

// codeForStatus is used when the server sent no code of its own
func codeForStatus(status int) perr.ErrorCode {
	switch status {
	case http.StatusUnauthorized:
		return perr.ErrorCodeUnauthorized
	case http.StatusForbidden:
		return perr.ErrorCodeForbidden
	case http.StatusNotFound:
		return perr.ErrorCodeNotFound
	case http.StatusPaymentRequired:
		return perr.ErrorCodeInsufficientCredits
	case http.StatusTooManyRequests:
		return perr.ErrorCodeTooManyRequests
	case http.StatusBadGateway:
		return perr.ErrorCodeProvider
	case http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return perr.ErrorCodeUnavailable
	}
	if status >= 400 && status < 500 {
		return perr.ErrorCodeValidation
	}
	return perr.ErrorCodeUnknown
}

// SubmitImage uploads an image; the content type is sniffed from data
func (c *Client) SubmitImage(ctx context.Context, filename string, data []byte) (gendom.Submitted, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	hdr := textproto.MIMEHeader{}
	hdr.Set("Content-Disposition", `form-data; name="image"; filename="`+escapeQuotes(filepath.Base(filename))+`"`)
	hdr.Set("Content-Type", http.DetectContentType(data))
	part, err := mw.CreatePart(hdr)
	if err != nil {
		return gendom.Submitted{}, perr.Wrap(err, perr.ErrorCodeUnknown, "build upload")
	}
	if _, err := part.Write(data); err != nil {
		return gendom.Submitted{}, perr.Wrap(err, perr.ErrorCodeUnknown, "build upload")
	}
	if err := mw.Close(); err != nil {
		return gendom.Submitted{}, perr.Wrap(err, perr.ErrorCodeUnknown, "build upload")
	}

	var out gendom.Submitted
	_, err = c.do(ctx, http.MethodPost, "/generations/image", &buf, mw.FormDataContentType(), &out)
	return out, err
}

// SubmitText submits a prompt
func (c *Client) SubmitText(ctx context.Context, in gendom.TextInput) (gendom.Submitted, error) {
	b, err := json.Marshal(in)
	if err != nil {
		return gendom.Submitted{}, perr.Wrap(err, perr.ErrorCodeJSON, "encode prompt")
	}
	var out gendom.Submitted
	_, err = c.do(ctx, http.MethodPost, "/generations/text", bytes.NewReader(b), "application/json", &out)
	return out, err
}

// Status polls one task; a task the provider lost comes back FAILED with Gone set
func (c *Client) Status(ctx context.Context, taskID string) (gendom.View, error) {
	var v gendom.View
	st, err := c.do(ctx, http.MethodGet, "/generations/"+url.PathEscape(taskID)+"/status", nil, "", &v)
	if st == http.StatusNotFound && err == nil {
		v.Gone = true
	}
	return v, err
}

// Balance returns the caller's credits
func (c *Client) Balance(ctx context.Context) (credom.Account, error) {
	var a credom.Account
	_, err := c.do(ctx, http.MethodGet, "/credits", nil, "", &a)
	return a, err
}

// Models returns a page of the caller's generations
func (c *Client) Models(ctx context.Context, page int) (histdom.ModelsPage, error) {
	var p histdom.ModelsPage
	_, err := c.do(ctx, http.MethodGet, "/history/models?page="+strconv.Itoa(max(page, 1)), nil, "", &p)
	return p, err
}

// Transactions returns a page of the caller's ledger rows
func (c *Client) Transactions(ctx context.Context, page int) (histdom.TransactionsPage, error) {
	var p histdom.TransactionsPage
	_, err := c.do(ctx, http.MethodGet, "/history/transactions?page="+strconv.Itoa(max(page, 1)), nil, "", &p)
	return p, err
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string { return quoteEscaper.Replace(s) }
