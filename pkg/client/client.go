// Package client is a Go client for the records REST API.
package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/hashicorp/go-hclog"
)

const (
	// DefaultOptionsTTL is how long collection options are cached.
	DefaultOptionsTTL = 24 * time.Hour

	// DefaultTimeout is the request timeout of the default HTTP client.
	DefaultTimeout = 30 * time.Second

	mediaTypeJSON = "application/json"
)

// Config configures a Client.
type Config struct {
	// BaseURL is the API root, for example "https://localhost:5000/api/".
	BaseURL string

	// HTTPClient is used for all requests. When nil a client with
	// DefaultTimeout is created.
	HTTPClient *http.Client

	// TLSSkipVerify disables certificate verification on the default HTTP
	// client.
	TLSSkipVerify bool

	// OptionsTTL overrides DefaultOptionsTTL.
	OptionsTTL time.Duration

	// UILink builds the Links.UI route of listed records. Defaults to
	// DefaultUILink.
	UILink UILinkTransformer

	// RecordTransformer, if set, is applied to every listed record before
	// its UI link is set.
	RecordTransformer RecordTransformer

	Logger hclog.Logger
}

// Validate validates the client configuration.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.BaseURL, validation.Required, is.URL),
	)
}

// Client talks to the records REST API.
type Client struct {
	baseURL           string
	http              *http.Client
	optionsTTL        time.Duration
	uiLink            UILinkTransformer
	recordTransformer RecordTransformer
	log               hclog.Logger

	// now is replaced in tests.
	now func() time.Time

	mu      sync.Mutex
	options map[string]cachedOptions
}

type cachedOptions struct {
	options   *Options
	fetchedAt time.Time
}

// New creates a new client.
func New(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid client config: %w", err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		if cfg.TLSSkipVerify {
			transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
		}
		httpClient = &http.Client{
			Timeout:   DefaultTimeout,
			Transport: transport,
		}
	}
	ttl := cfg.OptionsTTL
	if ttl == 0 {
		ttl = DefaultOptionsTTL
	}
	uiLink := cfg.UILink
	if uiLink == nil {
		uiLink = DefaultUILink
	}
	log := cfg.Logger
	if log == nil {
		log = hclog.NewNullLogger()
	}

	return &Client{
		baseURL:           cfg.BaseURL,
		http:              httpClient,
		optionsTTL:        ttl,
		uiLink:            uiLink,
		recordTransformer: cfg.RecordTransformer,
		log:               log.Named("client"),
		now:               time.Now,
		options:           make(map[string]cachedOptions),
	}, nil
}

// BaseURL returns the API root of the client.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// CollectionURL returns the URL of a collection. It always ends with "/".
func (c *Client) CollectionURL(collection string) string {
	return ConcatenateURL(c.baseURL, collection, "")
}

// RecordURL returns the URL of a record in a collection.
func (c *Client) RecordURL(collection, id string) string {
	return ConcatenateURL(c.baseURL, collection, id)
}

type request struct {
	method string
	url    string
	body   any
	header http.Header
	expect int
	out    any
}

func (c *Client) do(ctx context.Context, r request) error {
	var body io.Reader
	if r.body != nil {
		b, err := json.Marshal(r.body)
		if err != nil {
			return &Error{
				Type: ErrorUnknown,
				Err:  fmt.Errorf("error encoding request body: %w", err),
			}
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, r.url, body)
	if err != nil {
		return &Error{
			Type: ErrorUnknown,
			Err:  fmt.Errorf("error creating request: %w", err),
		}
	}
	for k, v := range r.header {
		req.Header[k] = v
	}
	req.Header.Set("Accept", mediaTypeJSON)
	if r.body != nil {
		req.Header.Set("Content-Type", mediaTypeJSON+"; charset=utf-8")
	}

	c.log.Debug("sending request", "method", r.method, "url", r.url)
	resp, err := c.http.Do(req)
	if err != nil {
		return &Error{Type: ErrorResponseMissing, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != r.expect {
		return responseError(resp)
	}
	if r.out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(r.out); err != nil {
		return &Error{
			Type:   ErrorUnknown,
			Status: resp.StatusCode,
			Err:    fmt.Errorf("error decoding response body: %w", err),
		}
	}
	return nil
}

// Get fetches a single record.
func (c *Client) Get(ctx context.Context, collection, id string) (*Record, error) {
	var rec Record
	if err := c.do(ctx, request{
		method: http.MethodGet,
		url:    c.RecordURL(collection, id),
		expect: http.StatusOK,
		out:    &rec,
	}); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Create posts metadata to a collection and returns the created record.
// Any status other than 201 Created is an error.
func (c *Client) Create(ctx context.Context, collection string, metadata any) (*Record, error) {
	var rec Record
	if err := c.do(ctx, request{
		method: http.MethodPost,
		url:    c.CollectionURL(collection),
		body:   metadata,
		expect: http.StatusCreated,
		out:    &rec,
	}); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Update replaces the metadata of a record. A non-zero revision is sent as
// If-Match so that the update fails if the record changed since.
func (c *Client) Update(ctx context.Context, collection, id string, metadata any, revision int) (*Record, error) {
	header := http.Header{}
	if revision > 0 {
		header.Set("If-Match", strconv.Quote(strconv.Itoa(revision)))
	}

	var rec Record
	if err := c.do(ctx, request{
		method: http.MethodPut,
		url:    c.RecordURL(collection, id),
		body:   metadata,
		header: header,
		expect: http.StatusOK,
		out:    &rec,
	}); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Delete deletes a record.
func (c *Client) Delete(ctx context.Context, collection, id string) error {
	return c.do(ctx, request{
		method: http.MethodDelete,
		url:    c.RecordURL(collection, id),
		expect: http.StatusNoContent,
	})
}
