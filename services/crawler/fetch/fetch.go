// Package fetch retrieves raw pages from the review blog. It owns the
// source-wide rate limit and the retry policy, so every other component
// can treat the network as a plain function from url to document.
package fetch

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/url"
	"time"

	"forkmap-backend/lib/telemetry"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/net/html/charset"
	"golang.org/x/time/rate"
)

var tracer = otel.Tracer("forkmap.services.crawler.fetch")

// the blog serves an interstitial to clients without a browser UA
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/72.0.3626.109 Safari/537.3"

type ErrorKind int

const (
	// worth retrying: timeouts, connection failures, 429 and 5xx responses
	KindTransient ErrorKind = iota
	// not worth retrying: malformed urls and other 4xx responses
	KindTerminal
)

func (k ErrorKind) String() string {
	if k == KindTerminal {
		return "terminal"
	}
	return "transient"
}

type Error struct {
	Kind   ErrorKind
	URL    string
	Status int
	Err    error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: %s (HTTP %d)", e.URL, e.Kind, e.Status)
	}
	return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// RawDocument is the immutable result of one successful fetch. Only its
// ContentHash outlives the run, for change detection.
type RawDocument struct {
	SourceURL   string
	FetchedAt   time.Time
	Body        string
	ContentHash string
}

type Options struct {
	// index page of the blog, e.g. "https://example.com"
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
	// retries on transient failures, exponential backoff between attempts
	MaxRetries int
	// minimum interval between any two requests to the source,
	// shared across all workers
	MinInterval time.Duration
}

type Client struct {
	http    *resty.Client
	limiter *rate.Limiter
	baseURL *url.URL
}

func NewClient(opts Options) (*Client, error) {
	baseURL, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}

	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = time.Second * 30
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.MinInterval > 0 {
		limiter = rate.NewLimiter(rate.Every(opts.MinInterval), 1)
	}

	client := resty.New()
	client.SetHeader("user-agent", userAgent)
	client.SetTimeout(timeout)
	client.SetRetryCount(opts.MaxRetries)
	client.SetRetryWaitTime(time.Millisecond * 500)
	client.SetRetryMaxWaitTime(time.Second * 10)
	client.AddRetryCondition(func(res *resty.Response, err error) bool {
		if err != nil {
			return true
		}
		return res.StatusCode() == 429 || res.StatusCode() >= 500
	})
	// the rate limit applies to every attempt, retries included
	client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		return limiter.Wait(req.Context())
	})

	telemetry.InstrumentResty(client, "forkmap.services.crawler.fetch.http")

	return &Client{
		http:    client,
		limiter: limiter,
		baseURL: baseURL,
	}, nil
}

// Fetch GETs a single url and returns its decoded body. Failures come
// back as *Error so callers can tell transient from terminal.
func (c *Client) Fetch(ctx context.Context, rawurl string) (RawDocument, error) {
	ctx, span := tracer.Start(ctx, "Fetch")
	defer span.End()
	span.SetAttributes(attribute.String("url", rawurl))

	link, err := url.Parse(rawurl)
	if err != nil || !link.IsAbs() {
		if err == nil {
			err = fmt.Errorf("url is not absolute")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "malformed url")
		return RawDocument{}, &Error{Kind: KindTerminal, URL: rawurl, Err: err}
	}

	res, err := c.http.R().
		SetContext(ctx).
		Get(rawurl)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		return RawDocument{}, &Error{Kind: KindTransient, URL: rawurl, Err: err}
	}

	status := res.StatusCode()
	switch {
	case status >= 200 && status < 300:
	case status == 429 || status >= 500:
		span.SetStatus(codes.Error, "transient status")
		return RawDocument{}, &Error{Kind: KindTransient, URL: rawurl, Status: status}
	default:
		span.SetStatus(codes.Error, "terminal status")
		return RawDocument{}, &Error{Kind: KindTerminal, URL: rawurl, Status: status}
	}

	body, err := decodeBody(res.Body(), res.Header().Get("Content-Type"))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to decode body")
		return RawDocument{}, &Error{Kind: KindTerminal, URL: rawurl, Err: err}
	}

	sum := sha256.Sum256(res.Body())
	return RawDocument{
		SourceURL:   rawurl,
		FetchedAt:   time.Now(),
		Body:        body,
		ContentHash: hex.EncodeToString(sum[:]),
	}, nil
}

// converts responses in legacy encodings to utf-8 using the
// content-type header, falling back to the raw bytes.
func decodeBody(raw []byte, contentType string) (string, error) {
	reader, err := charset.NewReader(bytes.NewReader(raw), contentType)
	if err != nil {
		return string(raw), nil
	}
	decoded, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}
