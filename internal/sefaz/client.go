// Package sefaz talks to the tax authority's regional web services:
// endpoint resolution, transport envelope, closed status taxonomy, and
// bounded retry of transport failures.
package sefaz

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/rezonia/nfe-engine/internal/model"
)

// Authority is the capability contract of a fiscal document provider.
// Variants are selected by configuration; there is no runtime
// fallback between them.
type Authority interface {
	Issue(ctx context.Context, uf string, env model.Environment, signedXML []byte) (*Receipt, error)
	Event(ctx context.Context, uf string, env model.Environment, signedXML []byte) (*Receipt, error)
	GetStatus(ctx context.Context, uf string, env model.Environment, accessKey string) (*Receipt, error)
}

const (
	// DefaultTimeout bounds a single web-service call
	DefaultTimeout = 30 * time.Second
	// MaxRetries bounds transport-level retries after the first attempt
	MaxRetries = 3
)

// backoffDelays between transport retries, one per retry
var backoffDelays = []time.Duration{2 * time.Second, 4 * time.Second, 6 * time.Second}

// Client is the real SOAP submission client
type Client struct {
	http  *http.Client
	clock clockwork.Clock
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithHTTPClient injects the HTTP client
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.http = hc
	}
}

// WithTimeout sets the per-call timeout
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.http.Timeout = d
	}
}

// WithClock injects the clock used for retry backoff
func WithClock(clock clockwork.Clock) ClientOption {
	return func(c *Client) {
		c.clock = clock
	}
}

// NewClient creates a submission client
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		http:  &http.Client{Timeout: DefaultTimeout},
		clock: clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Issue submits a signed document to the jurisdiction's authorization
// service
func (c *Client) Issue(ctx context.Context, uf string, env model.Environment, signedXML []byte) (*Receipt, error) {
	ep := ResolveEndpoint(uf, env)
	return c.submit(ctx, ep.Authorization, signedXML)
}

// Event submits a signed event to the jurisdiction's event service
func (c *Client) Event(ctx context.Context, uf string, env model.Environment, signedXML []byte) (*Receipt, error) {
	ep := ResolveEndpoint(uf, env)
	return c.submit(ctx, ep.Event, signedXML)
}

// GetStatus queries the authority for a document's current protocol
// status
func (c *Client) GetStatus(ctx context.Context, uf string, env model.Environment, accessKey string) (*Receipt, error) {
	ep := ResolveEndpoint(uf, env)
	query := []byte(fmt.Sprintf(
		`<consSitNFe xmlns="http://www.portalfiscal.inf.br/nfe" versao="4.00"><tpAmb>%d</tpAmb><xServ>CONSULTAR</xServ><chNFe>%s</chNFe></consSitNFe>`,
		env, accessKey))
	return c.submit(ctx, ep.Authorization, query)
}

// submit wraps, posts with bounded retry, and parses the verdict.
// Transport failures retry with backoff; a parsed rejection is
// terminal and returned as ProtocolRejection alongside the receipt.
func (c *Client) submit(ctx context.Context, url string, payload []byte) (*Receipt, error) {
	envelope, err := WrapEnvelope(payload)
	if err != nil {
		return nil, model.NewValidationError("payload", nil, err.Error())
	}

	var lastErr error
	for attempt := 1; attempt <= 1+MaxRetries; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil, model.NewNetworkError(url, attempt-1, ctx.Err())
			case <-c.clock.After(backoffDelays[attempt-2]):
			}
		}

		body, err := c.post(ctx, url, envelope)
		if err != nil {
			lastErr = err
			continue
		}

		receipt, err := ParseResponse(body)
		if err != nil {
			// A response we cannot parse is not retryable garbage to
			// paper over; surface it.
			return nil, model.NewValidationError("response", nil, err.Error())
		}
		if !Accepted(receipt.Code) {
			return receipt, model.NewProtocolRejection(receipt.Code, receipt.Reason)
		}
		return receipt, nil
	}
	return nil, model.NewNetworkError(url, 1+MaxRetries, lastErr)
}

func (c *Client) post(ctx context.Context, url string, envelope []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(envelope))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", `application/soap+xml; charset=utf-8`)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("authority returned HTTP %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
