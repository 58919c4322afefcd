// Package holded is a typed client for the Holded invoicing API. It is the
// invoice source of the recurring-task run and feeds the catalog mirror.
package holded

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	logx "tablero/pkg/logx"
)

const defaultBaseURL = "https://api.holded.com/api/invoicing/v1"

type Config struct {
	APIKey  string
	BaseURL string
}

type Client struct {
	hc      *http.Client
	baseURL string
	apiKey  string
	log     logx.Logger
}

func New(cfg Config, log logx.Logger) *Client {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = defaultBaseURL
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Client{
		hc:      &http.Client{Timeout: 30 * time.Second},
		baseURL: base,
		apiKey:  strings.TrimSpace(cfg.APIKey),
		log:     log,
	}
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("key", c.apiKey)

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("holded: get %s: %w", path, err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("holded: read %s: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("holded: %s: status %d", path, resp.StatusCode)
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("holded: decode %s: %w", path, err)
	}
	return nil
}

// DueRecurringInvoices returns the invoices issued inside [from, to].
// The caller filters lines down to recurring services.
func (c *Client) DueRecurringInvoices(ctx context.Context, from, to time.Time) ([]Invoice, error) {
	q := url.Values{}
	q.Set("starttmp", strconv.FormatInt(from.Unix(), 10))
	q.Set("endtmp", strconv.FormatInt(to.Unix(), 10))

	var out []Invoice
	if err := c.get(ctx, "/documents/invoice", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListContacts returns all contacts, for the catalog mirror.
func (c *Client) ListContacts(ctx context.Context) ([]Contact, error) {
	var out []Contact
	if err := c.get(ctx, "/contacts", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListServices returns all products/services, for the catalog mirror.
func (c *Client) ListServices(ctx context.Context) ([]Service, error) {
	var out []Service
	if err := c.get(ctx, "/products", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}
