package calendar

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultBaseURL = "https://date.nager.at/api/v3"

// Holiday is one entry of the public-holiday feed.
// Counties carries ISO 3166-2 region codes when the holiday is regional.
type Holiday struct {
	Date      string   `json:"date"` // YYYY-MM-DD
	LocalName string   `json:"localName"`
	Name      string   `json:"name"`
	Counties  []string `json:"counties"`
	Global    bool     `json:"global"`
}

// Source provides the holiday set for a (country, year).
type Source interface {
	Holidays(ctx context.Context, country string, year int) ([]Holiday, error)
}

type httpSource struct {
	hc      *http.Client
	baseURL string
}

func NewHTTPSource(baseURL string) Source {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		base = defaultBaseURL
	}
	return &httpSource{
		hc:      &http.Client{Timeout: 15 * time.Second},
		baseURL: base,
	}
}

func (s *httpSource) Holidays(ctx context.Context, country string, year int) ([]Holiday, error) {
	url := fmt.Sprintf("%s/PublicHolidays/%d/%s", s.baseURL, year, strings.ToUpper(country))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("holiday feed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("holiday feed: status %d for %s/%d", resp.StatusCode, country, year)
	}

	b, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("holiday feed: read: %w", err)
	}
	var out []Holiday
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("holiday feed: decode: %w", err)
	}
	return out, nil
}
