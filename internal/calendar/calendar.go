// Package calendar answers "is this a business day" for a country, with an
// optional Madrid regional overlay, backed by a cached public-holiday feed.
//
// Failure policy: if the feed is unreachable and no cached copy exists, the
// calendar fails closed to weekends-only (it never blocks a run on the feed).
package calendar

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	logx "tablero/pkg/logx"
	"tablero/internal/storage"
)

const (
	madridCounty = "ES-MD"
	dayFormat    = "2006-01-02"

	defaultTTL  = 24 * time.Hour
	negativeTTL = time.Hour
)

type Config struct {
	Country       string
	BaseURL       string
	MadridOverlay bool
	CacheTTL      time.Duration
}

type entry struct {
	days      map[string]struct{}
	fetchedAt time.Time
	failed    bool
}

// Calendar caches holiday sets per (country, year). The Madrid overlay is
// cached under its own key so the two sets expire independently.
type Calendar struct {
	source  Source
	store   storage.Store // optional persistent cache, may be nil
	log     logx.Logger
	country string
	overlay bool
	ttl     time.Duration

	mu    sync.Mutex
	cache map[string]*entry
}

func New(cfg Config, source Source, store storage.Store, log logx.Logger) *Calendar {
	country := strings.ToUpper(strings.TrimSpace(cfg.Country))
	if country == "" {
		country = "ES"
	}
	if source == nil {
		source = NewHTTPSource(cfg.BaseURL)
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Calendar{
		source:  source,
		store:   store,
		log:     log,
		country: country,
		overlay: cfg.MadridOverlay,
		ttl:     ttl,
		cache:   map[string]*entry{},
	}
}

// Warm ensures the holiday sets for the given years are cached. Fetch
// failures are logged and negative-cached; they never fail the caller.
func (c *Calendar) Warm(ctx context.Context, years ...int) {
	for _, y := range years {
		c.ensure(ctx, c.country, y)
		if c.overlay {
			c.ensure(ctx, madridCounty, y)
		}
	}
}

// IsHoliday reports whether t falls on a cached holiday, by calendar day.
func (c *Calendar) IsHoliday(t time.Time) bool {
	key := t.Format(dayFormat)
	c.mu.Lock()
	defer c.mu.Unlock()

	if e := c.cache[cacheKey(c.country, t.Year())]; e != nil {
		if _, ok := e.days[key]; ok {
			return true
		}
	}
	if c.overlay {
		if e := c.cache[cacheKey(madridCounty, t.Year())]; e != nil {
			if _, ok := e.days[key]; ok {
				return true
			}
		}
	}
	return false
}

// NextBusinessDay returns t unchanged when it already is a business day,
// otherwise the first later day that is neither weekend nor holiday.
func (c *Calendar) NextBusinessDay(t time.Time) time.Time {
	for isWeekend(t) || c.IsHoliday(t) {
		t = t.AddDate(0, 0, 1)
	}
	return t
}

// PreviousBusinessDay is the backward counterpart of NextBusinessDay.
func (c *Calendar) PreviousBusinessDay(t time.Time) time.Time {
	for isWeekend(t) || c.IsHoliday(t) {
		t = t.AddDate(0, 0, -1)
	}
	return t
}

func isWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

func cacheKey(region string, year int) string {
	return fmt.Sprintf("%s|%d", region, year)
}

func (c *Calendar) ensure(ctx context.Context, region string, year int) {
	key := cacheKey(region, year)

	c.mu.Lock()
	e := c.cache[key]
	if e != nil {
		ttl := c.ttl
		if e.failed {
			ttl = negativeTTL
		}
		if time.Since(e.fetchedAt) < ttl {
			c.mu.Unlock()
			return
		}
	}
	c.mu.Unlock()

	days, err := c.fetch(ctx, region, year)
	now := time.Now()
	if err == nil {
		c.commit(key, days, now, false)
		if c.store != nil {
			if perr := c.store.PutHolidays(ctx, region, year, days, now); perr != nil {
				c.log.Warn("holiday cache persist failed", logx.String("region", region), logx.Int("year", year), logx.Err(perr))
			}
		}
		return
	}

	// Feed down: fall back to the persisted copy, stale or not, before
	// degrading to weekends-only.
	if c.store != nil {
		stored, fetchedAt, ok, serr := c.store.GetHolidays(ctx, region, year)
		if serr == nil && ok {
			c.log.Warn("holiday feed unavailable, using stored copy",
				logx.String("region", region), logx.Int("year", year),
				logx.Time("stored_at", fetchedAt), logx.Err(err))
			c.commit(key, stored, now, false)
			return
		}
	}

	c.log.Warn("holiday feed unavailable, treating only weekends as non-business days",
		logx.String("region", region), logx.Int("year", year), logx.Err(err))
	c.commit(key, nil, now, true)
}

func (c *Calendar) fetch(ctx context.Context, region string, year int) ([]string, error) {
	if region == madridCounty {
		return c.fetchMadrid(ctx, year)
	}
	list, err := c.source.Holidays(ctx, region, year)
	if err != nil {
		return nil, err
	}
	days := make([]string, 0, len(list))
	for _, h := range list {
		// Regional entries belong to the overlay, not the national set.
		if !h.Global && len(h.Counties) > 0 {
			continue
		}
		days = append(days, h.Date)
	}
	return days, nil
}

// fetchMadrid builds the Madrid overlay: feed entries tagged for the Madrid
// county plus the two fixed local holidays (2 May, 15 May).
func (c *Calendar) fetchMadrid(ctx context.Context, year int) ([]string, error) {
	list, err := c.source.Holidays(ctx, c.country, year)
	if err != nil {
		return nil, err
	}
	days := []string{
		fmt.Sprintf("%04d-05-02", year),
		fmt.Sprintf("%04d-05-15", year),
	}
	for _, h := range list {
		for _, county := range h.Counties {
			if strings.EqualFold(county, madridCounty) {
				days = append(days, h.Date)
				break
			}
		}
	}
	return days, nil
}

func (c *Calendar) commit(key string, days []string, at time.Time, failed bool) {
	set := make(map[string]struct{}, len(days))
	for _, d := range days {
		set[d] = struct{}{}
	}
	c.mu.Lock()
	c.cache[key] = &entry{days: set, fetchedAt: at, failed: failed}
	c.mu.Unlock()
}
