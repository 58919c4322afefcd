package storage

import (
	"context"
	"errors"
	"time"
)

var (
	ErrDisabled = errors.New("storage disabled")
	ErrNotFound = errors.New("not found")
)

// Config configures storage. If Path is empty, storage is disabled.
type Config struct {
	Path        string
	BusyTimeout time.Duration // sqlite busy_timeout; 0 means default
}

// Client is a mirrored Holded contact.
// InternalID is the agency-internal numeric id embedded in board names;
// 0 means the contact is not linked and must be skipped by the jobs.
type Client struct {
	HoldedRef  string
	InternalID int64
	Name       string
	UpdatedAt  time.Time
}

// Service is a mirrored Holded product/service.
// Type is one of "redessociales", "mantenimiento", or "" (unrecognized).
type Service struct {
	HoldedRef string
	Name      string
	Recurring bool
	Type      string
	UpdatedAt time.Time
}

// AuditEntry records one processed client (or whole-job summary) per run.
// Keep it compact and schema-stable.
type AuditEntry struct {
	At     time.Time
	Job    string
	Client string
	OK     int
	Fail   int
	Error  string
	TookMS int64
}

// Store is the persistence API used by the services.
type Store interface {
	UpsertClient(ctx context.Context, c Client) error
	ClientByHoldedRef(ctx context.Context, ref string) (Client, error)
	UpsertService(ctx context.Context, s Service) error
	ServiceByHoldedRef(ctx context.Context, ref string) (Service, error)

	PutHolidays(ctx context.Context, country string, year int, days []string, fetchedAt time.Time) error
	GetHolidays(ctx context.Context, country string, year int) (days []string, fetchedAt time.Time, ok bool, err error)

	AppendAudit(ctx context.Context, e AuditEntry) error
	Close() error
}
