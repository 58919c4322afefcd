package recurring

import (
	"context"
	"time"

	"tablero/internal/holded"
	"tablero/internal/monday"
	"tablero/internal/storage"
)

// BoardPort is the board/item capability set the orchestrator drives.
// Each call may fail independently; the orchestrator logs and moves on.
type BoardPort interface {
	ListBoards(ctx context.Context) ([]monday.Board, error)
	Groups(ctx context.Context, boardID string) ([]monday.Group, error)
	CreateGroup(ctx context.Context, boardID, title string) (string, error)
	DuplicateGroup(ctx context.Context, boardID, groupID, newTitle string) (string, error)
	DeleteGroup(ctx context.Context, boardID, groupID string) error
	GroupItems(ctx context.Context, boardID, groupID string) ([]monday.Item, error)
	MoveItemToBoard(ctx context.Context, destBoardID, destGroupID, itemID string) (string, error)
	DuplicateItem(ctx context.Context, boardID, itemID string) (monday.Item, error)
	CreateItem(ctx context.Context, boardID, groupID, name string) (string, error)
	ChangeColumnValue(ctx context.Context, boardID, itemID, columnID, value string) error
	DeleteItem(ctx context.Context, itemID string) error
	ItemGroup(ctx context.Context, itemID string) (string, error)
}

// BusinessCalendar adjusts dates onto business days. Warm must be called
// before the pure methods are trusted for a given year.
type BusinessCalendar interface {
	Warm(ctx context.Context, years ...int)
	NextBusinessDay(t time.Time) time.Time
	PreviousBusinessDay(t time.Time) time.Time
}

// InvoiceSource yields the invoices whose recurring lines drive a run.
type InvoiceSource interface {
	DueRecurringInvoices(ctx context.Context, from, to time.Time) ([]holded.Invoice, error)
}

// Catalog resolves Holded references to mirrored local records.
type Catalog interface {
	ClientByHoldedRef(ctx context.Context, ref string) (storage.Client, error)
	ServiceByHoldedRef(ctx context.Context, ref string) (storage.Service, error)
}

// Notifier is the best-effort operator sink (Slack). May be nil.
type Notifier interface {
	SendText(ctx context.Context, channel, text string) error
}

// Config carries the board/column wiring of the run.
type Config struct {
	// SocialTemplateBoard matches the social-media template board by name
	// (case-insensitive substring).
	SocialTemplateBoard string
	// MaintenanceTemplateBoardID is the fixed id of the maintenance template board.
	MaintenanceTemplateBoardID string

	DateColumnID          string
	EstimatedDateColumnID string
	FrequencyColumnID     string

	// SummaryChannel receives the end-of-run summary ("" disables it).
	SummaryChannel string
}
