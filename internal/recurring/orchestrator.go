// Package recurring implements the recurring-service task generation run:
// for every invoiced recurring service it materializes next month's task
// items on the client's Monday board from a template group, with
// business-day-adjusted dates and deduplicated client reminders.
package recurring

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"regexp"
	"strconv"
	"strings"
	"time"

	"tablero/internal/holded"
	"tablero/internal/monday"
	"tablero/internal/storage"
	logx "tablero/pkg/logx"
)

const (
	ServiceSocial      = "redessociales"
	ServiceMaintenance = "mantenimiento"

	dayFormat = "2006-01-02"
)

// spanishMonths indexes time.Month (1-based) to the capitalized local name
// used in destination group titles ("Marzo 2025").
var spanishMonths = [...]string{
	"", "Enero", "Febrero", "Marzo", "Abril", "Mayo", "Junio",
	"Julio", "Agosto", "Septiembre", "Octubre", "Noviembre", "Diciembre",
}

// MonthTitle renders the destination-group title for a month.
func MonthTitle(t time.Time) string {
	return fmt.Sprintf("%s %d", spanishMonths[int(t.Month())], t.Year())
}

var (
	leadingIDRe        = regexp.MustCompile(`^\s*(\d+)`)
	maintenanceBoardRe = regexp.MustCompile(`(?i)mantenimiento\s*$`)
	socialBoardRe      = regexp.MustCompile(`(?i)rrss\s*$`)
)

// leadingID extracts the numeric id prefix of a board/group name.
func leadingID(name string) (int64, bool) {
	m := leadingIDRe.FindStringSubmatch(name)
	if m == nil {
		return 0, false
	}
	id, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

type Deps struct {
	Boards   BoardPort
	Calendar BusinessCalendar
	Invoices InvoiceSource
	Catalog  Catalog
	Notifier Notifier      // optional
	Audit    storage.Store // optional
	Log      logx.Logger
}

type Orchestrator struct {
	cfg Config

	boards   BoardPort
	cal      BusinessCalendar
	invoices InvoiceSource
	catalog  Catalog
	notifier Notifier
	audit    storage.Store
	log      logx.Logger

	rng *rand.Rand
	now func() time.Time
}

func New(cfg Config, deps Deps) *Orchestrator {
	log := deps.Log
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Orchestrator{
		cfg:      cfg,
		boards:   deps.Boards,
		cal:      deps.Calendar,
		invoices: deps.Invoices,
		catalog:  deps.Catalog,
		notifier: deps.Notifier,
		audit:    deps.Audit,
		log:      log,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		now:      time.Now,
	}
}

// run is the state of one execution: target month, the board listing, and
// the reminder dedup set. It is created in Run and discarded when it returns.
type run struct {
	targetMonth time.Time
	boards      []monday.Board
	notified    map[string]struct{}
}

type clientResult struct {
	ok   int
	fail int
	err  string
}

func (r *clientResult) fails(msg string) {
	r.fail++
	if r.err == "" {
		r.err = msg
	}
}

// Run executes one full generation pass. Only source-level failures
// (invoice listing, board listing) abort the run; everything below that is
// logged per client/item and processing continues.
func (o *Orchestrator) Run(ctx context.Context) error {
	now := o.now()
	started := time.Now()

	// Adjustment near year end may cross into January.
	o.cal.Warm(ctx, now.Year(), now.Year()+1)

	from := now.AddDate(0, -2, 0)
	to := now.AddDate(0, -1, 0)
	invoices, err := o.invoices.DueRecurringInvoices(ctx, from, to)
	if err != nil {
		return fmt.Errorf("listing due invoices: %w", err)
	}

	boards, err := o.boards.ListBoards(ctx)
	if err != nil {
		return fmt.Errorf("listing boards: %w", err)
	}

	firstOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	r := &run{
		targetMonth: firstOfMonth.AddDate(0, 1, 0),
		boards:      boards,
		notified:    map[string]struct{}{},
	}

	var totalOK, totalFail, processed int
	for _, inv := range invoices {
		client, err := o.catalog.ClientByHoldedRef(ctx, inv.ContactRef)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				o.log.Debug("invoice contact not mirrored, skipping", logx.String("contact", inv.ContactRef))
			} else {
				o.log.Warn("client lookup failed", logx.String("contact", inv.ContactRef), logx.Err(err))
			}
			continue
		}
		if client.InternalID == 0 {
			o.log.Debug("client not linked to an internal id, skipping", logx.String("client", client.Name))
			continue
		}

		for _, line := range inv.Products {
			svc, err := o.catalog.ServiceByHoldedRef(ctx, line.ServiceRef)
			if err != nil {
				if !errors.Is(err, storage.ErrNotFound) {
					o.log.Warn("service lookup failed", logx.String("service", line.ServiceRef), logx.Err(err))
				}
				continue
			}
			if !svc.Recurring {
				continue
			}

			var res clientResult
			clientStart := time.Now()
			switch svc.Type {
			case ServiceSocial:
				res = o.runSocial(ctx, r, client, line)
			case ServiceMaintenance:
				res = o.runMaintenance(ctx, r, client, line)
			default:
				// Unrecognized service types are skipped without remote calls.
				continue
			}

			processed++
			totalOK += res.ok
			totalFail += res.fail
			o.appendAudit(ctx, storage.AuditEntry{
				Job:    "recurring",
				Client: client.Name,
				OK:     res.ok,
				Fail:   res.fail,
				Error:  res.err,
				TookMS: time.Since(clientStart).Milliseconds(),
			})
		}
	}

	summary := fmt.Sprintf("Tareas recurrentes %s: %d servicios procesados, %d items ok, %d errores (%.1fs)",
		MonthTitle(r.targetMonth), processed, totalOK, totalFail, time.Since(started).Seconds())
	o.log.Info("recurring run finished",
		logx.Int("services", processed), logx.Int("ok", totalOK), logx.Int("fail", totalFail))
	o.notify(ctx, summary)
	return nil
}

func (o *Orchestrator) notify(ctx context.Context, text string) {
	if o.notifier == nil || o.cfg.SummaryChannel == "" {
		return
	}
	if err := o.notifier.SendText(ctx, o.cfg.SummaryChannel, text); err != nil {
		o.log.Warn("run summary post failed", logx.Err(err))
	}
}

func (o *Orchestrator) appendAudit(ctx context.Context, e storage.AuditEntry) {
	if o.audit == nil {
		return
	}
	if err := o.audit.AppendAudit(ctx, e); err != nil {
		o.log.Warn("audit append failed", logx.Err(err))
	}
}

// clientBoard finds the client's own board: leading numeric id equal to the
// client's internal id, filtered by the naming-suffix pattern of the branch.
func clientBoard(boards []monday.Board, internalID int64, suffix *regexp.Regexp) (monday.Board, bool) {
	for _, b := range boards {
		id, ok := leadingID(b.Name)
		if !ok || id != internalID {
			continue
		}
		if suffix.MatchString(strings.TrimSpace(b.Name)) {
			return b, true
		}
	}
	return monday.Board{}, false
}

// templateBoard finds the board whose name contains the configured pattern,
// case-insensitively.
func templateBoard(boards []monday.Board, pattern string) (monday.Board, bool) {
	p := strings.ToLower(strings.TrimSpace(pattern))
	if p == "" {
		return monday.Board{}, false
	}
	for _, b := range boards {
		if strings.Contains(strings.ToLower(b.Name), p) {
			return b, true
		}
	}
	return monday.Board{}, false
}

// cleanupGroup deletes a duplicated template group. It runs unconditionally
// after processing, success or not; duplicates must never outlive the client.
func (o *Orchestrator) cleanupGroup(ctx context.Context, boardID, groupID string) {
	if groupID == "" {
		return
	}
	if err := o.boards.DeleteGroup(ctx, boardID, groupID); err != nil {
		o.log.Warn("duplicated group cleanup failed",
			logx.String("board", boardID), logx.String("group", groupID), logx.Err(err))
	}
}

// createNotificationItem creates the "notify the client" reminder two
// business days before due, at most once per (board, reminder date) per run.
func (o *Orchestrator) createNotificationItem(ctx context.Context, r *run, boardID, groupID, relatedItemID, name string, due time.Time) {
	remind := o.cal.PreviousBusinessDay(due.AddDate(0, 0, -2))
	key := boardID + "_" + remind.Format(dayFormat)
	if _, seen := r.notified[key]; seen {
		return
	}

	if groupID == "" {
		g, err := o.boards.ItemGroup(ctx, relatedItemID)
		if err != nil {
			o.log.Warn("reminder group lookup failed",
				logx.String("item", relatedItemID), logx.Err(err))
			return
		}
		groupID = g
	}

	itemID, err := o.boards.CreateItem(ctx, boardID, groupID, "Avisar al cliente: "+name)
	if err != nil {
		o.log.Warn("reminder item creation failed",
			logx.String("board", boardID), logx.String("name", name), logx.Err(err))
		return
	}
	if err := o.boards.ChangeColumnValue(ctx, boardID, itemID, o.cfg.DateColumnID, monday.DateValue(remind)); err != nil {
		o.log.Warn("reminder date column failed",
			logx.String("board", boardID), logx.String("item", itemID), logx.Err(err))
	}
	r.notified[key] = struct{}{}
}

// parseEstimatedDay parses the estimated-date text of a social template item:
// either a single day of month or an inclusive "start-end" range, from which
// one day is drawn at random. The draw happens once per template item.
func parseEstimatedDay(text string, rng *rand.Rand) (int, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return 0, errors.New("empty estimated date")
	}
	if lo, hi, ok := strings.Cut(s, "-"); ok {
		a, err := strconv.Atoi(strings.TrimSpace(lo))
		if err != nil {
			return 0, fmt.Errorf("invalid range start %q", lo)
		}
		b, err := strconv.Atoi(strings.TrimSpace(hi))
		if err != nil {
			return 0, fmt.Errorf("invalid range end %q", hi)
		}
		if a < 1 || b > 31 || a > b {
			return 0, fmt.Errorf("invalid day range %q", s)
		}
		return a + rng.Intn(b-a+1), nil
	}
	day, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid day %q", s)
	}
	if day < 1 || day > 31 {
		return 0, fmt.Errorf("day out of range %q", s)
	}
	return day, nil
}

func (o *Orchestrator) lineLog(client storage.Client, line holded.ProductLine) logx.Logger {
	return o.log.With(logx.String("client", client.Name), logx.String("product", line.Name))
}
