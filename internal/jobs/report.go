package jobs

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"tablero/internal/monday"
	"tablero/internal/recurring"
	logx "tablero/pkg/logx"
)

const reportDayFormat = "2006-01-02"

// ReportBoards is the board read surface the report needs.
type ReportBoards interface {
	ListBoards(ctx context.Context) ([]monday.Board, error)
	BoardItems(ctx context.Context, boardID string) ([]monday.Item, error)
}

type ReportConfig struct {
	// Channel receives the report.
	Channel string
	// Boards are name patterns matched case-insensitively against board names.
	Boards []string
	// Days is the look-ahead window in business days.
	Days         int
	DateColumnID string
}

// Report posts the upcoming-tasks digest: every dated item on the configured
// boards falling inside the next N business days, grouped by board.
type Report struct {
	cfg    ReportConfig
	boards ReportBoards
	cal    recurring.BusinessCalendar
	sink   recurring.Notifier
	log    logx.Logger
	now    func() time.Time
}

func NewReport(cfg ReportConfig, boards ReportBoards, cal recurring.BusinessCalendar, sink recurring.Notifier, log logx.Logger) *Report {
	if cfg.Days <= 0 {
		cfg.Days = 7
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Report{cfg: cfg, boards: boards, cal: cal, sink: sink, log: log, now: time.Now}
}

type reportLine struct {
	board string
	date  time.Time
	name  string
}

func (r *Report) Run(ctx context.Context) error {
	if r.sink == nil || r.cfg.Channel == "" {
		return nil
	}
	now := r.now()
	r.cal.Warm(ctx, now.Year(), now.Year()+1)

	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	to := from
	for i := 0; i < r.cfg.Days; i++ {
		to = r.cal.NextBusinessDay(to.AddDate(0, 0, 1))
	}

	boards, err := r.boards.ListBoards(ctx)
	if err != nil {
		return fmt.Errorf("listing boards: %w", err)
	}

	var lines []reportLine
	for _, b := range boards {
		if !r.matches(b.Name) {
			continue
		}
		items, err := r.boards.BoardItems(ctx, b.ID)
		if err != nil {
			r.log.Warn("board items listing failed", logx.String("board", b.Name), logx.Err(err))
			continue
		}
		for _, it := range items {
			d, ok := parseItemDate(it.ColumnText(r.cfg.DateColumnID))
			if !ok || d.Before(from) || d.After(to) {
				continue
			}
			lines = append(lines, reportLine{board: b.Name, date: d, name: it.Name})
		}
	}

	sort.Slice(lines, func(i, j int) bool {
		if !lines[i].date.Equal(lines[j].date) {
			return lines[i].date.Before(lines[j].date)
		}
		if lines[i].board != lines[j].board {
			return lines[i].board < lines[j].board
		}
		return lines[i].name < lines[j].name
	})

	text := renderReport(lines, from, to)
	if err := r.sink.SendText(ctx, r.cfg.Channel, text); err != nil {
		return fmt.Errorf("posting report: %w", err)
	}
	r.log.Info("upcoming-tasks report posted", logx.Int("items", len(lines)))
	return nil
}

func (r *Report) matches(boardName string) bool {
	if len(r.cfg.Boards) == 0 {
		return false
	}
	name := strings.ToLower(boardName)
	for _, p := range r.cfg.Boards {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" && strings.Contains(name, p) {
			return true
		}
	}
	return false
}

func parseItemDate(text string) (time.Time, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}, false
	}
	d, err := time.ParseInLocation(reportDayFormat, text, time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}

func renderReport(lines []reportLine, from, to time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Tareas próximas %s → %s", from.Format(reportDayFormat), to.Format(reportDayFormat))
	if len(lines) == 0 {
		b.WriteString("\nSin tareas en la ventana.")
		return b.String()
	}
	for _, l := range lines {
		fmt.Fprintf(&b, "\n• %s — [%s] %s", l.date.Format(reportDayFormat), l.board, l.name)
	}
	return b.String()
}
