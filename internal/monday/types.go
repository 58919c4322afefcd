package monday

import (
	"encoding/json"
	"fmt"
	"time"
)

// Board is a Monday board. IDs are opaque strings on the wire.
type Board struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Group is a named subdivision of a board.
type Group struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// ColumnValue is one column cell of an item. Text is the rendered value,
// Value the raw JSON payload.
type ColumnValue struct {
	ID    string `json:"id"`
	Text  string `json:"text"`
	Value string `json:"value"`
}

// Item is a task row with its column values.
type Item struct {
	ID      string        `json:"id"`
	Name    string        `json:"name"`
	Columns []ColumnValue `json:"column_values"`
}

// ColumnText returns the rendered text of a column, or "" if absent.
func (it Item) ColumnText(columnID string) string {
	for _, c := range it.Columns {
		if c.ID == columnID {
			return c.Text
		}
	}
	return ""
}

// DateValue renders t as a date-column payload. The date itself is always
// emitted as YYYY-MM-DD.
func DateValue(t time.Time) string {
	b, _ := json.Marshal(struct {
		Date string `json:"date"`
	}{Date: t.Format("2006-01-02")})
	return string(b)
}

// APIError is a GraphQL-level error returned by the Monday API.
type APIError struct {
	Messages []string
}

func (e *APIError) Error() string {
	if len(e.Messages) == 0 {
		return "monday: api error"
	}
	return fmt.Sprintf("monday: api error: %s", e.Messages[0])
}
