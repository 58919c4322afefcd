// Package monday is a typed client for the Monday.com GraphQL API, covering
// the group/item operations the task-generation jobs drive. Every response is
// decoded into a named struct at this boundary; callers never see raw payloads.
package monday

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	logx "tablero/pkg/logx"
)

const defaultBaseURL = "https://api.monday.com/v2"

var ErrNotFound = errors.New("monday: not found")

type Config struct {
	Token      string
	BaseURL    string
	RatePerSec int
}

type Client struct {
	hc      *http.Client
	baseURL string
	token   string
	limiter *rate.Limiter
	log     logx.Logger
}

func New(cfg Config, log logx.Logger) *Client {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = defaultBaseURL
	}
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 5
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Client{
		hc:      &http.Client{Timeout: 30 * time.Second},
		baseURL: base,
		token:   strings.TrimSpace(cfg.Token),
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
		log:     log,
	}
}

type gqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type gqlEnvelope struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors,omitempty"`
}

func (c *Client) do(ctx context.Context, query string, vars map[string]any, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	body, err := json.Marshal(gqlRequest{Query: query, Variables: vars})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", c.token)

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("monday: post: %w", err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("monday: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("monday: status %d: %s", resp.StatusCode, truncateBody(b))
	}

	var env gqlEnvelope
	if err := json.Unmarshal(b, &env); err != nil {
		return fmt.Errorf("monday: decode envelope: %w", err)
	}
	if len(env.Errors) > 0 {
		msgs := make([]string, 0, len(env.Errors))
		for _, e := range env.Errors {
			msgs = append(msgs, e.Message)
		}
		return &APIError{Messages: msgs}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("monday: decode data: %w", err)
	}
	return nil
}

func truncateBody(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 300 {
		s = s[:297] + "..."
	}
	return s
}

// ListBoards returns all boards visible to the token.
func (c *Client) ListBoards(ctx context.Context) ([]Board, error) {
	const q = `query { boards (limit: 500) { id name } }`
	var out struct {
		Boards []Board `json:"boards"`
	}
	if err := c.do(ctx, q, nil, &out); err != nil {
		return nil, err
	}
	return out.Boards, nil
}

// Groups returns the groups of a board.
func (c *Client) Groups(ctx context.Context, boardID string) ([]Group, error) {
	const q = `query ($board: ID!) { boards (ids: [$board]) { groups { id title } } }`
	var out struct {
		Boards []struct {
			Groups []Group `json:"groups"`
		} `json:"boards"`
	}
	if err := c.do(ctx, q, map[string]any{"board": boardID}, &out); err != nil {
		return nil, err
	}
	if len(out.Boards) == 0 {
		return nil, fmt.Errorf("%w: board %s", ErrNotFound, boardID)
	}
	return out.Boards[0].Groups, nil
}

// CreateGroup creates a group on a board and returns its id.
func (c *Client) CreateGroup(ctx context.Context, boardID, title string) (string, error) {
	const q = `mutation ($board: ID!, $title: String!) { create_group (board_id: $board, group_name: $title) { id } }`
	var out struct {
		CreateGroup struct {
			ID string `json:"id"`
		} `json:"create_group"`
	}
	if err := c.do(ctx, q, map[string]any{"board": boardID, "title": title}, &out); err != nil {
		return "", err
	}
	if out.CreateGroup.ID == "" {
		return "", fmt.Errorf("monday: create_group returned no id (board %s)", boardID)
	}
	return out.CreateGroup.ID, nil
}

// DuplicateGroup clones a group (with its items) on the same board.
func (c *Client) DuplicateGroup(ctx context.Context, boardID, groupID, newTitle string) (string, error) {
	const q = `mutation ($board: ID!, $group: String!, $title: String!) {
		duplicate_group (board_id: $board, group_id: $group, group_title: $title, add_to_top: true) { id }
	}`
	var out struct {
		DuplicateGroup struct {
			ID string `json:"id"`
		} `json:"duplicate_group"`
	}
	vars := map[string]any{"board": boardID, "group": groupID, "title": newTitle}
	if err := c.do(ctx, q, vars, &out); err != nil {
		return "", err
	}
	if out.DuplicateGroup.ID == "" {
		return "", fmt.Errorf("monday: duplicate_group returned no id (board %s, group %s)", boardID, groupID)
	}
	return out.DuplicateGroup.ID, nil
}

// DeleteGroup removes a group. Callers treat failures as best-effort.
func (c *Client) DeleteGroup(ctx context.Context, boardID, groupID string) error {
	const q = `mutation ($board: ID!, $group: String!) { delete_group (board_id: $board, group_id: $group) { id } }`
	return c.do(ctx, q, map[string]any{"board": boardID, "group": groupID}, nil)
}

// GroupItems returns the items of one group including their column values.
func (c *Client) GroupItems(ctx context.Context, boardID, groupID string) ([]Item, error) {
	const q = `query ($board: ID!, $group: String!) {
		boards (ids: [$board]) {
			groups (ids: [$group]) {
				items_page (limit: 200) { items { id name column_values { id text value } } }
			}
		}
	}`
	var out struct {
		Boards []struct {
			Groups []struct {
				ItemsPage struct {
					Items []Item `json:"items"`
				} `json:"items_page"`
			} `json:"groups"`
		} `json:"boards"`
	}
	if err := c.do(ctx, q, map[string]any{"board": boardID, "group": groupID}, &out); err != nil {
		return nil, err
	}
	if len(out.Boards) == 0 || len(out.Boards[0].Groups) == 0 {
		return nil, fmt.Errorf("%w: group %s on board %s", ErrNotFound, groupID, boardID)
	}
	return out.Boards[0].Groups[0].ItemsPage.Items, nil
}

// BoardItems returns the items of a whole board including column values.
// One page of 500 is enough for the client boards these jobs read.
func (c *Client) BoardItems(ctx context.Context, boardID string) ([]Item, error) {
	const q = `query ($board: ID!) {
		boards (ids: [$board]) {
			items_page (limit: 500) { items { id name column_values { id text value } } }
		}
	}`
	var out struct {
		Boards []struct {
			ItemsPage struct {
				Items []Item `json:"items"`
			} `json:"items_page"`
		} `json:"boards"`
	}
	if err := c.do(ctx, q, map[string]any{"board": boardID}, &out); err != nil {
		return nil, err
	}
	if len(out.Boards) == 0 {
		return nil, fmt.Errorf("%w: board %s", ErrNotFound, boardID)
	}
	return out.Boards[0].ItemsPage.Items, nil
}

// MoveItemToBoard moves an item into a group of another board and returns
// the item's id on the destination board.
func (c *Client) MoveItemToBoard(ctx context.Context, destBoardID, destGroupID, itemID string) (string, error) {
	const q = `mutation ($board: ID!, $group: String!, $item: ID!) {
		move_item_to_board (board_id: $board, group_id: $group, item_id: $item) { id }
	}`
	var out struct {
		Move struct {
			ID string `json:"id"`
		} `json:"move_item_to_board"`
	}
	vars := map[string]any{"board": destBoardID, "group": destGroupID, "item": itemID}
	if err := c.do(ctx, q, vars, &out); err != nil {
		return "", err
	}
	if out.Move.ID == "" {
		return "", fmt.Errorf("monday: move_item_to_board returned no id (item %s)", itemID)
	}
	return out.Move.ID, nil
}

// DuplicateItem clones an item on its board and returns the clone.
func (c *Client) DuplicateItem(ctx context.Context, boardID, itemID string) (Item, error) {
	const q = `mutation ($board: ID!, $item: ID!) {
		duplicate_item (board_id: $board, item_id: $item, with_updates: true) { id name }
	}`
	var out struct {
		Duplicate Item `json:"duplicate_item"`
	}
	if err := c.do(ctx, q, map[string]any{"board": boardID, "item": itemID}, &out); err != nil {
		return Item{}, err
	}
	if out.Duplicate.ID == "" {
		return Item{}, fmt.Errorf("monday: duplicate_item returned no id (item %s)", itemID)
	}
	return out.Duplicate, nil
}

// CreateItem creates a fresh item in a group and returns its id.
func (c *Client) CreateItem(ctx context.Context, boardID, groupID, name string) (string, error) {
	const q = `mutation ($board: ID!, $group: String!, $name: String!) {
		create_item (board_id: $board, group_id: $group, item_name: $name) { id }
	}`
	var out struct {
		Create struct {
			ID string `json:"id"`
		} `json:"create_item"`
	}
	vars := map[string]any{"board": boardID, "group": groupID, "name": name}
	if err := c.do(ctx, q, vars, &out); err != nil {
		return "", err
	}
	if out.Create.ID == "" {
		return "", fmt.Errorf("monday: create_item returned no id (board %s)", boardID)
	}
	return out.Create.ID, nil
}

// ChangeColumnValue sets a column of an item. value must be the column's
// JSON payload (see DateValue for date columns).
func (c *Client) ChangeColumnValue(ctx context.Context, boardID, itemID, columnID, value string) error {
	const q = `mutation ($board: ID!, $item: ID!, $column: String!, $value: JSON!) {
		change_column_value (board_id: $board, item_id: $item, column_id: $column, value: $value) { id }
	}`
	vars := map[string]any{"board": boardID, "item": itemID, "column": columnID, "value": value}
	return c.do(ctx, q, vars, nil)
}

// DeleteItem removes an item.
func (c *Client) DeleteItem(ctx context.Context, itemID string) error {
	const q = `mutation ($item: ID!) { delete_item (item_id: $item) { id } }`
	return c.do(ctx, q, map[string]any{"item": itemID}, nil)
}

// ItemGroup returns the id of the group an item currently sits in.
func (c *Client) ItemGroup(ctx context.Context, itemID string) (string, error) {
	const q = `query ($item: ID!) { items (ids: [$item]) { group { id } } }`
	var out struct {
		Items []struct {
			Group struct {
				ID string `json:"id"`
			} `json:"group"`
		} `json:"items"`
	}
	if err := c.do(ctx, q, map[string]any{"item": itemID}, &out); err != nil {
		return "", err
	}
	if len(out.Items) == 0 {
		return "", fmt.Errorf("%w: item %s", ErrNotFound, itemID)
	}
	return out.Items[0].Group.ID, nil
}
