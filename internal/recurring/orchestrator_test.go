package recurring

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tablero/internal/holded"
	"tablero/internal/monday"
	"tablero/internal/storage"
)

// fakeBoards is an in-memory BoardPort recording every mutation.
type fakeBoards struct {
	boards []monday.Board
	groups map[string][]monday.Group // boardID -> groups
	items  map[string][]monday.Item  // boardID/groupID -> items

	nextID int

	createdGroups []string // "boardID:title"
	deletedGroups []string // "boardID:groupID"
	moves         []string // "itemID->boardID/groupID"
	duplicated    []string // source item ids
	createdItems  []string // "boardID/groupID:name"
	columnSets    []string // "boardID:itemID:columnID:value"
	deletedItems  []string

	failColumnSet bool
}

func newFakeBoards() *fakeBoards {
	return &fakeBoards{
		groups: map[string][]monday.Group{},
		items:  map[string][]monday.Item{},
	}
}

func (f *fakeBoards) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s%d", prefix, f.nextID)
}

func key(boardID, groupID string) string { return boardID + "/" + groupID }

func (f *fakeBoards) ListBoards(ctx context.Context) ([]monday.Board, error) {
	return f.boards, nil
}

func (f *fakeBoards) Groups(ctx context.Context, boardID string) ([]monday.Group, error) {
	return f.groups[boardID], nil
}

func (f *fakeBoards) CreateGroup(ctx context.Context, boardID, title string) (string, error) {
	id := f.id("g")
	f.groups[boardID] = append(f.groups[boardID], monday.Group{ID: id, Title: title})
	f.createdGroups = append(f.createdGroups, boardID+":"+title)
	return id, nil
}

func (f *fakeBoards) DuplicateGroup(ctx context.Context, boardID, groupID, newTitle string) (string, error) {
	id := f.id("dup")
	f.groups[boardID] = append(f.groups[boardID], monday.Group{ID: id, Title: newTitle})
	src := f.items[key(boardID, groupID)]
	copied := make([]monday.Item, len(src))
	for i, it := range src {
		it.ID = f.id("i")
		copied[i] = it
	}
	f.items[key(boardID, id)] = copied
	return id, nil
}

func (f *fakeBoards) DeleteGroup(ctx context.Context, boardID, groupID string) error {
	f.deletedGroups = append(f.deletedGroups, boardID+":"+groupID)
	return nil
}

func (f *fakeBoards) GroupItems(ctx context.Context, boardID, groupID string) ([]monday.Item, error) {
	return f.items[key(boardID, groupID)], nil
}

func (f *fakeBoards) MoveItemToBoard(ctx context.Context, destBoardID, destGroupID, itemID string) (string, error) {
	id := f.id("mv")
	f.moves = append(f.moves, itemID+"->"+key(destBoardID, destGroupID))
	return id, nil
}

func (f *fakeBoards) DuplicateItem(ctx context.Context, boardID, itemID string) (monday.Item, error) {
	f.duplicated = append(f.duplicated, itemID)
	return monday.Item{ID: f.id("cl")}, nil
}

func (f *fakeBoards) CreateItem(ctx context.Context, boardID, groupID, name string) (string, error) {
	f.createdItems = append(f.createdItems, key(boardID, groupID)+":"+name)
	return f.id("new"), nil
}

func (f *fakeBoards) ChangeColumnValue(ctx context.Context, boardID, itemID, columnID, value string) error {
	if f.failColumnSet {
		return errors.New("column rejected")
	}
	f.columnSets = append(f.columnSets, boardID+":"+itemID+":"+columnID+":"+value)
	return nil
}

func (f *fakeBoards) DeleteItem(ctx context.Context, itemID string) error {
	f.deletedItems = append(f.deletedItems, itemID)
	return nil
}

func (f *fakeBoards) ItemGroup(ctx context.Context, itemID string) (string, error) {
	return "fallback-group", nil
}

type fakeCatalog struct {
	clients  map[string]storage.Client
	services map[string]storage.Service
}

func (f fakeCatalog) ClientByHoldedRef(ctx context.Context, ref string) (storage.Client, error) {
	c, ok := f.clients[ref]
	if !ok {
		return storage.Client{}, storage.ErrNotFound
	}
	return c, nil
}

func (f fakeCatalog) ServiceByHoldedRef(ctx context.Context, ref string) (storage.Service, error) {
	s, ok := f.services[ref]
	if !ok {
		return storage.Service{}, storage.ErrNotFound
	}
	return s, nil
}

type fakeInvoices struct {
	invoices []holded.Invoice
}

func (f fakeInvoices) DueRecurringInvoices(ctx context.Context, from, to time.Time) ([]holded.Invoice, error) {
	return f.invoices, nil
}

type fakeNotifier struct {
	messages []string
}

func (f *fakeNotifier) SendText(ctx context.Context, channel, text string) error {
	f.messages = append(f.messages, channel+": "+text)
	return nil
}

func testConfig() Config {
	return Config{
		SocialTemplateBoard:        "plantillas rrss",
		MaintenanceTemplateBoardID: "tplm",
		DateColumnID:               "fecha",
		EstimatedDateColumnID:      "estimada",
		FrequencyColumnID:          "frecuencia",
		SummaryChannel:             "#ops",
	}
}

// newTestOrchestrator pins now to 2025-02-10, making March 2025 the target.
func newTestOrchestrator(t *testing.T, boards *fakeBoards, cat fakeCatalog, inv fakeInvoices, sink *fakeNotifier) *Orchestrator {
	t.Helper()
	o := New(testConfig(), Deps{
		Boards:   boards,
		Calendar: newFakeCal(),
		Invoices: inv,
		Catalog:  cat,
		Notifier: sink,
	})
	o.now = func() time.Time { return day(2025, time.February, 10) }
	o.rng = rand.New(rand.NewSource(1))
	return o
}

func estimated(text string) monday.ColumnValue {
	return monday.ColumnValue{ID: "estimada", Text: text}
}

func frequency(text string) monday.ColumnValue {
	return monday.ColumnValue{ID: "frecuencia", Text: text}
}

func TestRunSocial(t *testing.T) {
	t.Parallel()
	fb := newFakeBoards()
	fb.boards = []monday.Board{
		{ID: "tpl", Name: "Plantillas RRSS"},
		{ID: "b7", Name: "7 - Acme RRSS"},
	}
	fb.groups["tpl"] = []monday.Group{
		{ID: "tg7", Title: "7 Acme"},
		{ID: "tgdef", Title: "*"},
	}
	fb.items[key("tpl", "tg7")] = []monday.Item{
		{ID: "t1", Name: "Post semanal", Columns: []monday.ColumnValue{estimated("10")}},
		{ID: "t2", Name: "Sin fecha", Columns: []monday.ColumnValue{estimated("")}},
		{ID: "t3", Name: "Campaña", Columns: []monday.ColumnValue{estimated("10-15")}},
	}

	cat := fakeCatalog{
		clients:  map[string]storage.Client{"c1": {HoldedRef: "c1", InternalID: 7, Name: "Acme"}},
		services: map[string]storage.Service{"s1": {HoldedRef: "s1", Recurring: true, Type: ServiceSocial}},
	}
	inv := fakeInvoices{invoices: []holded.Invoice{
		{ID: "inv1", ContactRef: "c1", Products: []holded.ProductLine{{ServiceRef: "s1", Name: "RRSS"}}},
	}}
	sink := &fakeNotifier{}

	o := newTestOrchestrator(t, fb, cat, inv, sink)
	require.NoError(t, o.Run(context.Background()))

	// Destination month group created on the client board, always.
	require.Contains(t, fb.createdGroups, "b7:Marzo 2025")

	// Two items moved (the empty-estimate one skipped before moving).
	require.Len(t, fb.moves, 2)

	// Both dates set in March, business-day adjusted, range draw inside [10,15].
	require.Len(t, fb.columnSets, 2)
	for _, cs := range fb.columnSets {
		require.Contains(t, cs, `"date":"2025-03-1`)
	}

	// Duplicated template group cleaned up on the template board.
	require.Len(t, fb.deletedGroups, 1)
	require.True(t, strings.HasPrefix(fb.deletedGroups[0], "tpl:dup"))

	// Run summary posted.
	require.Len(t, sink.messages, 1)
	require.Contains(t, sink.messages[0], "#ops: Tareas recurrentes Marzo 2025")
}

func TestRunSocialCleanupOnFailure(t *testing.T) {
	t.Parallel()
	fb := newFakeBoards()
	fb.failColumnSet = true
	fb.boards = []monday.Board{
		{ID: "tpl", Name: "Plantillas RRSS"},
		{ID: "b7", Name: "7 - Acme RRSS"},
	}
	fb.groups["tpl"] = []monday.Group{{ID: "tgdef", Title: "*"}}
	fb.items[key("tpl", "tgdef")] = []monday.Item{
		{ID: "t1", Name: "Post", Columns: []monday.ColumnValue{estimated("10")}},
	}

	cat := fakeCatalog{
		clients:  map[string]storage.Client{"c1": {HoldedRef: "c1", InternalID: 7, Name: "Acme"}},
		services: map[string]storage.Service{"s1": {HoldedRef: "s1", Recurring: true, Type: ServiceSocial}},
	}
	inv := fakeInvoices{invoices: []holded.Invoice{
		{ID: "inv1", ContactRef: "c1", Products: []holded.ProductLine{{ServiceRef: "s1"}}},
	}}

	o := newTestOrchestrator(t, fb, cat, inv, &fakeNotifier{})
	require.NoError(t, o.Run(context.Background()))

	// Date set failed, the duplicated group is deleted regardless.
	require.Len(t, fb.deletedGroups, 1)
}

func TestRunMaintenance(t *testing.T) {
	t.Parallel()
	fb := newFakeBoards()
	fb.boards = []monday.Board{
		{ID: "bm7", Name: "7 - Acme Mantenimiento"},
	}
	fb.groups["tplm"] = []monday.Group{
		{ID: "gst", Title: "Plan Starter"},
		{ID: "gav", Title: "Plan Avanzado"},
	}
	// Existing month group on the client board: must be reused, not recreated.
	fb.groups["bm7"] = []monday.Group{{ID: "gmar", Title: "Marzo 2025"}}
	fb.items[key("tplm", "gav")] = []monday.Item{
		{ID: "m1", Name: "Backup", Columns: []monday.ColumnValue{frequency("mensual")}},
		{ID: "m2", Name: "Informe", Columns: []monday.ColumnValue{frequency("bimensual")}},
		{ID: "m3", Name: "Revisión", Columns: []monday.ColumnValue{frequency("semanal")}},
	}

	cat := fakeCatalog{
		clients:  map[string]storage.Client{"c1": {HoldedRef: "c1", InternalID: 7, Name: "Acme"}},
		services: map[string]storage.Service{"s1": {HoldedRef: "s1", Recurring: true, Type: ServiceMaintenance}},
	}
	inv := fakeInvoices{invoices: []holded.Invoice{
		{ID: "inv1", ContactRef: "c1", Products: []holded.ProductLine{
			{ServiceRef: "s1", Name: "Mantenimiento web", Tags: []string{"avanzado"}},
		}},
	}}
	sink := &fakeNotifier{}

	o := newTestOrchestrator(t, fb, cat, inv, sink)
	require.NoError(t, o.Run(context.Background()))

	// The existing "Marzo 2025" group was reused.
	for _, g := range fb.createdGroups {
		require.NotEqual(t, "bm7:Marzo 2025", g)
	}

	// All three items moved to the client board.
	require.Len(t, fb.moves, 3)

	// bimensual in March (odd month): the moved placeholder is deleted.
	require.Len(t, fb.deletedItems, 1)

	// semanal: 4 Wednesdays, first on the moved item, 3 duplicates.
	require.Len(t, fb.duplicated, 3)

	// Date sets: 1 (mensual) + 4 (semanal) task dates plus reminder dates.
	var taskDates, reminders int
	for _, cs := range fb.columnSets {
		require.Contains(t, cs, ":fecha:")
		if strings.Contains(cs, ":new") {
			reminders++
		} else {
			taskDates++
		}
	}
	require.Equal(t, 5, taskDates)

	// Reminders deduped per (board, reminder date): mensual due 2025-03-26
	// reminds on 2025-03-24, the same day as the fourth semanal slot's
	// reminder, so only 4 of the 5 dates produce an item.
	require.Len(t, fb.createdItems, 4)
	require.Equal(t, 4, reminders)
	for _, ci := range fb.createdItems {
		require.Contains(t, ci, "Avisar al cliente: ")
	}

	require.Len(t, fb.deletedGroups, 1)
}

func TestRunMaintenanceDiario(t *testing.T) {
	t.Parallel()
	fb := newFakeBoards()
	fb.boards = []monday.Board{{ID: "bm7", Name: "7 Mantenimiento"}}
	fb.groups["tplm"] = []monday.Group{{ID: "gst", Title: "starter"}}
	fb.items[key("tplm", "gst")] = []monday.Item{
		{ID: "m1", Name: "Ping diario", Columns: []monday.ColumnValue{frequency("diario")}},
	}

	cat := fakeCatalog{
		clients:  map[string]storage.Client{"c1": {HoldedRef: "c1", InternalID: 7, Name: "Acme"}},
		services: map[string]storage.Service{"s1": {HoldedRef: "s1", Recurring: true, Type: ServiceMaintenance}},
	}
	inv := fakeInvoices{invoices: []holded.Invoice{
		{ID: "inv1", ContactRef: "c1", Products: []holded.ProductLine{
			{ServiceRef: "s1", Name: "Plan starter"},
		}},
	}}

	o := newTestOrchestrator(t, fb, cat, inv, &fakeNotifier{})
	require.NoError(t, o.Run(context.Background()))

	// One clone per business day of March 2025, then the moved original goes.
	require.Len(t, fb.duplicated, 21)
	require.Len(t, fb.deletedItems, 1)
	require.True(t, strings.HasPrefix(fb.deletedItems[0], "mv"))
}

func TestRunSkipsWithoutRemoteCalls(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		client  storage.Client
		service storage.Service
	}{
		{
			name:    "unlinked client",
			client:  storage.Client{HoldedRef: "c1", InternalID: 0, Name: "Acme"},
			service: storage.Service{HoldedRef: "s1", Recurring: true, Type: ServiceSocial},
		},
		{
			name:    "non-recurring service",
			client:  storage.Client{HoldedRef: "c1", InternalID: 7, Name: "Acme"},
			service: storage.Service{HoldedRef: "s1", Recurring: false, Type: ServiceSocial},
		},
		{
			name:    "unrecognized service type",
			client:  storage.Client{HoldedRef: "c1", InternalID: 7, Name: "Acme"},
			service: storage.Service{HoldedRef: "s1", Recurring: true, Type: "hosting"},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			fb := newFakeBoards()
			fb.boards = []monday.Board{{ID: "tpl", Name: "Plantillas RRSS"}}

			cat := fakeCatalog{
				clients:  map[string]storage.Client{"c1": tt.client},
				services: map[string]storage.Service{"s1": tt.service},
			}
			inv := fakeInvoices{invoices: []holded.Invoice{
				{ID: "inv1", ContactRef: "c1", Products: []holded.ProductLine{{ServiceRef: "s1"}}},
			}}

			o := newTestOrchestrator(t, fb, cat, inv, &fakeNotifier{})
			require.NoError(t, o.Run(context.Background()))

			require.Empty(t, fb.moves)
			require.Empty(t, fb.createdGroups)
			require.Empty(t, fb.createdItems)
			require.Empty(t, fb.deletedGroups)
		})
	}
}

func TestCreateNotificationItemDedup(t *testing.T) {
	t.Parallel()
	fb := newFakeBoards()
	o := New(testConfig(), Deps{Boards: fb, Calendar: newFakeCal()})
	r := &run{notified: map[string]struct{}{}}

	due := day(2025, time.March, 26) // Wednesday
	o.createNotificationItem(context.Background(), r, "b1", "g1", "i1", "Backup", due)
	o.createNotificationItem(context.Background(), r, "b1", "g1", "i2", "Informe", due)

	require.Len(t, fb.createdItems, 1)
	require.Equal(t, "b1/g1:Avisar al cliente: Backup", fb.createdItems[0])

	// Same date on a different board is a distinct reminder.
	o.createNotificationItem(context.Background(), r, "b2", "g1", "i3", "Backup", due)
	require.Len(t, fb.createdItems, 2)
}

func TestCreateNotificationItemDate(t *testing.T) {
	t.Parallel()
	fb := newFakeBoards()
	o := New(testConfig(), Deps{Boards: fb, Calendar: newFakeCal()})

	tests := []struct {
		name string
		due  time.Time
		want string
	}{
		// Monday due: minus 2 days is Saturday, backward-adjusted to Friday.
		{name: "weekend adjusted back", due: day(2025, time.March, 10), want: "2025-03-07"},
		{name: "plain weekday", due: day(2025, time.March, 26), want: "2025-03-24"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			fb.columnSets = nil
			r := &run{notified: map[string]struct{}{}}
			o.createNotificationItem(context.Background(), r, "b1", "g1", "i1", "X", tt.due)

			require.Len(t, fb.columnSets, 1)
			require.Contains(t, fb.columnSets[0], `"date":"`+tt.want+`"`)
			remind, err := time.Parse("2006-01-02", tt.want)
			require.NoError(t, err)
			require.True(t, remind.Before(tt.due))
		})
	}
}

func TestCreateNotificationItemGroupFallback(t *testing.T) {
	t.Parallel()
	fb := newFakeBoards()
	o := New(testConfig(), Deps{Boards: fb, Calendar: newFakeCal()})
	r := &run{notified: map[string]struct{}{}}

	o.createNotificationItem(context.Background(), r, "b1", "", "i1", "Backup", day(2025, time.March, 26))

	require.Len(t, fb.createdItems, 1)
	require.Equal(t, "b1/fallback-group:Avisar al cliente: Backup", fb.createdItems[0])
}

func TestParseEstimatedDay(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewSource(42))

	d, err := parseEstimatedDay("17", rng)
	require.NoError(t, err)
	require.Equal(t, 17, d)

	for i := 0; i < 50; i++ {
		d, err := parseEstimatedDay("10-15", rng)
		require.NoError(t, err)
		require.GreaterOrEqual(t, d, 10)
		require.LessOrEqual(t, d, 15)
	}

	for _, bad := range []string{"", "0", "32", "15-10", "a-b", "5-40", "x"} {
		_, err := parseEstimatedDay(bad, rng)
		require.Error(t, err, "input %q", bad)
	}
}

func TestClientBoard(t *testing.T) {
	t.Parallel()
	boards := []monday.Board{
		{ID: "b1", Name: "7 - Acme RRSS"},
		{ID: "b2", Name: "7 - Acme Mantenimiento"},
		{ID: "b3", Name: "71 - Otro RRSS"},
	}

	b, ok := clientBoard(boards, 7, socialBoardRe)
	require.True(t, ok)
	require.Equal(t, "b1", b.ID)

	b, ok = clientBoard(boards, 7, maintenanceBoardRe)
	require.True(t, ok)
	require.Equal(t, "b2", b.ID)

	_, ok = clientBoard(boards, 8, socialBoardRe)
	require.False(t, ok)
}

func TestSocialTemplateGroup(t *testing.T) {
	t.Parallel()
	groups := []monday.Group{
		{ID: "g1", Title: "12 Cliente grande"},
		{ID: "g2", Title: "*"},
	}

	g, ok := socialTemplateGroup(groups, 12)
	require.True(t, ok)
	require.Equal(t, "g1", g.ID)

	g, ok = socialTemplateGroup(groups, 99)
	require.True(t, ok)
	require.Equal(t, "g2", g.ID)

	_, ok = socialTemplateGroup([]monday.Group{{ID: "g1", Title: "12 X"}}, 99)
	require.False(t, ok)
}

func TestMonthTitle(t *testing.T) {
	t.Parallel()
	require.Equal(t, "Marzo 2025", MonthTitle(day(2025, time.March, 1)))
	require.Equal(t, "Enero 2026", MonthTitle(day(2026, time.January, 15)))
}
