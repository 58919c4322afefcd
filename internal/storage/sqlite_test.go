package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	logx "tablero/pkg/logx"
)

func openTestStore(t *testing.T) Store {
	t.Helper()
	st, err := Open(Config{Path: filepath.Join(t.TempDir(), "tablero.db")}, logx.Nop())
	require.NoError(t, err)
	require.NotNil(t, st)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestOpenDisabled(t *testing.T) {
	t.Parallel()
	st, err := Open(Config{}, logx.Nop())
	require.NoError(t, err)
	require.Nil(t, st)
}

func TestClientRoundtrip(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	_, err := st.ClientByHoldedRef(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)

	c := Client{HoldedRef: "c1", InternalID: 7, Name: "Acme", UpdatedAt: time.Now()}
	require.NoError(t, st.UpsertClient(ctx, c))

	got, err := st.ClientByHoldedRef(ctx, "c1")
	require.NoError(t, err)
	require.Equal(t, int64(7), got.InternalID)
	require.Equal(t, "Acme", got.Name)

	// Upsert replaces.
	c.Name = "Acme S.L."
	require.NoError(t, st.UpsertClient(ctx, c))
	got, err = st.ClientByHoldedRef(ctx, "c1")
	require.NoError(t, err)
	require.Equal(t, "Acme S.L.", got.Name)
}

func TestServiceRoundtrip(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	s := Service{HoldedRef: "s1", Name: "Gestión RRSS", Recurring: true, Type: "redessociales", UpdatedAt: time.Now()}
	require.NoError(t, st.UpsertService(ctx, s))

	got, err := st.ServiceByHoldedRef(ctx, "s1")
	require.NoError(t, err)
	require.True(t, got.Recurring)
	require.Equal(t, "redessociales", got.Type)

	_, err = st.ServiceByHoldedRef(ctx, "nope")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestHolidaysRoundtrip(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	_, _, ok, err := st.GetHolidays(ctx, "ES", 2025)
	require.NoError(t, err)
	require.False(t, ok)

	at := time.Now().Truncate(time.Second)
	days := []string{"2025-01-01", "2025-01-06"}
	require.NoError(t, st.PutHolidays(ctx, "ES", 2025, days, at))

	got, fetchedAt, ok, err := st.GetHolidays(ctx, "ES", 2025)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, days, got)
	require.WithinDuration(t, at, fetchedAt, time.Second)

	// Same (country, year) overwrites.
	require.NoError(t, st.PutHolidays(ctx, "ES", 2025, []string{"2025-05-01"}, at))
	got, _, _, err = st.GetHolidays(ctx, "ES", 2025)
	require.NoError(t, err)
	require.Equal(t, []string{"2025-05-01"}, got)
}

func TestAppendAudit(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.AppendAudit(ctx, AuditEntry{
		Job:    "recurring",
		Client: "Acme",
		OK:     5,
		Fail:   1,
		Error:  "date column: boom",
		TookMS: 1200,
	}))
}
