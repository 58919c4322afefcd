package jobs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"tablero/internal/holded"
	"tablero/internal/recurring"
	"tablero/internal/storage"
	logx "tablero/pkg/logx"
)

type fakeSource struct {
	contacts []holded.Contact
	services []holded.Service
}

func (f fakeSource) ListContacts(ctx context.Context) ([]holded.Contact, error) {
	return f.contacts, nil
}

func (f fakeSource) ListServices(ctx context.Context) ([]holded.Service, error) {
	return f.services, nil
}

// fakeStore records upserts; the rest of storage.Store is unused here.
type fakeStore struct {
	storage.Store
	clients  map[string]storage.Client
	services map[string]storage.Service
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		clients:  map[string]storage.Client{},
		services: map[string]storage.Service{},
	}
}

func (f *fakeStore) UpsertClient(ctx context.Context, c storage.Client) error {
	f.clients[c.HoldedRef] = c
	return nil
}

func (f *fakeStore) UpsertService(ctx context.Context, s storage.Service) error {
	f.services[s.HoldedRef] = s
	return nil
}

func TestCatalogRun(t *testing.T) {
	t.Parallel()
	src := fakeSource{
		contacts: []holded.Contact{
			{ID: "c1", Name: "Acme", Code: "7"},
			{ID: "c2", Name: "Beta", Code: "12-B"},
			{ID: "c3", Name: "Sin código", Code: ""},
		},
		services: []holded.Service{
			{ID: "s1", Name: "Gestión RRSS", Tags: []string{"recurrente", "rrss"}},
			{ID: "s2", Name: "Mantenimiento web", Tags: []string{"recurrente"}},
			{ID: "s3", Name: "Diseño logo", Tags: nil},
		},
	}
	store := newFakeStore()

	cat := NewCatalog(src, store, logx.Nop())
	require.NoError(t, cat.Run(context.Background()))

	require.Equal(t, int64(7), store.clients["c1"].InternalID)
	require.Equal(t, int64(12), store.clients["c2"].InternalID)
	require.Equal(t, int64(0), store.clients["c3"].InternalID)

	require.True(t, store.services["s1"].Recurring)
	require.Equal(t, recurring.ServiceSocial, store.services["s1"].Type)
	require.True(t, store.services["s2"].Recurring)
	require.Equal(t, recurring.ServiceMaintenance, store.services["s2"].Type)
	require.False(t, store.services["s3"].Recurring)
	require.Equal(t, "", store.services["s3"].Type)
}

func TestCatalogRunDisabledStorage(t *testing.T) {
	t.Parallel()
	cat := NewCatalog(fakeSource{}, nil, logx.Nop())
	require.ErrorIs(t, cat.Run(context.Background()), storage.ErrDisabled)
}

func TestInternalID(t *testing.T) {
	t.Parallel()
	tests := []struct {
		code string
		want int64
	}{
		{"7", 7},
		{" 42 ", 42},
		{"12-B", 12},
		{"007x", 7},
		{"", 0},
		{"abc", 0},
		{"-3", 0},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, internalID(tt.code), "code %q", tt.code)
	}
}

func TestServiceType(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		svc  holded.Service
		want string
	}{
		{name: "tag rrss", svc: holded.Service{Tags: []string{"RRSS"}}, want: recurring.ServiceSocial},
		{name: "tag redes sociales", svc: holded.Service{Tags: []string{"Redes Sociales"}}, want: recurring.ServiceSocial},
		{name: "tag mantenimiento", svc: holded.Service{Tags: []string{"mantenimiento"}}, want: recurring.ServiceMaintenance},
		{name: "name fallback", svc: holded.Service{Name: "Mantenimiento mensual"}, want: recurring.ServiceMaintenance},
		{name: "unrecognized", svc: holded.Service{Name: "Hosting", Tags: []string{"cloud"}}, want: ""},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, serviceType(tt.svc))
		})
	}
}
