// Package jobs holds the scheduled jobs that are not the recurring-task run
// itself: the nightly catalog mirror refresh and the weekly upcoming-tasks
// report.
package jobs

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"tablero/internal/holded"
	"tablero/internal/recurring"
	"tablero/internal/storage"
	logx "tablero/pkg/logx"
)

// CatalogSource is the slice of the Holded client the mirror reads.
type CatalogSource interface {
	ListContacts(ctx context.Context) ([]holded.Contact, error)
	ListServices(ctx context.Context) ([]holded.Service, error)
}

// Catalog mirrors Holded contacts and services into the local store, so the
// recurring run resolves references without hitting Holded per invoice line.
type Catalog struct {
	source CatalogSource
	store  storage.Store
	log    logx.Logger
}

func NewCatalog(source CatalogSource, store storage.Store, log logx.Logger) *Catalog {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Catalog{source: source, store: store, log: log}
}

func (c *Catalog) Run(ctx context.Context) error {
	if c.store == nil {
		return storage.ErrDisabled
	}
	now := time.Now()

	contacts, err := c.source.ListContacts(ctx)
	if err != nil {
		return fmt.Errorf("listing contacts: %w", err)
	}
	var clients, linked int
	for _, ct := range contacts {
		rec := storage.Client{
			HoldedRef:  ct.ID,
			InternalID: internalID(ct.Code),
			Name:       ct.Name,
			UpdatedAt:  now,
		}
		if err := c.store.UpsertClient(ctx, rec); err != nil {
			c.log.Warn("client upsert failed", logx.String("ref", ct.ID), logx.Err(err))
			continue
		}
		clients++
		if rec.InternalID != 0 {
			linked++
		}
	}

	services, err := c.source.ListServices(ctx)
	if err != nil {
		return fmt.Errorf("listing services: %w", err)
	}
	var mirrored, rec int
	for _, sv := range services {
		s := storage.Service{
			HoldedRef: sv.ID,
			Name:      sv.Name,
			Recurring: isRecurring(sv),
			Type:      serviceType(sv),
			UpdatedAt: now,
		}
		if err := c.store.UpsertService(ctx, s); err != nil {
			c.log.Warn("service upsert failed", logx.String("ref", sv.ID), logx.Err(err))
			continue
		}
		mirrored++
		if s.Recurring {
			rec++
		}
	}

	c.log.Info("catalog refreshed",
		logx.Int("clients", clients), logx.Int("linked", linked),
		logx.Int("services", mirrored), logx.Int("recurring", rec))
	return nil
}

// internalID parses the contact code's leading digits into the agency-internal
// id. 0 means unlinked.
func internalID(code string) int64 {
	s := strings.TrimSpace(code)
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == 0 {
		return 0
	}
	id, err := strconv.ParseInt(s[:i], 10, 64)
	if err != nil {
		return 0
	}
	return id
}

func isRecurring(sv holded.Service) bool {
	for _, t := range sv.Tags {
		if strings.EqualFold(strings.TrimSpace(t), "recurrente") {
			return true
		}
	}
	return false
}

// serviceType classifies a Holded service by its tags, then its name.
// "" means the recurring run skips it.
func serviceType(sv holded.Service) string {
	probe := func(s string) string {
		l := strings.ToLower(s)
		switch {
		case strings.Contains(l, "redessociales"), strings.Contains(l, "redes sociales"), strings.Contains(l, "rrss"):
			return recurring.ServiceSocial
		case strings.Contains(l, "mantenimiento"):
			return recurring.ServiceMaintenance
		}
		return ""
	}
	for _, t := range sv.Tags {
		if typ := probe(t); typ != "" {
			return typ
		}
	}
	return probe(sv.Name)
}
