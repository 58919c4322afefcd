// Package storage provides the daemon's sqlite persistence layer.
//
// It currently holds:
//   - The local mirror of Holded contacts/services (catalog lookups)
//   - Cached holiday sets per (country, year)
//   - A run audit log (one row per processed client per job run)
package storage
