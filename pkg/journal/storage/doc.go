// Package storage provides journal.Storage backends: an in-memory map for
// tests and short-lived runs, and SQLite (pure Go, modernc.org/sqlite) for
// durable single-instance deployments.
package storage
