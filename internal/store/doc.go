// Package store is the console's local SQLite database: the read-only
// directory (contacts, senders, templates, categories) the draft wizard and
// audience resolver draw from, plus an append-only audit log of operator
// actions.
//
// Reconciled campaign state is never persisted here; the dispatch engine
// owns that and the console re-syncs on demand.
package store
