// Package model holds the broadcast domain types shared across the console:
// campaigns, recipients, contacts, and the status taxonomy with its legal
// transition tables.
//
// The types here mirror the dispatch engine's wire format (JSON tags) but
// carry no behavior beyond pure status rules. All I/O lives elsewhere.
package model
