// Package audience resolves the recipient set of a draft broadcast from the
// contact pool and the operator's current filters.
//
// Resolution is a pure function of (pool, filter): selected categories
// compose with OR among themselves, the text search matches name, phone, or
// email case-insensitively, and the two filter kinds compose with AND.
//
// The Resolver type adds memoization on top: it keeps a lower-cased search
// corpus for the current pool so the per-keystroke re-filtering the wizard
// does stays cheap for pools in the tens of thousands.
package audience
