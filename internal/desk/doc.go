// Package desk is the operator command surface: the draft wizard session,
// campaign lifecycle actions, view open/close bookkeeping, and the
// transient notice list.
//
// The desk owns exactly one draft at a time and serializes all commands
// behind its mutex; everything long-running (engine calls) happens with the
// caller's context and without holding that mutex.
package desk
