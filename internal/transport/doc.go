// Package transport normalizes the dispatch engine's two update channels
// (HTTP pull, AMQP push) into one ordered internal event stream per
// console process.
//
// The adapter does not interpret events. It stamps each one with a local
// receipt sequence and forwards it; all merging lives in the
// reconciliation engine.
//
// The adapter also owns every timer in the system:
//
//   - a routine refresh poll for each watched campaign,
//   - a tighter fallback poll per watched campaign while the push channel
//     is down,
//   - nothing else; fallback entries are cancelled on reconnect and all
//     entries are cancelled on unwatch, terminal status, or Stop, so no
//     timer can outlive the view that wanted it.
//
// On push reconnect the adapter issues exactly one corrective pull per
// watched campaign to repair whatever was missed during the outage.
package transport
