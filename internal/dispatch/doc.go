// Package dispatch is the console's client for the external dispatch
// engine. It owns both channels:
//
//   - Client: the pull side, request/response snapshots and write actions
//     over the engine's HTTP API.
//   - PushConsumer: the push side, the engine's AMQP status stream with
//     automatic reconnect and explicit down/up edges.
//
// Neither side interprets events; the transport adapter normalizes them
// into one stream for the reconciliation engine.
package dispatch
