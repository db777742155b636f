// Package workqueues is the transport-neutral service behind the HTTP and
// gRPC APIs.
//
// Requests name a queue; Send and Receive create it on demand when the
// runtime allows auto-creation, every other operation requires it to exist.
// Receipts travel as opaque strings. A receipt that cannot be parsed is
// answered exactly like a stale one: OK is false and no error is returned.
//
// Dead-letter operations read the runtime's Pebble store:
//
//   - ListDeadLetters: newest first, optionally narrowed by a CEL filter
//   - Redrive: re-send the body as a new message, then drop the entry
//   - DeleteDeadLetter: drop the entry
package workqueues
