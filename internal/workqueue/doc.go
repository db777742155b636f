// Package workqueue implements an in-memory, one-of-N message queue with
// visibility-timeout delivery.
//
// A received message is not removed. It is hidden for the queue's visibility
// timeout and handed out together with a receipt; only that receipt can
// acknowledge (delete) it, extend its invisibility, or release it early. If
// the receipt holder does nothing, the message becomes receivable again once
// the window lapses and the old receipt stops working.
//
// # Message Lifecycle
//
//  1. Send: message stored, visible immediately
//  2. Receive: earliest-enqueued visible message hidden, receive count
//     incremented, new receipt minted
//  3. Processing:
//     - ExtendVisibility: deadline pushed out, same receipt
//     - Acknowledge: message deleted
//     - Release: message visible again now, receipt revoked
//  4. Expiry: deadline passes, message visible again, receipt revoked
//  5. Dead-letter: a receive that would push the count past MaxReceiveCount
//     removes the message and hands it to the DeadLetterSink instead
//
// Expiry is applied lazily: every Receive, Counts, Acknowledge,
// ExtendVisibility and Release first sweeps in-flight messages whose
// deadline has passed. There is no background sweeper. ReceiveWait sleeps on
// a broadcast channel plus a timer armed at the earliest in-flight deadline.
//
// # At-Least-Once Semantics
//
// Messages are delivered at-least-once. Duplicates occur when a consumer
// finishes processing after its window lapsed, or crashes before
// acknowledging. Consumers must be idempotent. Ordering across visible
// messages is earliest-enqueued first but is not a FIFO guarantee.
//
// # Locking
//
// Each WorkQueue owns one mutex guarding the message table, the visibility
// index and the receipt generations. Dead-letter delivery and observer
// callbacks happen after the mutex is released.
package workqueue
