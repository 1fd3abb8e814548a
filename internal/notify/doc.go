// Package notify delivers outbox notifications to the downstream consumer.
//
// The Dispatcher reads committed, undelivered rows in sequence order and
// hands them to a Publisher one at a time. A failed publish ends the pass
// so that a later notification for a resource is never delivered ahead of
// an earlier one; the row is retried on the next pass. Delivery is
// at-least-once and consumers deduplicate on the notification sequence.
package notify
