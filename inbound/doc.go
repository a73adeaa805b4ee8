// Package inbound receives asynchronous provider callbacks.
//
// Callbacks use claim/complete/fail idempotency so a transient handler
// failure stays retryable while a redelivered success is acknowledged
// without touching the service again.
package inbound
