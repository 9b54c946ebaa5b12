// Package notifier delivers alert texts to the single configured channel.
//
// Delivery is best-effort: one attempt per alert, failures are logged and
// returned to the caller but never retried. Consecutive deliveries are paced
// by a token bucket so bursts of alerts stay under the channel's flood limits.
//
// # Bridge
//
// Each send runs the (blocking, not context aware) channel call on its own
// goroutine bounded by a per-send timeout, while the caller waits
// synchronously. A hung channel call therefore costs at most one timeout.
//
// # History
//
// The service keeps a small in-memory history of delivered alerts.
package notifier
