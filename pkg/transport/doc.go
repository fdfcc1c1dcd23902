// Package transport provides the delivery adapters behind the message
// pipeline. Each adapter implements the Transport interface for one
// recipient kind:
//
//   - chat: bot API messages to integer chat IDs
//   - email: SMTP with a per-message session
//   - webhook: signed JSON POST with a circuit breaker
//   - sms: placeholder, reports failure until a gateway exists
//
// Adapters never retry; retry policy lives in the event bus.
package transport
