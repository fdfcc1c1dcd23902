/*
Package webhook turns verified inbound payloads into relay events.

External producers are registered ahead of time with a source name, an
optional event-type allowlist, and an optional HMAC secret. Processing
a payload checks, in order: the registration exists, it is active, the
event type is accepted, and the signature verifies. Any failure rejects
the payload without touching the bus. The event type is carried in the
payload's event_type field; callers may pass an explicit override.
Registrations with a timeout bound the processing pass through the
caller's context.

# Signature Scheme

The signature is HMAC-SHA256 over the canonical JSON encoding of the
payload: object keys sorted, no insignificant whitespace. The expected
header value is

	sha256=<lowercase hex digest>

and comparison is constant time. Verification failures are
indistinguishable to the caller: verified=false, processed=false.

A verified payload becomes an event with category webhook, the
registration's source, normal priority, title "webhook:<event_type>",
and hashtags #webhook and #<source>.
*/
package webhook
