/*
Package delivery renders messages and fans them out to recipients.

The pipeline resolves each recipient's transport, renders the body via
the template engine (per-transport variant with fallback to the message
content), and invokes the adapter. Recipients are independent; the
message counts as sent when at least one recipient accepted it.

When the sender opted in, a communication audit event is published
carrying recipients, transports and outcomes, never the message content
or template variables.
*/
package delivery
