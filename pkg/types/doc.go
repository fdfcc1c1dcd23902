/*
Package types defines the core data structures used throughout Relay.

This package contains all fundamental types that represent Relay's domain
model: events, outbound messages, transport-tagged recipients, templates,
personal-log topics and entries, and inbound webhook registrations. These
types are used by all other packages for queueing, dispatch, delivery,
and personal-log routing.

# Core Types

Event flow:
  - Event: structured notification with category, priority, and payload
  - Category: producer classification (system, user, payment, webhook, ...)
  - Priority: five ordered dispatch levels (low through emergency)
  - ProcessingStatus: queued, processing, completed, failed, retrying

Message flow:
  - Message: outbound unit addressed to one or more recipients
  - Recipient: transport-tagged address (chat id, email, webhook URL, E.164)
  - Template: per-transport body variants with {var} placeholders
  - MessageStatus: pending, sent, delivered, failed

Personal log:
  - TopicConfig: per-user classifier for topic-partitioned log channels
  - PersonalLogEntry: one log line, plaintext or ciphertext, with expiry

Inbound webhooks:
  - WebhookRegistration: signature secret, allowlists, timeout

# Usage

Creating an event:

	ev := types.NewEvent(types.CategoryPayment, "payments", types.PriorityHigh, "receipt")
	ev.UserID = "u-1"
	ev.Data = map[string]interface{}{"amount": 42}

Creating a message:

	msg := types.NewMessage("u-1", "Welcome", "Hello {name}",
		types.EmailRecipient("user@example.com"),
		types.ChatRecipient(12345),
	)
	msg.TemplateID = "welcome"
	msg.TemplateVars = map[string]string{"name": "Ada"}
*/
package types
