/*
Package archive provides BoltDB-backed persistence for relay state.

The archive package implements the Store interface using BoltDB,
recording terminal events, delivered messages, and inbound webhook
registrations. All data is serialized as JSON and stored in separate
buckets.

# Buckets

	events    terminal events, keyed by event ID
	messages  delivered/failed messages, keyed by message ID
	webhooks  inbound webhook registrations, keyed by registration ID

Webhook secret tokens are never serialized; restored registrations that
verified signatures must be re-registered with their secret before they
accept payloads again.

# Usage

	store, err := archive.NewBoltStore("/var/lib/relay")
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	events, err := store.ListEventsByCategory(types.CategoryWebhook)

Writes are upserts: re-writing an event after a status change replaces
the stored copy atomically. Reads use db.View for concurrent snapshot
access; writes serialize through db.Update.
*/
package archive
