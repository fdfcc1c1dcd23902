/*
Package personallog mirrors events into per-user log channels.

Each configured user has one chat channel and an ordered list of
topics. Incoming events are classified into a topic, formatted into a
log entry, optionally encrypted, and delivered over the chat transport.

# Classification

Precedence, first match wins, evaluated in configured topic order
within each stage:

 1. Explicit topic hint (matched against topic names)
 2. Event category against matched_event_categories
 3. Event source against matched_sources
 4. Keywords against the lowercased event title
 5. The general topic

Configure guarantees every user has a general topic, so classification
always terminates. The same event against the same configuration always
lands in the same topic.

# Encryption

Whether an entry is encrypted is decided by the topic's
encryption_required setting when present, else the global default. A
sealed entry carries ciphertext only; the plaintext is cleared. When
encryption is required but fails, the entry is dropped and counted,
and the event itself still completes: a broken encryptor must not
fail the fabric.
*/
package personallog
