/*
Package template provides {var} substitution with per-transport body
variants.

Placeholders are single-brace names: {name}. Substitution is literal
text replacement; a placeholder without a binding stays in the output
unchanged, and values are never re-scanned for placeholders. A template
may carry a different body per transport; a missing variant falls back
to the message's own content, still substituted.
*/
package template
