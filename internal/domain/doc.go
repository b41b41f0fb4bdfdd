// Package domain defines the value types shared by the Postmark bridge:
// outbound messages, normalized webhook events, suppression actions and
// per-recipient dispatch outcomes.
//
// Types in this package are pure value objects built and discarded within
// one request/response cycle. They carry no database or HTTP dependencies.
//
// Rules for this package:
//   - No imports from other internal/ packages
//   - No *sql.DB, no http.Request, no context.Context in struct fields
//   - JSON tags are allowed (they're metadata, not behavior)
//   - Small pure helpers on the types are allowed
package domain
