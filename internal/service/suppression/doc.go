// Package suppression implements the suppression store that webhook and
// send-time decisions are applied to.
//
// An address on the list must not receive mail on the suppressed channel.
// Entries arrive from Postmark notifications (bounces, complaints,
// unsubscribes) and from send-time inactive-recipient rejections, and are
// removed when Postmark reports a reactivation.
//
// The service layer contains the business logic and depends on the
// interfaces defined in repository.go. It never imports net/http or
// database/sql directly.
package suppression
