package domain

// Contact is a local recipient record resolved from an email address. The
// remove path of the suppression store clears suppressions per contact.
type Contact struct {
	ID    string `json:"id" db:"id"`
	Email string `json:"email" db:"email"`
}
