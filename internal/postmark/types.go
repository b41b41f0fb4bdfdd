package postmark

import (
	"fmt"
)

const (
	// DefaultBaseURL is Postmark's API root.
	DefaultBaseURL = "https://api.postmarkapp.com"

	// CodeInactiveRecipient is the API error code for a recipient that is
	// on the server's suppression list.
	CodeInactiveRecipient = 406

	headerServerToken = "X-Postmark-Server-Token"
)

// WirePayload is the JSON body of POST /email.
type WirePayload struct {
	From          string            `json:"From"`
	To            string            `json:"To"`
	Cc            string            `json:"Cc,omitempty"`
	Bcc           string            `json:"Bcc,omitempty"`
	ReplyTo       string            `json:"ReplyTo,omitempty"`
	Subject       string            `json:"Subject"`
	TextBody      string            `json:"TextBody,omitempty"`
	HtmlBody      string            `json:"HtmlBody,omitempty"`
	Attachments   []WireAttachment  `json:"Attachments,omitempty"`
	Tag           string            `json:"Tag,omitempty"`
	Metadata      map[string]string `json:"Metadata,omitempty"`
	MessageStream string            `json:"MessageStream,omitempty"`
	Headers       []WireHeader      `json:"Headers,omitempty"`
}

// WireAttachment is one attachment; Content is base64-encoded by encoding/json.
type WireAttachment struct {
	Name        string `json:"Name"`
	Content     []byte `json:"Content"`
	ContentType string `json:"ContentType"`
	ContentID   string `json:"ContentID,omitempty"`
}

// WireHeader is a residual header passed through verbatim.
type WireHeader struct {
	Name  string `json:"Name"`
	Value string `json:"Value"`
}

// SendResponse is the body Postmark returns for POST /email, on success
// and on API-level rejection alike.
type SendResponse struct {
	To          string `json:"To"`
	SubmittedAt string `json:"SubmittedAt"`
	MessageID   string `json:"MessageID"`
	ErrorCode   int    `json:"ErrorCode"`
	Message     string `json:"Message"`
}

// APIError is a structured rejection from the Postmark API.
type APIError struct {
	StatusCode int
	ErrorCode  int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("postmark API error (status %d, code %d): %s", e.StatusCode, e.ErrorCode, e.Message)
}

// InactiveRecipient reports whether the recipient is on Postmark's suppression list.
func (e *APIError) InactiveRecipient() bool {
	return e.ErrorCode == CodeInactiveRecipient
}

// TransportError is a send failure other than the inactive-recipient
// rejection. Connectivity is set when the request never got an HTTP
// response (unreachable host, timeout, cancellation).
type TransportError struct {
	StatusCode   int
	ErrorCode    int
	Message      string
	Connectivity bool
	Err          error
}

func (e *TransportError) Error() string {
	switch {
	case e.Connectivity && e.Err != nil:
		return fmt.Sprintf("could not reach the remote Postmark server: %v", e.Err)
	case e.Connectivity:
		return "could not reach the remote Postmark server"
	case e.ErrorCode != 0:
		return fmt.Sprintf("unable to send an email: %s (code %d)", e.Message, e.ErrorCode)
	default:
		return fmt.Sprintf("unable to send an email: %s (status %d)", e.Message, e.StatusCode)
	}
}

func (e *TransportError) Unwrap() error { return e.Err }
