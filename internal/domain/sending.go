package domain

import (
	"net/mail"
	"strings"
)

// Address is a mailbox with an optional display name.
type Address struct {
	Name    string `json:"name,omitempty"`
	Address string `json:"address"`
}

// String renders the address in RFC 5322 form.
func (a Address) String() string {
	if a.Name == "" {
		return a.Address
	}
	return (&mail.Address{Name: a.Name, Address: a.Address}).String()
}

// Equal compares mailboxes by address only; display names are ignored.
func (a Address) Equal(b Address) bool {
	return strings.EqualFold(strings.TrimSpace(a.Address), strings.TrimSpace(b.Address))
}

// Header is a single raw message header.
type Header struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Attachment is a file carried by an outbound message. A non-empty
// ContentID marks the attachment as inline.
type Attachment struct {
	Name        string `json:"name"`
	Content     []byte `json:"content"`
	ContentType string `json:"content_type"`
	ContentID   string `json:"content_id,omitempty"`
}

// OutboundMessage is one logical send request. It is treated as immutable;
// fanout works on clones.
type OutboundMessage struct {
	From          Address                      `json:"from"`
	To            []Address                    `json:"to"`
	Cc            []Address                    `json:"cc,omitempty"`
	Bcc           []Address                    `json:"bcc,omitempty"`
	ReplyTo       []Address                    `json:"reply_to,omitempty"`
	Subject       string                       `json:"subject"`
	TextBody      string                       `json:"text_body,omitempty"`
	HTMLBody      string                       `json:"html_body,omitempty"`
	Attachments   []Attachment                 `json:"attachments,omitempty"`
	Headers       []Header                     `json:"headers,omitempty"`
	Tag           string                       `json:"tag,omitempty"`
	MessageStream string                       `json:"message_stream,omitempty"`
	Metadata      map[string]string            `json:"metadata,omitempty"`
	Tokens        map[string]map[string]string `json:"tokens,omitempty"`
}

// Recipients returns the envelope recipients: To, then Cc, then Bcc.
func (m *OutboundMessage) Recipients() []Address {
	out := make([]Address, 0, len(m.To)+len(m.Cc)+len(m.Bcc))
	out = append(out, m.To...)
	out = append(out, m.Cc...)
	out = append(out, m.Bcc...)
	return out
}

// Clone returns a deep copy of the message.
func (m *OutboundMessage) Clone() *OutboundMessage {
	c := *m
	c.To = append([]Address(nil), m.To...)
	c.Cc = append([]Address(nil), m.Cc...)
	c.Bcc = append([]Address(nil), m.Bcc...)
	c.ReplyTo = append([]Address(nil), m.ReplyTo...)
	c.Attachments = append([]Attachment(nil), m.Attachments...)
	c.Headers = append([]Header(nil), m.Headers...)
	if m.Metadata != nil {
		c.Metadata = make(map[string]string, len(m.Metadata))
		for k, v := range m.Metadata {
			c.Metadata[k] = v
		}
	}
	c.Tokens = nil
	return &c
}
