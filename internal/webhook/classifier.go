package webhook

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/url"
	"strconv"
	"strings"

	"github.com/ignite/postmark-bridge/internal/domain"
)

const formContentType = "application/x-www-form-urlencoded"

// Classify decodes a Postmark notification body and normalizes it into a
// WebhookEvent. Form-encoded bodies are parsed as form fields; everything
// else is decoded as strict JSON.
func Classify(raw []byte, contentType string) (*domain.WebhookEvent, error) {
	var (
		fields map[string]any
		err    error
	)
	if isForm(contentType) {
		fields, err = decodeForm(raw)
	} else {
		fields, err = decodeJSON(raw)
	}
	if err != nil {
		return nil, err
	}
	return eventFromFields(fields)
}

func isForm(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && mediaType == formContentType
}

func decodeJSON(raw []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, &MalformedPayloadError{Message: msgInvalidJSON, Err: err}
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, &MalformedPayloadError{Message: msgInvalidJSON, Err: errors.New("trailing data after JSON value")}
	}

	obj, ok := v.(map[string]any)
	if !ok {
		return nil, &MalformedPayloadError{Message: msgNoData}
	}
	return obj, nil
}

func decodeForm(raw []byte) (map[string]any, error) {
	values, err := url.ParseQuery(string(raw))
	if err != nil {
		return nil, &MalformedPayloadError{Message: msgInvalidForm, Err: err}
	}
	if len(values) == 0 {
		return nil, &MalformedPayloadError{Message: msgNoData}
	}

	fields := make(map[string]any, len(values))
	metadata := map[string]any{}
	for key, vals := range values {
		if len(vals) == 0 {
			continue
		}
		if k, ok := formMetadataKey(key); ok {
			metadata[k] = vals[0]
			continue
		}
		fields[key] = vals[0]
	}
	if len(metadata) > 0 {
		fields["Metadata"] = metadata
	}
	return fields, nil
}

// formMetadataKey accepts both Metadata[key] and Metadata.key spellings.
func formMetadataKey(key string) (string, bool) {
	switch {
	case strings.HasPrefix(key, "Metadata[") && strings.HasSuffix(key, "]"):
		k := key[len("Metadata[") : len(key)-1]
		return k, k != ""
	case strings.HasPrefix(key, "Metadata."):
		k := key[len("Metadata."):]
		return k, k != ""
	}
	return "", false
}

func eventFromFields(f map[string]any) (*domain.WebhookEvent, error) {
	rawType := stringValue(f["RecordType"])

	ev := &domain.WebhookEvent{RawRecordType: rawType}
	switch domain.RecordType(rawType) {
	case domain.RecordSubscriptionChange:
		ev.RecordType = domain.RecordSubscriptionChange
		ev.Reason = firstNonEmpty(stringValue(f["SuppressionReason"]), stringValue(f["Type"]))
	case domain.RecordBounce:
		ev.RecordType = domain.RecordBounce
		ev.Reason = firstNonEmpty(stringValue(f["Type"]), stringValue(f["SuppressionReason"]))
	default:
		return nil, &UnsupportedRecordTypeError{RecordType: rawType}
	}

	ev.Recipient = strings.TrimSpace(firstNonEmpty(stringValue(f["Recipient"]), stringValue(f["Email"])))
	if ev.RecordType == domain.RecordSubscriptionChange {
		suppress, ok := boolValue(f["SuppressSending"])
		if !ok {
			return nil, &MalformedPayloadError{Message: msgInvalidSuppressSending}
		}
		ev.SuppressSending = suppress
	}
	ev.MessageID = stringValue(f["MessageID"])
	ev.Tag = stringValue(f["Tag"])
	ev.MessageStream = stringValue(f["MessageStream"])
	ev.Name = stringValue(f["Name"])
	ev.Description = stringValue(f["Description"])
	ev.Details = stringValue(f["Details"])
	ev.Content = stringValue(f["Content"])
	ev.BouncedAt = stringValue(f["BouncedAt"])

	if md, ok := f["Metadata"].(map[string]any); ok && len(md) > 0 {
		ev.Metadata = make(map[string]string, len(md))
		for k, v := range md {
			ev.Metadata[k] = stringValue(v)
		}
	}

	return ev, nil
}

func stringValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

// boolValue reports ok=false for a missing, null or unrecognized value.
func boolValue(v any) (value, ok bool) {
	switch t := v.(type) {
	case bool:
		return t, true
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return false, false
		}
		return f != 0, true
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "1", "true", "yes", "on":
			return true, true
		case "0", "false", "no", "off":
			return false, true
		}
	}
	return false, false
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
