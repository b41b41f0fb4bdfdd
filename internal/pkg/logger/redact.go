package logger

import "strings"

// RedactEmail masks an email address for safe logging.
// "john.doe@example.com" → "jo***@example.com"
// Short local parts (≤2 chars) are fully masked: "ab@example.com" → "***@example.com"
// A display-name form keeps its brackets: "<john@example.com>" → "<jo***@example.com>".
func RedactEmail(email string) string {
	if open, close := strings.IndexByte(email, '<'), strings.LastIndexByte(email, '>'); open >= 0 && close > open {
		return email[:open+1] + RedactEmail(email[open+1:close]) + email[close:]
	}
	parts := strings.Split(strings.TrimSpace(email), "@")
	if len(parts) != 2 {
		return "***@***"
	}
	name := parts[0]
	if len(name) > 2 {
		return name[:2] + "***@" + parts[1]
	}
	return "***@" + parts[1]
}
