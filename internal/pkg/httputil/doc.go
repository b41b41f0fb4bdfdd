// Package httputil provides shared HTTP response helpers for handlers.
//
// The Postmark webhook answers in plain text (Postmark only inspects the
// status code); operational endpoints answer in JSON. Handlers should use
// these helpers instead of writing raw http.ResponseWriter calls so status
// codes, content types and error logging stay consistent.
package httputil
