// Package redact provides utilities for redacting sensitive information from strings
// before they are logged or returned in error responses. This package helps prevent
// the accidental leakage of credentials, connection strings, personal identifiers,
// and verification codes that might be included in error messages or log records.
package redact

import (
	"log/slog"
	"regexp"
	"strings"
)

// Constants for redaction placeholders
const (
	RedactionPlaceholder          = "[REDACTED]"
	RedactedCredentialPlaceholder = "[REDACTED_CREDENTIAL]"
	RedactedKeyPlaceholder        = "[REDACTED_KEY]"
	RedactedNationalIDPlaceholder = "[REDACTED_NATIONAL_ID]"
	RedactedPhonePlaceholder      = "[REDACTED_PHONE]"
)

// Precompiled regex patterns
var (
	// Database and broker connection strings
	dbConnRegex = regexp.MustCompile(`(?i)(postgres|postgresql|redis|rediss|db|database|connection)://[^@\s]+@`)

	// Credentials and tokens
	passwordRegex = regexp.MustCompile(`(?i)(password|passwd|pwd)([=:\s]?['"]?)[^'"&\s]{3,}`)
	apiKeyRegex   = regexp.MustCompile(
		`(?i)(api[_-]?key|token|secret|auth)(['"\s:=]+)[A-Za-z0-9_\-.~+/]{8,}`,
	)
	// JWT token pattern - matches the standard three-part base64url-encoded JWT token format
	jwtTokenRegex = regexp.MustCompile(`eyJ[a-zA-Z0-9_-]+\.eyJ[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+`)

	// National identifiers, formatted (000.000.000-00) or bare 11 digits
	nationalIDRegex = regexp.MustCompile(`\b\d{3}\.?\d{3}\.?\d{3}-?\d{2}\b`)

	// Phone numbers in the (00) 00000-0000 layout
	phoneRegex = regexp.MustCompile(`\(\d{2}\)\s?\d{4,5}-\d{4}`)

	// Email addresses
	emailRegex = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)

	// SQL queries and fragments
	sqlRegex = regexp.MustCompile(
		`(?i)(SELECT|INSERT|UPDATE|DELETE)[\s\w,*()]+(?:FROM|INTO|SET)(?:[\s\w,*()='"$]+)?`,
	)

	// Order matters: connection strings before emails, national IDs before phones.
	rules = []struct {
		re          *regexp.Regexp
		placeholder string
	}{
		{dbConnRegex, RedactedCredentialPlaceholder},
		{passwordRegex, RedactedCredentialPlaceholder},
		{jwtTokenRegex, "[REDACTED_JWT]"},
		{apiKeyRegex, RedactedKeyPlaceholder},
		{sqlRegex, "[REDACTED_SQL]"},
		{emailRegex, "[REDACTED_EMAIL]"},
		{nationalIDRegex, RedactedNationalIDPlaceholder},
		{phoneRegex, RedactedPhonePlaceholder},
	}
)

// String redacts sensitive information from the input string
func String(input string) string {
	if input == "" {
		return input
	}

	result := input
	for _, rule := range rules {
		result = rule.re.ReplaceAllString(result, rule.placeholder)
	}

	return result
}

// Error redacts sensitive information from an error's Error() output
func Error(err error) string {
	if err == nil {
		return ""
	}

	return String(err.Error())
}

// Email masks the local part of an address, keeping its first character and
// the domain: "jane@x.com" becomes "j***@x.com".
func Email(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return RedactionPlaceholder
	}
	return email[:1] + "***" + email[at:]
}

// sensitiveKeys are log attribute keys whose values are never written.
var sensitiveKeys = map[string]bool{
	"password":      true,
	"password_hash": true,
	"national_id":   true,
	"phone":         true,
	"code":          true,
	"token":         true,
	"jwt_secret":    true,
}

// ReplaceAttr is a slog.HandlerOptions.ReplaceAttr hook. It blanks attributes
// with sensitive keys, masks email attributes, and scrubs error values.
func ReplaceAttr(_ []string, a slog.Attr) slog.Attr {
	key := strings.ToLower(a.Key)
	switch {
	case sensitiveKeys[key]:
		return slog.String(a.Key, RedactionPlaceholder)
	case key == "email":
		return slog.String(a.Key, Email(a.Value.String()))
	case key == "error" || key == "err":
		if err, ok := a.Value.Any().(error); ok {
			return slog.String(a.Key, Error(err))
		}
		if a.Value.Kind() == slog.KindString {
			return slog.String(a.Key, String(a.Value.String()))
		}
	}
	return a
}
