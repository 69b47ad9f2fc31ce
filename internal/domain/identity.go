package domain

import (
	"regexp"
	"strings"
	"unicode"
)

// Field names used as keys in ValidationError.Fields.
const (
	FieldFullName        = "full_name"
	FieldEmail           = "email"
	FieldNationalID      = "national_id"
	FieldPhone           = "phone"
	FieldPassword        = "password"
	FieldAcceptedTerms   = "accepted_terms"
	FieldAcceptedPrivacy = "accepted_privacy"
)

// Password length limits. The upper bound is bcrypt's input limit.
const (
	MinPasswordLength       = 6
	MinStrongPasswordLength = 8
	MaxPasswordLength       = 72
)

// NationalIDLength is the number of digits in a national tax identifier.
const NationalIDLength = 11

var (
	// emailRegex follows the WHATWG "valid email address" grammar.
	emailRegex = regexp.MustCompile(
		`^[a-zA-Z0-9.!#$%&'*+/=?^_` + "`" + `{|}~-]+@[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(?:\.[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)+$`,
	)

	// phoneRegex accepts "(DD) DDDD-DDDD" and "(DD) DDDDD-DDDD".
	phoneRegex = regexp.MustCompile(`^\(\d{2}\) \d{4,5}-\d{4}$`)
)

// ValidationOptions selects optional validation rules.
type ValidationOptions struct {
	// StrongPassword requires at least 8 characters with one lowercase letter,
	// one uppercase letter and one digit instead of the basic 6-character minimum.
	StrongPassword bool
}

// ValidateField validates a single identity field by name.
// It is a pure function: it never touches storage and never panics, so callers
// can run it for every field and aggregate the failures.
func ValidateField(field, value string, opts ValidationOptions) error {
	switch field {
	case FieldFullName:
		return ValidateFullName(value)
	case FieldEmail:
		return ValidateEmail(value)
	case FieldNationalID:
		return ValidateNationalID(value)
	case FieldPhone:
		return ValidatePhone(value)
	case FieldPassword:
		return ValidatePassword(value, opts.StrongPassword)
	default:
		return NewValidationError(field, "is not a known field")
	}
}

// ValidateEmail checks that email is non-empty and matches a standard address grammar.
func ValidateEmail(email string) error {
	if email == "" {
		return NewValidationError(FieldEmail, "is required")
	}
	if len(email) > 254 || !emailRegex.MatchString(email) {
		return NewValidationError(FieldEmail, "must be a valid email address")
	}
	return nil
}

// ValidatePhone checks the fixed "(DD) DDDD(D)-DDDD" pattern.
func ValidatePhone(phone string) error {
	if phone == "" {
		return NewValidationError(FieldPhone, "is required")
	}
	if !phoneRegex.MatchString(phone) {
		return NewValidationError(FieldPhone, "must match (DD) DDDDD-DDDD")
	}
	return nil
}

// ValidatePassword checks password strength. Basic mode only enforces the
// minimum length; strong mode also requires mixed case and a digit.
func ValidatePassword(password string, strong bool) error {
	if password == "" {
		return NewValidationError(FieldPassword, "is required")
	}
	if len(password) > MaxPasswordLength {
		return NewValidationError(FieldPassword, "must be at most 72 characters long")
	}

	if !strong {
		if len(password) < MinPasswordLength {
			return NewValidationError(FieldPassword, "must be at least 6 characters long")
		}
		return nil
	}

	if len(password) < MinStrongPasswordLength {
		return NewValidationError(FieldPassword, "must be at least 8 characters long")
	}

	var hasLower, hasUpper, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasLower || !hasUpper || !hasDigit {
		return NewValidationError(
			FieldPassword,
			"must contain a lowercase letter, an uppercase letter and a digit",
		)
	}
	return nil
}

// ValidateFullName requires letters and spaces only, with at least two
// space-separated tokens.
func ValidateFullName(name string) error {
	if strings.TrimSpace(name) == "" {
		return NewValidationError(FieldFullName, "is required")
	}
	for _, r := range name {
		if r != ' ' && !unicode.IsLetter(r) {
			return NewValidationError(FieldFullName, "may only contain letters and spaces")
		}
	}
	if len(strings.Fields(name)) < 2 {
		return NewValidationError(FieldFullName, "must include first and last name")
	}
	return nil
}

// NormalizeNationalID strips the punctuation commonly used when formatting a
// national ID ("111.444.777-35") and returns the remaining characters.
func NormalizeNationalID(id string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '-', ' ':
			return -1
		default:
			return r
		}
	}, id)
}

// ValidateNationalID checks the 11-digit national tax identifier and its two
// trailing mod-11 check digits. Formatting punctuation is ignored.
func ValidateNationalID(id string) error {
	if id == "" {
		return NewValidationError(FieldNationalID, "is required")
	}
	if !IsValidNationalID(NormalizeNationalID(id)) {
		return NewValidationError(FieldNationalID, "is invalid")
	}
	return nil
}

// IsValidNationalID reports whether digits is exactly 11 ASCII digits, not all
// identical, whose last two digits equal the computed check digits.
func IsValidNationalID(digits string) bool {
	if len(digits) != NationalIDLength {
		return false
	}

	d := make([]int, NationalIDLength)
	allSame := true
	for i := 0; i < NationalIDLength; i++ {
		c := digits[i]
		if c < '0' || c > '9' {
			return false
		}
		d[i] = int(c - '0')
		if d[i] != d[0] {
			allSame = false
		}
	}
	if allSame {
		return false
	}

	first, second := NationalIDCheckDigits(d[:9])
	return d[9] == first && d[10] == second
}

// NationalIDCheckDigits computes both check digits for the nine base digits.
// The first digit weights base[i] by (10 - i); the second weights the nine base
// digits plus the first check digit by (11 - i). A result above 9 becomes 0.
func NationalIDCheckDigits(base []int) (int, int) {
	sum := 0
	for i := 0; i < 9; i++ {
		sum += base[i] * (10 - i)
	}
	first := checkDigit(sum)

	sum = 0
	for i := 0; i < 9; i++ {
		sum += base[i] * (11 - i)
	}
	sum += first * 2
	second := checkDigit(sum)

	return first, second
}

func checkDigit(sum int) int {
	d := 11 - (sum % 11)
	if d > 9 {
		return 0
	}
	return d
}
