package domain

import (
	"time"

	"github.com/google/uuid"
)

// AccountState is the lifecycle state of an account.
type AccountState string

// Lifecycle states, in the only order an account may move through them.
const (
	AccountStatePendingVerification AccountState = "PENDING_VERIFICATION"
	AccountStateEmailVerified       AccountState = "EMAIL_VERIFIED"
	AccountStateSubscribed          AccountState = "SUBSCRIBED"
)

// rank orders states so transitions can be checked for monotonicity.
func (s AccountState) rank() int {
	switch s {
	case AccountStatePendingVerification:
		return 1
	case AccountStateEmailVerified:
		return 2
	case AccountStateSubscribed:
		return 3
	default:
		return 0
	}
}

// Valid reports whether s is one of the known lifecycle states.
func (s AccountState) Valid() bool {
	return s.rank() > 0
}

// Account is a registered user moving through the signup lifecycle.
type Account struct {
	ID                uuid.UUID    `json:"id"`
	FullName          string       `json:"full_name"`
	Email             string       `json:"email"`
	NationalID        string       `json:"-"`
	Phone             string       `json:"phone"`
	PasswordHash      string       `json:"-"`
	State             AccountState `json:"state"`
	MarketingOptIn    bool         `json:"marketing_opt_in"`
	TermsAcceptedAt   time.Time    `json:"terms_accepted_at"`
	PrivacyAcceptedAt time.Time    `json:"privacy_accepted_at"`
	CreatedAt         time.Time    `json:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at"`
}

// Registration carries the raw form input submitted to create an account.
type Registration struct {
	FullName        string
	Email           string
	NationalID      string
	Phone           string
	Password        string
	AcceptedTerms   bool
	AcceptedPrivacy bool
	MarketingOptIn  bool
}

// Validate runs every identity check and returns all failures at once as a
// *ValidationError, or nil when the registration is acceptable.
func (r Registration) Validate(opts ValidationOptions) error {
	agg := &ValidationError{}

	checks := []struct {
		field string
		value string
	}{
		{FieldFullName, r.FullName},
		{FieldEmail, r.Email},
		{FieldNationalID, r.NationalID},
		{FieldPhone, r.Phone},
		{FieldPassword, r.Password},
	}
	for _, c := range checks {
		if err := ValidateField(c.field, c.value, opts); err != nil {
			if ve, ok := err.(*ValidationError); ok {
				for field, msg := range ve.Fields {
					agg.Add(field, msg)
				}
				continue
			}
			agg.Add(c.field, err.Error())
		}
	}

	if !r.AcceptedTerms {
		agg.Add(FieldAcceptedTerms, "must be accepted")
	}
	if !r.AcceptedPrivacy {
		agg.Add(FieldAcceptedPrivacy, "must be accepted")
	}

	return agg.OrNil()
}

// NewAccount builds a PENDING_VERIFICATION account from a registration that
// already passed validation. The caller supplies the password hash; the
// plaintext password never reaches the Account.
func NewAccount(r Registration, passwordHash string) (*Account, error) {
	if passwordHash == "" {
		return nil, NewValidationError(FieldPassword, "hash cannot be empty")
	}

	now := time.Now().UTC()
	return &Account{
		ID:                uuid.New(),
		FullName:          r.FullName,
		Email:             r.Email,
		NationalID:        NormalizeNationalID(r.NationalID),
		Phone:             r.Phone,
		PasswordHash:      passwordHash,
		State:             AccountStatePendingVerification,
		MarketingOptIn:    r.MarketingOptIn,
		TermsAcceptedAt:   now,
		PrivacyAcceptedAt: now,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

// TransitionTo advances the account to next. Only forward moves of exactly
// one step are allowed; anything else returns ErrInvalidTransition and leaves
// the account untouched.
func (a *Account) TransitionTo(next AccountState) error {
	if !next.Valid() || next.rank() != a.State.rank()+1 {
		return ErrInvalidTransition
	}
	a.State = next
	a.UpdatedAt = time.Now().UTC()
	return nil
}

// IsVerified reports whether the account has proven control of its email.
func (a *Account) IsVerified() bool {
	return a.State.rank() >= AccountStateEmailVerified.rank()
}
