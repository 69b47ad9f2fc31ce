package domain

import (
	"time"

	"github.com/google/uuid"
)

// Tranches is a credit amount split across the three balance partitions.
type Tranches struct {
	Current int `json:"current"`
	Monthly int `json:"monthly"`
	Bonus   int `json:"bonus"`
}

// Total returns the sum of all tranches.
func (t Tranches) Total() int {
	return t.Current + t.Monthly + t.Bonus
}

// Validate rejects negative tranche amounts.
func (t Tranches) Validate() error {
	ve := &ValidationError{}
	if t.Current < 0 {
		ve.Add("current", "cannot be negative")
	}
	if t.Monthly < 0 {
		ve.Add("monthly", "cannot be negative")
	}
	if t.Bonus < 0 {
		ve.Add("bonus", "cannot be negative")
	}
	return ve.OrNil()
}

// CreditBalance is the usable credit of one account.
type CreditBalance struct {
	AccountID uuid.UUID `json:"account_id"`
	Tranches
	UpdatedAt time.Time `json:"updated_at"`
}

// NewCreditBalance returns an empty balance for accountID.
func NewCreditBalance(accountID uuid.UUID) *CreditBalance {
	return &CreditBalance{
		AccountID: accountID,
		UpdatedAt: time.Now().UTC(),
	}
}

// Sufficient reports whether amount can be consumed from the balance.
func (b *CreditBalance) Sufficient(amount int) bool {
	return b.Total() >= amount
}

// Add increments each tranche by the granted amounts.
func (b *CreditBalance) Add(grant Tranches) error {
	if err := grant.Validate(); err != nil {
		return err
	}
	b.Current += grant.Current
	b.Monthly += grant.Monthly
	b.Bonus += grant.Bonus
	b.UpdatedAt = time.Now().UTC()
	return nil
}

// Deduct removes amount from the balance, draining bonus first, then current,
// then monthly. Either the whole amount is deducted or the balance is left
// unchanged and ErrInsufficientCredits is returned.
func (b *CreditBalance) Deduct(amount int) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if !b.Sufficient(amount) {
		return ErrInsufficientCredits
	}

	remaining := amount
	for _, tranche := range []*int{&b.Bonus, &b.Current, &b.Monthly} {
		take := min(*tranche, remaining)
		*tranche -= take
		remaining -= take
		if remaining == 0 {
			break
		}
	}
	b.UpdatedAt = time.Now().UTC()
	return nil
}
