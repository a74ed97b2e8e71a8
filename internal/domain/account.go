package domain

import (
	"math"
	"time"
)

// Account holds a balance in the smallest currency unit.
type Account struct {
	ID        string
	Balance   int64
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CanDebit reports whether amount can be taken without going negative.
// It is a snapshot check only; stores enforce the invariant atomically.
func (a *Account) CanDebit(amount int64) bool {
	return amount > 0 && a.Balance >= amount
}

// CanCredit reports whether amount can be added without overflowing.
func (a *Account) CanCredit(amount int64) bool {
	return amount > 0 && amount <= math.MaxInt64-a.Balance
}

// ValidateNew checks an account before it is created.
func (a *Account) ValidateNew() error {
	if a.ID == "" {
		return ErrInvalidAccountID
	}

	if a.Balance < 0 {
		return ErrInvalidAmount
	}

	return nil
}
