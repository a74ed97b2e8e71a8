package domain

import "time"

// Compensation is a pending credit-back of funds debited from an account
// whose transfer could not reach the recipient.
type Compensation struct {
	ID          string
	TransferID  string
	AccountID   string
	ToAccountID string
	Amount      int64
	Attempts    int
	LastError   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ResolvedAt  *time.Time
}

// Resolved reports whether the funds have been returned.
func (c *Compensation) Resolved() bool {
	return c.ResolvedAt != nil
}
