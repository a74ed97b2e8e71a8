package dto

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/iho/gotransfer/internal/domain"
	"github.com/iho/gotransfer/internal/usecase"
)

var maxAmount = decimal.NewFromInt(math.MaxInt64)

// TransferRequest is the body of POST /account/transfer. The sender is the
// authenticated caller.
type TransferRequest struct {
	Amount decimal.Decimal `json:"amount"`
	To     string          `json:"to" validate:"required,max=128"`
}

// ToDomain converts the request into a transfer from the caller.
func (r *TransferRequest) ToDomain(from string) (domain.TransferRequest, error) {
	amount, err := ParseAmount(r.Amount)
	if err != nil {
		return domain.TransferRequest{}, err
	}

	return domain.TransferRequest{
		FromAccountID: from,
		ToAccountID:   r.To,
		Amount:        amount,
	}, nil
}

// OpenAccountRequest is the body of POST /accounts.
type OpenAccountRequest struct {
	ID             string          `json:"id,omitempty" validate:"omitempty,max=128"`
	InitialBalance decimal.Decimal `json:"initial_balance"`
}

// ToUseCaseInput converts to use case input.
func (r *OpenAccountRequest) ToUseCaseInput() (usecase.OpenAccountInput, error) {
	if r.InitialBalance.IsNegative() || !r.InitialBalance.IsInteger() || r.InitialBalance.GreaterThan(maxAmount) {
		return usecase.OpenAccountInput{}, domain.ErrInvalidAmount
	}

	return usecase.OpenAccountInput{
		ID:             r.ID,
		InitialBalance: r.InitialBalance.IntPart(),
	}, nil
}

// ParseAmount converts a JSON amount to minor units. Zero and negative
// amounts pass through so the transfer itself reports them; fractions and
// values beyond int64 are rejected here.
func ParseAmount(d decimal.Decimal) (int64, error) {
	if !d.IsInteger() {
		return 0, domain.ErrInvalidAmount
	}
	if d.GreaterThan(maxAmount) || d.LessThan(maxAmount.Neg()) {
		return 0, domain.ErrInvalidAmount
	}
	return d.IntPart(), nil
}
