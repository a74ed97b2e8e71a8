package domain

import "testing"

func TestAccount_CanDebit(t *testing.T) {
	tests := []struct {
		name    string
		balance int64
		amount  int64
		want    bool
	}{
		{name: "debit less than balance", balance: 100, amount: 50, want: true},
		{name: "debit exact balance", balance: 100, amount: 100, want: true},
		{name: "debit more than balance", balance: 100, amount: 150, want: false},
		{name: "zero amount", balance: 100, amount: 0, want: false},
		{name: "negative amount", balance: 100, amount: -1, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acc := &Account{Balance: tt.balance}
			if got := acc.CanDebit(tt.amount); got != tt.want {
				t.Errorf("CanDebit(%d) with balance %d = %v, want %v", tt.amount, tt.balance, got, tt.want)
			}
		})
	}
}

func TestAccount_ValidateNew(t *testing.T) {
	tests := []struct {
		name    string
		account Account
		want    error
	}{
		{name: "valid", account: Account{ID: "acc-1", Balance: 10}, want: nil},
		{name: "zero balance", account: Account{ID: "acc-1"}, want: nil},
		{name: "missing id", account: Account{Balance: 10}, want: ErrInvalidAccountID},
		{name: "negative balance", account: Account{ID: "acc-1", Balance: -1}, want: ErrInvalidAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.account.ValidateNew(); err != tt.want {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}
