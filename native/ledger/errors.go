package ledger

import "errors"

var (
	ErrInvalidAmount       = errors.New("ledger: invalid amount")
	ErrInsufficientBalance = errors.New("ledger: insufficient balance")
	ErrUnknownToken        = errors.New("ledger: unknown token")
	errNilState            = errors.New("ledger: state not configured")
)
