package waste

import "errors"

var (
	ErrInvalidInput       = errors.New("waste: invalid input")
	ErrAlreadyVerified    = errors.New("waste: already verified")
	ErrValueOutOfRange    = errors.New("waste: value out of range")
	ErrSubmissionNotFound = errors.New("waste: submission not found")
	errNilState           = errors.New("waste: state not configured")
	errNilLedger          = errors.New("waste: ledger not configured")
)
