package carbon

import "errors"

var (
	ErrInvalidInput               = errors.New("carbon: invalid input")
	ErrBelowMinimum               = errors.New("carbon: amount below conversion minimum")
	ErrAlreadyVerified            = errors.New("carbon: already verified")
	ErrBelowVerificationThreshold = errors.New("carbon: record auto-verified below threshold")
	ErrBatchTooLarge              = errors.New("carbon: batch exceeds entry limit")
	ErrConversionNotFound         = errors.New("carbon: conversion not found")
	ErrValueOutOfRange            = errors.New("carbon: value out of range")
	errNilState                   = errors.New("carbon: state not configured")
	errNilLedger                  = errors.New("carbon: ledger not configured")
	errNoSnapshots                = errors.New("carbon: snapshot support not configured")
)
