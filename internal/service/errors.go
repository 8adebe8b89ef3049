package service

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrOrderNotPayable     = errors.New("order is not payable")
	ErrAlreadyPaid         = errors.New("order already paid")
	ErrUnsupportedMethod   = errors.New("unsupported payment method")
	ErrProviderUnavailable = errors.New("payment service unavailable")
	ErrVerificationFailed  = errors.New("notification verification failed")
	ErrInvalidTransition   = errors.New("invalid order status transition")
)
