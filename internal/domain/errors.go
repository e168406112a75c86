package domain

import "errors"

var (
	ErrNotFound = errors.New("not found")
	// ErrNotAllocatable signals an allocation attempt against a product whose
	// status forbids reserving stock (inactive, out-of-stock).
	ErrNotAllocatable = errors.New("product not allocatable")
)
