// Package domain errors.go contains sentinel errors
package domain

import "errors"

// Sentinel domain-level errors reused by higher layers.
var (
	// ErrCodec indicates an image could not be decoded or encoded.
	// Recoverable by skipping the offending image.
	ErrCodec = errors.New("image codec failure")

	// ErrValidation indicates a malformed backup envelope or imported JSON.
	// Import aborts before any store mutation.
	ErrValidation = errors.New("invalid backup data")

	// ErrQuotaExceeded indicates the metadata document could not be
	// persisted due to storage limits. Handled by emergency export.
	ErrQuotaExceeded = errors.New("storage quota exceeded")

	// ErrNotFound indicates a referenced record is absent from a store.
	// Image resolution never surfaces it; the placeholder is used instead.
	ErrNotFound = errors.New("record not found")

	// ErrBusy indicates an exclusive maintenance sequence (restore or
	// optimize) is already running.
	ErrBusy = errors.New("operation already in progress")

	// ErrInvalidID indicates an identifier failed validation.
	ErrInvalidID = errors.New("invalid id")
)
