// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package vectorstore

import (
	"errors"
	"fmt"
)

// ErrCode identifies a class of repository failure.
type ErrCode string

const (
	// ErrCodeValidation marks malformed input: missing collection, empty
	// query text and vector, non-positive limit.
	ErrCodeValidation ErrCode = "VALIDATION"

	// ErrCodeCollectionNotFound marks a search against a collection the
	// store does not know.
	ErrCodeCollectionNotFound ErrCode = "COLLECTION_NOT_FOUND"

	// ErrCodeConnection marks a network or timeout failure reaching the store.
	ErrCodeConnection ErrCode = "CONNECTION"

	// ErrCodeSearch marks a generic store-side search failure.
	ErrCodeSearch ErrCode = "SEARCH"
)

// StoreError is the structured error type for all repository failures.
//
// Description:
//
//	Carries a code for branching (errors.As + Code checks), a message for
//	logs, and a Retryable flag. Validation errors are the only kind the
//	search orchestrator propagates; everything else degrades to a data-less
//	result.
type StoreError struct {
	// Code classifies the failure.
	Code ErrCode

	// Message is a human-readable description.
	Message string

	// Retryable reports whether retrying the same call may succeed.
	Retryable bool

	// Err is the wrapped cause, if any.
	Err error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("vectorstore [%s]: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("vectorstore [%s]: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped cause.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewValidationError builds a non-retryable validation failure.
func NewValidationError(format string, args ...any) *StoreError {
	return &StoreError{Code: ErrCodeValidation, Message: fmt.Sprintf(format, args...)}
}

// NewCollectionNotFoundError builds a not-found failure for the named collection.
func NewCollectionNotFoundError(collection string, cause error) *StoreError {
	return &StoreError{
		Code:    ErrCodeCollectionNotFound,
		Message: fmt.Sprintf("collection %q not found", collection),
		Err:     cause,
	}
}

// NewConnectionError builds a retryable connectivity failure.
func NewConnectionError(msg string, cause error) *StoreError {
	return &StoreError{Code: ErrCodeConnection, Message: msg, Retryable: true, Err: cause}
}

// NewSearchError builds a generic store-side search failure.
func NewSearchError(msg string, cause error) *StoreError {
	return &StoreError{Code: ErrCodeSearch, Message: msg, Err: cause}
}

// CodeOf extracts the StoreError code from err, or "" when err is not a
// StoreError.
func CodeOf(err error) ErrCode {
	var se *StoreError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// IsValidation reports whether err is a validation failure.
func IsValidation(err error) bool {
	return CodeOf(err) == ErrCodeValidation
}

// IsCollectionNotFound reports whether err is a missing-collection failure.
func IsCollectionNotFound(err error) bool {
	return CodeOf(err) == ErrCodeCollectionNotFound
}

// IsConnection reports whether err is a connectivity failure.
func IsConnection(err error) bool {
	return CodeOf(err) == ErrCodeConnection
}
