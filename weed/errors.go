// Copyright 2025 The PsWeed Authors
// SPDX-License-Identifier: Apache-2.0

package weed

import (
	"errors"
	"fmt"
)

// InputError reports a violation of the weeding input contract. These are
// not recoverable: the caller supplied inconsistent arrays.
type InputError struct {
	Type    ErrorType
	Message string
	Err     error
}

// ErrorType classifies input errors.
type ErrorType int

const (
	// ErrorTypeUnknown unclassified error.
	ErrorTypeUnknown ErrorType = iota
	// ErrorTypeLengthMismatch coordinates and coherence differ in length.
	ErrorTypeLengthMismatch
	// ErrorTypeDuplicateID two candidates share an ID.
	ErrorTypeDuplicateID
	// ErrorTypeGridTooLarge the claim grid would exceed the configured cell limit.
	ErrorTypeGridTooLarge
)

func (e *InputError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}

	return e.Message
}

func (e *InputError) Unwrap() error {
	return e.Err
}

func isType(err error, t ErrorType) bool {
	var inErr *InputError
	if errors.As(err, &inErr) {
		return inErr.Type == t
	}

	return false
}

// IsLengthMismatch reports whether err is caused by mismatched input lengths.
func IsLengthMismatch(err error) bool {
	return isType(err, ErrorTypeLengthMismatch)
}

// IsDuplicateID reports whether err is caused by a repeated candidate ID.
func IsDuplicateID(err error) bool {
	return isType(err, ErrorTypeDuplicateID)
}

// IsGridTooLarge reports whether err is caused by the grid cell limit.
func IsGridTooLarge(err error) bool {
	return isType(err, ErrorTypeGridTooLarge)
}
