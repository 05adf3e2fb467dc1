// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package nlp

import (
	"errors"
	"fmt"
)

// QueryProcessingError is a fatal failure of the NLP stage. Unlike
// retrieval failures, which degrade to an apologetic answer, a processing
// error means no answer can be produced at all.
type QueryProcessingError struct {
	// Stage is the pipeline stage that failed ("reformulate", "classify",
	// "validate").
	Stage string

	// Message is the human-readable failure description.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *QueryProcessingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("query processing (%s): %s: %v", e.Stage, e.Message, e.Err)
	}
	return fmt.Sprintf("query processing (%s): %s", e.Stage, e.Message)
}

// Unwrap returns the underlying cause.
func (e *QueryProcessingError) Unwrap() error {
	return e.Err
}

// IsProcessingError reports whether err is (or wraps) a QueryProcessingError.
func IsProcessingError(err error) bool {
	var pe *QueryProcessingError
	return errors.As(err, &pe)
}
