package model

import (
	"errors"
	"fmt"
	"strings"
)

// UnsupportedFormatError is returned when an input file type is not recognized.
type UnsupportedFormatError struct {
	Format string
}

func (e *UnsupportedFormatError) Error() string {
	if e.Format == "" {
		return "unsupported file format: no extension"
	}
	return fmt.Sprintf("unsupported file format: %s", e.Format)
}

// ValidationError reports input that cannot be processed: an empty dataset,
// missing required columns or an invalid filter. Report is set when the error
// comes from ingestion.
type ValidationError struct {
	Reason  string
	Columns []string
	Report  *ValidationReport
}

func (e *ValidationError) Error() string {
	if len(e.Columns) == 0 {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed: %s (%s)", e.Reason, strings.Join(e.Columns, ", "))
}

// ModelsNotLoadedError means a model artifact is missing or unreadable.
type ModelsNotLoadedError struct {
	Artifact string
	Err      error
}

func (e *ModelsNotLoadedError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("models not loaded: %s", e.Artifact)
	}
	return fmt.Sprintf("models not loaded: %s: %v", e.Artifact, e.Err)
}

func (e *ModelsNotLoadedError) Unwrap() error {
	return e.Err
}

// EncodingError means the feature matrix does not fit the fitted encoder or a
// classifier.
type EncodingError struct {
	Reason string
}

func (e *EncodingError) Error() string {
	return "encoding failed: " + e.Reason
}

// IsUnsupportedFormat reports whether err wraps an UnsupportedFormatError.
func IsUnsupportedFormat(err error) bool {
	var target *UnsupportedFormatError
	return errors.As(err, &target)
}

// IsValidation reports whether err wraps a ValidationError.
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// IsModelsNotLoaded reports whether err wraps a ModelsNotLoadedError.
func IsModelsNotLoaded(err error) bool {
	var target *ModelsNotLoadedError
	return errors.As(err, &target)
}

// IsEncoding reports whether err wraps an EncodingError.
func IsEncoding(err error) bool {
	var target *EncodingError
	return errors.As(err, &target)
}
