package apperrors

import "errors"

// File-level load errors. They abort the file they occur in and every kind
// that depends on it.
var (
	ErrFileNotFound   = errors.New("file not found")
	ErrHeaderMismatch = errors.New("header mismatch")
)

// Record-level load errors. The record is rejected and loading continues.
var (
	ErrFieldCoercion         = errors.New("field coercion failed")
	ErrMandatoryFieldMissing = errors.New("mandatory field missing")
	ErrMalformedRecord       = errors.New("malformed record")
	ErrUniquenessViolation   = errors.New("uniqueness violation")
	ErrReferentialViolation  = errors.New("referential violation")
)

// Lifecycle and query errors.
var (
	ErrNotLoaded        = errors.New("relations not loaded")
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrAlreadyLoaded    = errors.New("relations already populated")
	ErrLoadInProgress   = errors.New("load in progress")
)

var codes = []struct {
	err  error
	code string
}{
	{ErrFileNotFound, "FileNotFound"},
	{ErrHeaderMismatch, "HeaderMismatch"},
	{ErrFieldCoercion, "FieldCoercionError"},
	{ErrMandatoryFieldMissing, "MandatoryFieldMissing"},
	{ErrMalformedRecord, "MalformedRecord"},
	{ErrUniquenessViolation, "UniquenessViolation"},
	{ErrReferentialViolation, "ReferentialViolation"},
	{ErrNotLoaded, "NotLoaded"},
	{ErrInvalidParameter, "InvalidParameter"},
	{ErrAlreadyLoaded, "AlreadyLoaded"},
	{ErrLoadInProgress, "LoadInProgress"},
}

// Code returns the stable report code for err, or "Internal" when err does
// not wrap one of the sentinels above.
func Code(err error) string {
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "Internal"
}

// IsRecordLevel reports whether err rejects a single record without
// stopping the file it came from.
func IsRecordLevel(err error) bool {
	return errors.Is(err, ErrFieldCoercion) ||
		errors.Is(err, ErrMandatoryFieldMissing) ||
		errors.Is(err, ErrMalformedRecord) ||
		errors.Is(err, ErrUniquenessViolation) ||
		errors.Is(err, ErrReferentialViolation)
}
