package usecase

import (
	"errors"
	"fmt"
)

const (
	CodeInvalidInput      = "InvalidInput"
	CodeSchemaError       = "SchemaError"
	CodeStoreError        = "StoreError"
	CodeNotificationError = "NotificationError"
)

var errMissingRecordID = errors.New("store returned no record id")

// DomainError is a caller-correctable failure. No store I/O has happened.
type DomainError struct {
	Code    string
	Message string
}

func (e *DomainError) Error() string {
	return e.Message
}

func IsDomainError(err error) bool {
	var de *DomainError
	return errors.As(err, &de)
}

// TechnicalError is a collaborator failure that aborts the call.
type TechnicalError struct {
	Code    string
	Message string
	Err     error
}

func (e *TechnicalError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *TechnicalError) Unwrap() error {
	return e.Err
}

func IsTechnicalError(err error) bool {
	var te *TechnicalError
	return errors.As(err, &te)
}

// ErrorCode returns the taxonomy code carried by err, or "" when err is
// not one of ours.
func ErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	var te *TechnicalError
	if errors.As(err, &te) {
		return te.Code
	}
	return ""
}
