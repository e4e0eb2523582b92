package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	CodeNotReady        = "not_ready"
	CodeTrainingFailed  = "training_failed"
	CodeValidation      = "validation"
	CodeExternalService = "external_service"
	CodeNotFound        = "not_found"
)

type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

func NotReady(format string, args ...interface{}) *Error {
	return New(http.StatusConflict, CodeNotReady, fmt.Errorf(format, args...))
}

func TrainingFailed(err error) *Error {
	return New(http.StatusBadGateway, CodeTrainingFailed, err)
}

func Validation(format string, args ...interface{}) *Error {
	return New(http.StatusBadRequest, CodeValidation, fmt.Errorf(format, args...))
}

func ExternalService(err error) *Error {
	return New(http.StatusBadGateway, CodeExternalService, err)
}

func NotFound(format string, args ...interface{}) *Error {
	return New(http.StatusNotFound, CodeNotFound, fmt.Errorf(format, args...))
}

func IsCode(err error, code string) bool {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code == code
	}
	return false
}

func IsNotReady(err error) bool        { return IsCode(err, CodeNotReady) }
func IsTrainingFailed(err error) bool  { return IsCode(err, CodeTrainingFailed) }
func IsValidation(err error) bool      { return IsCode(err, CodeValidation) }
func IsExternalService(err error) bool { return IsCode(err, CodeExternalService) }
func IsNotFound(err error) bool        { return IsCode(err, CodeNotFound) }
