package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is the discrete program error code reported for a rejected instruction.
type Code uint32

const (
	CodeInvalidInstruction Code = iota
	CodeNotInitialized
	CodeSurveyAlreadyExists
	CodeSurveyNotFound
	CodeAlreadyClaimed
	CodeSurveyFull
	CodeSurveyClosed
	CodeInvalidOwner
	CodeInsufficientFunds
	CodeInvalidRewardAmount
	CodeOverflow
	CodeInvalidMetadata

	CodeMissingRequiredSignature Code = 100
)

var codeNames = map[Code]string{
	CodeInvalidInstruction:       "InvalidInstruction",
	CodeNotInitialized:           "NotInitialized",
	CodeSurveyAlreadyExists:      "SurveyAlreadyExists",
	CodeSurveyNotFound:           "SurveyNotFound",
	CodeAlreadyClaimed:           "AlreadyClaimed",
	CodeSurveyFull:               "SurveyFull",
	CodeSurveyClosed:             "SurveyClosed",
	CodeInvalidOwner:             "InvalidOwner",
	CodeInsufficientFunds:        "InsufficientFunds",
	CodeInvalidRewardAmount:      "InvalidRewardAmount",
	CodeOverflow:                 "Overflow",
	CodeInvalidMetadata:          "InvalidMetadata",
	CodeMissingRequiredSignature: "MissingRequiredSignature",
}

var codeMessages = map[Code]string{
	CodeInvalidInstruction:       "invalid instruction",
	CodeNotInitialized:           "account not initialized",
	CodeSurveyAlreadyExists:      "survey already exists",
	CodeSurveyNotFound:           "survey not found",
	CodeAlreadyClaimed:           "already claimed reward",
	CodeSurveyFull:               "survey is full",
	CodeSurveyClosed:             "survey is closed",
	CodeInvalidOwner:             "invalid owner",
	CodeInsufficientFunds:        "insufficient funds",
	CodeInvalidRewardAmount:      "invalid reward amount",
	CodeOverflow:                 "overflow",
	CodeInvalidMetadata:          "invalid metadata",
	CodeMissingRequiredSignature: "missing required signature",
}

func (c Code) String() string {
	if n, ok := codeNames[c]; ok {
		return n
	}
	return fmt.Sprintf("Code(%d)", uint32(c))
}

// HTTPStatus maps a program error code onto the API's status codes.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeInvalidInstruction, CodeInvalidMetadata, CodeInvalidRewardAmount:
		return http.StatusBadRequest
	case CodeMissingRequiredSignature:
		return http.StatusUnauthorized
	case CodeInvalidOwner:
		return http.StatusForbidden
	case CodeNotInitialized, CodeSurveyNotFound:
		return http.StatusNotFound
	case CodeSurveyAlreadyExists, CodeAlreadyClaimed:
		return http.StatusConflict
	case CodeSurveyFull, CodeSurveyClosed, CodeInsufficientFunds, CodeOverflow:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// ProgramError is returned for every precondition violation. Two ProgramErrors match under
// errors.Is when their codes are equal, so callers compare against the Err* sentinels.
type ProgramError struct {
	Code   Code
	Detail string
}

func (e *ProgramError) Error() string {
	msg := codeMessages[e.Code]
	if msg == "" {
		msg = e.Code.String()
	}
	if e.Detail != "" {
		return msg + ": " + e.Detail
	}
	return msg
}

func (e *ProgramError) Is(target error) bool {
	t, ok := target.(*ProgramError)
	return ok && t.Code == e.Code
}

// Errorf returns a ProgramError for code with a formatted detail.
func Errorf(code Code, format string, args ...any) error {
	return &ProgramError{Code: code, Detail: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the program error code from err.
func CodeOf(err error) (Code, bool) {
	var pe *ProgramError
	if errors.As(err, &pe) {
		return pe.Code, true
	}
	return 0, false
}

var (
	ErrInvalidInstruction       = &ProgramError{Code: CodeInvalidInstruction}
	ErrNotInitialized           = &ProgramError{Code: CodeNotInitialized}
	ErrSurveyAlreadyExists      = &ProgramError{Code: CodeSurveyAlreadyExists}
	ErrSurveyNotFound           = &ProgramError{Code: CodeSurveyNotFound}
	ErrAlreadyClaimed           = &ProgramError{Code: CodeAlreadyClaimed}
	ErrSurveyFull               = &ProgramError{Code: CodeSurveyFull}
	ErrSurveyClosed             = &ProgramError{Code: CodeSurveyClosed}
	ErrInvalidOwner             = &ProgramError{Code: CodeInvalidOwner}
	ErrInsufficientFunds        = &ProgramError{Code: CodeInsufficientFunds}
	ErrInvalidRewardAmount      = &ProgramError{Code: CodeInvalidRewardAmount}
	ErrOverflow                 = &ProgramError{Code: CodeOverflow}
	ErrInvalidMetadata          = &ProgramError{Code: CodeInvalidMetadata}
	ErrMissingRequiredSignature = &ProgramError{Code: CodeMissingRequiredSignature}
)
