package auth

import (
	"errors"
	"fmt"
)

// Result is the status code of a legacy auth server response.
type Result byte

const (
	ResultSuccess           Result = 0x00
	ResultFailure           Result = 0x01
	ResultUnknown           Result = 0x02
	ResultBanned            Result = 0x03
	ResultUnknownAccount    Result = 0x04
	ResultIncorrectPassword Result = 0x05
	ResultAlreadyOnline     Result = 0x06
	ResultNoTime            Result = 0x07
	ResultDBBusy            Result = 0x08
	ResultVersionInvalid    Result = 0x09
	ResultVersionUpdate     Result = 0x0A
	ResultInvalidServer     Result = 0x0B
	ResultSuspended         Result = 0x0C
	ResultNoAccess          Result = 0x0D
	ResultSuccessSurvey     Result = 0x0E
	ResultParentControl     Result = 0x0F
	ResultLockedEnforced    Result = 0x10

	// ResultInternalError is never sent by a server; it marks local failures.
	ResultInternalError Result = 0xFF
)

var resultNames = map[Result]string{
	ResultSuccess:           "SUCCESS",
	ResultFailure:           "FAILURE",
	ResultUnknown:           "UNKNOWN",
	ResultBanned:            "BANNED",
	ResultUnknownAccount:    "UNKNOWN_ACCOUNT",
	ResultIncorrectPassword: "INCORRECT_PASSWORD",
	ResultAlreadyOnline:     "ALREADY_ONLINE",
	ResultNoTime:            "NO_TIME",
	ResultDBBusy:            "DB_BUSY",
	ResultVersionInvalid:    "VERSION_INVALID",
	ResultVersionUpdate:     "VERSION_UPDATE",
	ResultInvalidServer:     "INVALID_SERVER",
	ResultSuspended:         "SUSPENDED",
	ResultNoAccess:          "NO_ACCESS",
	ResultSuccessSurvey:     "SUCCESS_SURVEY",
	ResultParentControl:     "PARENT_CONTROL",
	ResultLockedEnforced:    "LOCKED_ENFORCED",
	ResultInternalError:     "INTERNAL_ERROR",
}

func (r Result) String() string {
	if name, ok := resultNames[r]; ok {
		return name
	}
	return fmt.Sprintf("RESULT_0x%02X", byte(r))
}

// ErrProofMismatch is returned when the server proof (M2) does not match.
var ErrProofMismatch = errors.New("server proof mismatch")

// ErrBadChallenge is returned for challenge parameters the exchange cannot use.
var ErrBadChallenge = errors.New("bad logon challenge")

// RejectedError reports a non-success status received from the auth server.
// Err carries the local cause when Result is ResultInternalError.
type RejectedError struct {
	Stage  State
	Result Result
	Err    error
}

func (e *RejectedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("auth rejected at %s: %s: %v", e.Stage, e.Result, e.Err)
	}
	return fmt.Sprintf("auth rejected at %s: %s", e.Stage, e.Result)
}

func (e *RejectedError) Unwrap() error {
	return e.Err
}
