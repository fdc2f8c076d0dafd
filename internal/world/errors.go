package world

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionClosed is returned by WaitAuthenticated after Close.
	ErrSessionClosed = errors.New("world session closed")
	// ErrUnexpectedChallenge is returned when the server repeats the auth challenge.
	ErrUnexpectedChallenge = errors.New("auth challenge after crypt was enabled")
)

var authCodeNames = map[byte]string{
	0x0C: "AUTH_OK",
	0x0D: "AUTH_FAILED",
	0x0E: "AUTH_REJECT",
	0x0F: "AUTH_BAD_SERVER_PROOF",
	0x10: "AUTH_UNAVAILABLE",
	0x11: "AUTH_SYSTEM_ERROR",
	0x12: "AUTH_BILLING_ERROR",
	0x13: "AUTH_BILLING_EXPIRED",
	0x14: "AUTH_VERSION_MISMATCH",
	0x15: "AUTH_UNKNOWN_ACCOUNT",
	0x16: "AUTH_INCORRECT_PASSWORD",
	0x17: "AUTH_SESSION_EXPIRED",
	0x18: "AUTH_SERVER_SHUTTING_DOWN",
	0x19: "AUTH_ALREADY_LOGGING_IN",
	0x1A: "AUTH_LOGIN_SERVER_NOT_FOUND",
	0x1B: "AUTH_WAIT_QUEUE",
	0x1C: "AUTH_BANNED",
	0x1D: "AUTH_ALREADY_ONLINE",
	0x1E: "AUTH_NO_TIME",
	0x1F: "AUTH_DB_BUSY",
	0x20: "AUTH_SUSPENDED",
	0x21: "AUTH_PARENTAL_CONTROL",
}

// AuthResponseError is returned when the world server refuses the session.
type AuthResponseError struct {
	Code byte
}

func (e *AuthResponseError) Error() string {
	if name, ok := authCodeNames[e.Code]; ok {
		return "world auth refused: " + name
	}
	return fmt.Sprintf("world auth refused: code 0x%02X", e.Code)
}
