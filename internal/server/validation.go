package server

import (
	"encoding/json"
	"errors"
	"strings"
)

const maxNameLength = 20

var (
	errInvalidName       = errors.New("invalid name")
	errInvalidSubmission = errors.New("invalid submission")
)

func validateName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" || len(trimmed) > maxNameLength {
		return "", errInvalidName
	}
	if !isSafeText(trimmed) {
		return "", errInvalidName
	}
	return trimmed, nil
}

func isSafeText(text string) bool {
	for _, r := range text {
		if r < 0x20 || r == 0x7f {
			return false
		}
	}
	return true
}

// validateNumber accepts integers in the playable range only. The resolver's
// averaging is undefined for anything else, so bad values are rejected at the
// edge rather than recorded.
func validateNumber(raw json.Number) (int, error) {
	value, err := raw.Int64()
	if err != nil {
		return 0, errInvalidSubmission
	}
	if value < minNumber || value > maxNumber {
		return 0, errInvalidSubmission
	}
	return int(value), nil
}

// wsErrorMessage maps internal errors to the wire messages clients key on.
func wsErrorMessage(err error) string {
	switch {
	case errors.Is(err, errRoomNotFound):
		return "Room not found"
	case errors.Is(err, errRoomFull):
		return "Room is full"
	case errors.Is(err, errInvalidSubmission):
		return "Invalid submission"
	case errors.Is(err, errInvalidName):
		return "Invalid name"
	}
	return "Request failed"
}
