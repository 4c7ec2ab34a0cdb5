package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrLoginFailed         = errors.New("login failed")
	ErrTagNotFound         = errors.New("tag not found")
	ErrUnsupportedCardType = errors.New("card type not supported")
	ErrDownloadFailed      = errors.New("download failed")
	ErrParse               = errors.New("parse error")
	ErrPersistFailed       = errors.New("persist failed")
	ErrQueueFull           = errors.New("scan queue full")
	ErrConfiguration       = errors.New("configuration error")
	ErrTransient           = errors.New("transient failure")
)

// Wrap builds an error message that includes state context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, state, operation, message string, err error) error {
	detail := buildDetail(state, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Outcome maps a resolution error to a short label used by metrics and
// notifications. A nil error is reported as "assigned".
func Outcome(err error) string {
	switch {
	case err == nil:
		return "assigned"
	case errors.Is(err, ErrLoginFailed):
		return "login_failed"
	case errors.Is(err, ErrTagNotFound):
		return "tag_not_found"
	case errors.Is(err, ErrUnsupportedCardType):
		return "unsupported_card"
	case errors.Is(err, ErrDownloadFailed):
		return "download_failed"
	case errors.Is(err, ErrPersistFailed):
		return "persist_failed"
	case errors.Is(err, ErrParse):
		return "parse_error"
	default:
		return "failed"
	}
}

// Hint returns an operator-facing next step for a resolution error.
func Hint(err error) string {
	switch {
	case errors.Is(err, ErrLoginFailed):
		return "check card_server credentials and that the card server is reachable"
	case errors.Is(err, ErrTagNotFound):
		return "register the tag on the card server before scanning it"
	case errors.Is(err, ErrUnsupportedCardType):
		return "assign a command, stream, or track list to the card on the server"
	case errors.Is(err, ErrDownloadFailed):
		return "check card server track paths and free space in paths.staging_dir"
	case errors.Is(err, ErrPersistFailed):
		return "check the assignment store backend"
	case errors.Is(err, ErrParse):
		return "card server response was malformed or exceeded card_server.max_response_bytes"
	default:
		return "check logs for details"
	}
}

func buildDetail(state, operation, message string) string {
	parts := make([]string, 0, 3)
	if state = strings.TrimSpace(state); state != "" {
		parts = append(parts, state)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
