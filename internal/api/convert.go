package api

import (
	"time"

	"cardsync/internal/assignments"
	"cardsync/internal/resolver"
)

// FormatTime renders t for API payloads; the zero time becomes "".
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

// ParseTime reverses FormatTime.
func ParseTime(value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(dateTimeFormat, value)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// FromAssignment converts a stored assignment, decoding its record.
func FromAssignment(a assignments.Assignment) Assignment {
	out := Assignment{
		TagID:     a.TagID,
		Value:     a.Value,
		UpdatedAt: FormatTime(a.UpdatedAt),
	}
	record, err := a.Record()
	if err != nil {
		out.Kind = "unknown"
		out.Malformed = true
		return out
	}
	out.Mode = int(record.Mode)
	out.Path = record.Path
	if record.IsCommand() {
		out.Kind = "command"
	} else {
		out.Kind = "path"
	}
	return out
}

// FromAssignments converts a list of stored assignments.
func FromAssignments(list []assignments.Assignment) []Assignment {
	out := make([]Assignment, 0, len(list))
	for _, a := range list {
		out = append(out, FromAssignment(a))
	}
	return out
}

// FromResolverStatus converts a resolver status snapshot.
func FromResolverStatus(s resolver.Status) ResolverStatus {
	return ResolverStatus{
		State:          s.State,
		TagID:          s.TagID,
		CorrelationID:  s.CorrelationID,
		CardType:       s.CardType,
		CurrentTrack:   s.CurrentTrack,
		TrackCount:     s.TrackCount,
		StartedAt:      FormatTime(s.StartedAt),
		LastTagID:      s.LastTagID,
		LastOutcome:    s.LastOutcome,
		LastError:      s.LastError,
		LastFinishedAt: FormatTime(s.LastFinishedAt),
		Resolved:       s.Resolved,
		Failed:         s.Failed,
	}
}
