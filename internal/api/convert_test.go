package api

import (
	"testing"
	"time"

	"cardsync/internal/assignments"
	"cardsync/internal/resolver"
)

func TestFromAssignment(t *testing.T) {
	updated := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	tests := []struct {
		name  string
		value string
		want  Assignment
	}{
		{
			name:  "command",
			value: "##0#5#0",
			want:  Assignment{TagID: "04AB", Value: "##0#5#0", Kind: "command", Mode: 5},
		},
		{
			name:  "path",
			value: "#https://radio.example/stream#0#1#0",
			want:  Assignment{TagID: "04AB", Value: "#https://radio.example/stream#0#1#0", Kind: "path", Path: "https://radio.example/stream", Mode: 1},
		},
		{
			name:  "malformed",
			value: "garbage",
			want:  Assignment{TagID: "04AB", Value: "garbage", Kind: "unknown", Malformed: true},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromAssignment(assignments.Assignment{TagID: "04AB", Value: tt.value, UpdatedAt: updated})
			tt.want.UpdatedAt = "2026-03-04T05:06:07.000Z"
			if got != tt.want {
				t.Fatalf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestFromResolverStatusFormatsTimes(t *testing.T) {
	started := time.Date(2026, 1, 2, 3, 4, 5, 0, time.FixedZone("x", 3600))
	got := FromResolverStatus(resolver.Status{State: "login", TagID: "04AB", StartedAt: started})
	if got.StartedAt != "2026-01-02T02:04:05.000Z" {
		t.Fatalf("startedAt = %q", got.StartedAt)
	}
	if got.LastFinishedAt != "" {
		t.Fatalf("expected empty lastFinishedAt, got %q", got.LastFinishedAt)
	}
	parsed, ok := ParseTime(got.StartedAt)
	if !ok || !parsed.Equal(started) {
		t.Fatalf("ParseTime round trip failed: %v %v", parsed, ok)
	}
}
