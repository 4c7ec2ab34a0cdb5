package assignments

import (
	"errors"
	"testing"
)

func TestEncodeLayouts(t *testing.T) {
	tests := []struct {
		name   string
		record Record
		want   string
	}{
		{name: "command card", record: CommandRecord(5), want: "##0#5#0"},
		{name: "stream card", record: PathRecord("http://radio.example/live", 3), want: "#http://radio.example/live#0#3#0"},
		{name: "track directory", record: PathRecord("/data/cards/Album", 11), want: "#/data/cards/Album#0#11#0"},
		{name: "max mode", record: CommandRecord(255), want: "##0#255#0"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.record.Encode(); got != tc.want {
				t.Fatalf("Encode() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestParseRecordRoundTripsPathsContainingDelimiter(t *testing.T) {
	original := PathRecord("http://radio.example/live#frag", 7)
	parsed, err := ParseRecord(original.Encode())
	if err != nil {
		t.Fatalf("ParseRecord returned error: %v", err)
	}
	if parsed != original {
		t.Fatalf("parsed %+v, want %+v", parsed, original)
	}

	cmd, err := ParseRecord("##0#5#0")
	if err != nil {
		t.Fatalf("ParseRecord returned error: %v", err)
	}
	if !cmd.IsCommand() || cmd.Mode != 5 {
		t.Fatalf("unexpected command record %+v", cmd)
	}
}

func TestParseRecordRejectsMalformedValues(t *testing.T) {
	for _, value := range []string{"", "/path#0#1#0", "#path#0#1", "#path#1#1#0", "#path#0#256#0", "#path#0#x#0", "#path#0#1#9"} {
		if _, err := ParseRecord(value); !errors.Is(err, ErrMalformedRecord) {
			t.Fatalf("ParseRecord(%q): expected ErrMalformedRecord, got %v", value, err)
		}
	}
}
