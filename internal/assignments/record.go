package assignments

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Delimiter separates record fields.
const Delimiter = "#"

// ErrMalformedRecord reports a stored value that does not follow the record layout.
var ErrMalformedRecord = errors.New("malformed assignment record")

// Record is the decoded form of a stored assignment value.
type Record struct {
	Path string
	Mode uint8
}

// CommandRecord builds the record for a command card.
func CommandRecord(mode uint8) Record {
	return Record{Mode: mode}
}

// PathRecord builds the record for a stream URL or a local track directory.
func PathRecord(path string, mode uint8) Record {
	return Record{Path: path, Mode: mode}
}

// Encode renders the record as "#<path>#0#<mode>#0".
func (r Record) Encode() string {
	var b strings.Builder
	b.Grow(len(r.Path) + 12)
	b.WriteString(Delimiter)
	b.WriteString(r.Path)
	b.WriteString(Delimiter)
	b.WriteString("0")
	b.WriteString(Delimiter)
	b.WriteString(strconv.Itoa(int(r.Mode)))
	b.WriteString(Delimiter)
	b.WriteString("0")
	return b.String()
}

// IsCommand reports whether the record carries no path.
func (r Record) IsCommand() bool { return r.Path == "" }

// ParseRecord decodes a stored value. Fields are taken from the right so a
// path may itself contain the delimiter.
func ParseRecord(value string) (Record, error) {
	if !strings.HasPrefix(value, Delimiter) {
		return Record{}, fmt.Errorf("%w: missing leading delimiter", ErrMalformedRecord)
	}
	rest := value[len(Delimiter):]
	fields := make([]string, 3)
	for i := 2; i >= 0; i-- {
		idx := strings.LastIndex(rest, Delimiter)
		if idx < 0 {
			return Record{}, fmt.Errorf("%w: expected 4 fields", ErrMalformedRecord)
		}
		fields[i] = rest[idx+len(Delimiter):]
		rest = rest[:idx]
	}
	if fields[0] != "0" || fields[2] != "0" {
		return Record{}, fmt.Errorf("%w: unexpected reserved field", ErrMalformedRecord)
	}
	mode, err := strconv.ParseUint(fields[1], 10, 8)
	if err != nil {
		return Record{}, fmt.Errorf("%w: mode %q", ErrMalformedRecord, fields[1])
	}
	return Record{Path: rest, Mode: uint8(mode)}, nil
}
