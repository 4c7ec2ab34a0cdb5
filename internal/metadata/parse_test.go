package metadata_test

import (
	"errors"
	"strings"
	"testing"

	"cardsync/internal/metadata"
)

func TestParseRejectsOversizedBody(t *testing.T) {
	body := []byte(`{"token":"` + strings.Repeat("a", 2000) + `"}`)
	_, err := metadata.Parse(body, 1000)
	if !errors.Is(err, metadata.ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
}

func TestParseAcceptsBodyAtLimit(t *testing.T) {
	prefix := `{"token":"`
	suffix := `"}`
	body := []byte(prefix + strings.Repeat("b", 1000-len(prefix)-len(suffix)) + suffix)
	if len(body) != 1000 {
		t.Fatalf("test body has %d bytes", len(body))
	}
	obj, err := metadata.Parse(body, 1000)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if token, ok := obj.String("token"); !ok || len(token) != 1000-len(prefix)-len(suffix) {
		t.Fatalf("unexpected token: ok=%v len=%d", ok, len(token))
	}
}

func TestParseDefaultLimit(t *testing.T) {
	body := []byte(`{"x":"` + strings.Repeat("c", metadata.DefaultLimit) + `"}`)
	if _, err := metadata.Parse(body, 0); !errors.Is(err, metadata.ErrTooLarge) {
		t.Fatalf("expected default limit to apply, got %v", err)
	}
}

func TestParseMalformed(t *testing.T) {
	for _, body := range []string{``, `[]`, `"token"`, `{"token":`, `null`} {
		if _, err := metadata.Parse([]byte(body), 100); !errors.Is(err, metadata.ErrMalformed) {
			t.Fatalf("Parse(%q): expected ErrMalformed, got %v", body, err)
		}
	}
}

func TestAccessorsDistinguishAbsentFromPresent(t *testing.T) {
	obj, err := metadata.Parse([]byte(`{"token":"abc","mode":5,"big":300,"frac":1.5,"nothing":null,"num":"7","tracks":[{"name":"a"},{"name":"b"}]}`), 0)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if v, ok := obj.String("token"); !ok || v != "abc" {
		t.Fatalf("token = %q %v", v, ok)
	}
	if _, ok := obj.String("missing"); ok {
		t.Fatal("expected missing field to be absent")
	}
	if _, ok := obj.String("nothing"); ok {
		t.Fatal("expected null field to be absent")
	}
	if obj.Has("nothing") {
		t.Fatal("Has should ignore null values")
	}
	if _, ok := obj.String("mode"); ok {
		t.Fatal("number should not decode as string")
	}
	if v, ok := obj.Uint8("mode"); !ok || v != 5 {
		t.Fatalf("mode = %d %v", v, ok)
	}
	if _, ok := obj.Uint8("big"); ok {
		t.Fatal("300 does not fit a byte")
	}
	if _, ok := obj.Int("frac"); ok {
		t.Fatal("fractional value should not decode as int")
	}
	if _, ok := obj.Int("num"); ok {
		t.Fatal("string should not decode as int")
	}
	tracks, ok := obj.Objects("tracks")
	if !ok || len(tracks) != 2 {
		t.Fatalf("tracks = %v %v", tracks, ok)
	}
	if name, _ := tracks[1].String("name"); name != "b" {
		t.Fatalf("second track name = %q", name)
	}
}

func TestObjectsRejectsMixedArray(t *testing.T) {
	obj, err := metadata.Parse([]byte(`{"tracks":[{"name":"a"},"b"]}`), 0)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if _, ok := obj.Objects("tracks"); ok {
		t.Fatal("expected mixed array to be rejected")
	}
}
