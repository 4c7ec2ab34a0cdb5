package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// maxFileNameBytes keeps names well inside FAT/exFAT limits on SD cards.
const maxFileNameBytes = 120

// fileNameReplacer replaces filesystem-unsafe characters with safe alternatives.
var fileNameReplacer = strings.NewReplacer(
	"/", "-",
	"\\", "-",
	":", "-",
	"*", "-",
	"?", "",
	"\"", "",
	"<", "",
	">", "",
	"|", "",
)

// FoldASCII strips combining marks after canonical decomposition so "Café"
// becomes "Cafe". Runes without an ASCII base are kept.
func FoldASCII(value string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, value)
	if err != nil {
		return value
	}
	return out
}

// SanitizeFileName makes name safe as a single path segment. Accents are
// folded, control characters dropped, slashes, backslashes, colons, and
// asterisks become dashes, and other unsafe characters are removed. Names made
// only of dots collapse to "".
func SanitizeFileName(name string) string {
	name = strings.TrimSpace(FoldASCII(name))
	if name == "" {
		return ""
	}
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)
	name = strings.TrimSpace(fileNameReplacer.Replace(name))
	if strings.Trim(name, ".") == "" {
		return ""
	}
	if len(name) > maxFileNameBytes {
		cut := maxFileNameBytes
		for cut > 0 && !utf8RuneStart(name[cut]) {
			cut--
		}
		name = strings.TrimSpace(name[:cut])
	}
	return name
}

func utf8RuneStart(b byte) bool { return b&0xC0 != 0x80 }
