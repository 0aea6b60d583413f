package report

import (
	"strings"

	"golang.org/x/text/encoding/charmap"
)

// Encode converts s to the single-byte Windows-1252 form the PDF core
// fonts expect. Bullets become '*' and any other character the code page
// cannot hold becomes '?'. It never fails.
func Encode(s string) string {
	s = strings.ReplaceAll(s, "•", "*")
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < 0x80 {
			b.WriteByte(byte(r))
			continue
		}
		if c, ok := charmap.Windows1252.EncodeRune(r); ok {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('?')
	}
	return b.String()
}
