package quadrant

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Analysis holds one bucket of bullet items per heading of its scheme.
// Buckets[i] belongs to Scheme.Headings[i].
type Analysis struct {
	Scheme  Scheme
	Buckets [][]string
}

// Bucket returns the items under the named heading.
func (a Analysis) Bucket(name string) []string {
	for i, h := range a.Scheme.Headings {
		if h.Name == name {
			return a.Buckets[i]
		}
	}
	return nil
}

// Empty reports whether no bucket has any item.
func (a Analysis) Empty() bool {
	for _, b := range a.Buckets {
		if len(b) > 0 {
			return false
		}
	}
	return true
}

// Parse buckets generated text by heading. It is a best-effort heuristic
// over free text and never fails: text without any recognised heading
// yields four empty buckets.
//
// A line containing a heading keyword closes the open heading and starts a
// new bucket for the matched one. Otherwise a bulleted line inside an open
// heading is collected without its marker. Everything else is ignored.
// Closing a bucket with items replaces whatever that heading held before,
// so the last non-empty occurrence of a repeated heading wins.
func Parse(scheme Scheme, text string) Analysis {
	a := Analysis{Scheme: scheme, Buckets: make([][]string, len(scheme.Headings))}
	current := -1
	var open []string

	flush := func() {
		if current >= 0 && len(open) > 0 {
			a.Buckets[current] = open
		}
		open = nil
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if h := matchHeading(scheme, line); h >= 0 {
			flush()
			current = h
			continue
		}
		if current < 0 {
			continue
		}
		if item, ok := stripBullet(line); ok && item != "" {
			open = append(open, item)
		}
	}
	flush()
	return a
}

func matchHeading(scheme Scheme, line string) int {
	lower := strings.ToLower(line)
	for i, h := range scheme.Headings {
		for _, kw := range h.Keywords {
			if strings.Contains(lower, kw) {
				return i
			}
		}
	}
	return -1
}

// stripBullet removes one leading marker (•, -, *, – or N. / N)) and the
// spaces after it.
func stripBullet(line string) (string, bool) {
	r, size := utf8.DecodeRuneInString(line)
	switch r {
	case '•', '-', '*', '–':
		return strings.TrimLeftFunc(line[size:], unicode.IsSpace), true
	}

	i := 0
	for i < len(line) && line[i] >= '0' && line[i] <= '9' {
		i++
	}
	if i > 0 && i < len(line) && (line[i] == '.' || line[i] == ')') {
		return strings.TrimLeftFunc(line[i+1:], unicode.IsSpace), true
	}
	return "", false
}

// Serialize writes the analysis back as heading lines followed by "- item"
// lines. Parsing the result yields the same analysis.
func (a Analysis) Serialize() string {
	var b strings.Builder
	for i, h := range a.Scheme.Headings {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(h.Name)
		b.WriteString(":\n")
		for _, item := range a.Buckets[i] {
			b.WriteString("- ")
			b.WriteString(item)
			b.WriteString("\n")
		}
	}
	return b.String()
}
