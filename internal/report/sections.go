// Package report assembles the participant's health plan PDF.
package report

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Jakeminator123/kurs/internal/wizard"
)

// Section is one block of the report. Sections always appear in the order
// declared here.
type Section int

const (
	SectionTitle Section = iota
	SectionVisionImage
	SectionIntro
	SectionProfile
	SectionHabits
	SectionSuggestions
	SectionCoursePlan
	SectionQuadrant
	SectionMotto
	SectionClosing
)

var sectionNames = [...]string{
	SectionTitle:       "title",
	SectionVisionImage: "vision_image",
	SectionIntro:       "intro",
	SectionProfile:     "profile_table",
	SectionHabits:      "habits",
	SectionSuggestions: "suggestions",
	SectionCoursePlan:  "course_plan",
	SectionQuadrant:    "quadrant",
	SectionMotto:       "motto",
	SectionClosing:     "closing",
}

func (s Section) String() string {
	if int(s) < len(sectionNames) {
		return sectionNames[s]
	}
	return "unknown"
}

// Input is everything the report can contain. Only Profile is required.
type Input struct {
	Profile        *wizard.UserProfile
	QuadrantText   string
	ChartPNG       []byte
	Motto          string
	VisionImageURL string
	FullAnalysis   bool
	GeneratedAt    time.Time
}

// Sections resolves which sections the report will contain for in.
func Sections(in Input) []Section {
	p := in.Profile
	if p == nil {
		p = wizard.NewProfile()
	}

	out := []Section{SectionTitle}
	if strings.TrimSpace(in.VisionImageURL) != "" {
		out = append(out, SectionVisionImage)
	}
	out = append(out, SectionIntro, SectionProfile)
	if in.FullAnalysis {
		if p.Has(wizard.KeySuperfoods) {
			out = append(out, SectionHabits)
		}
		out = append(out, SectionSuggestions)
	}
	if p.Has(wizard.KeyCoursePlan) {
		out = append(out, SectionCoursePlan)
	}
	if strings.TrimSpace(in.QuadrantText) != "" {
		out = append(out, SectionQuadrant)
	}
	if strings.TrimSpace(in.Motto) != "" {
		out = append(out, SectionMotto)
	}
	return append(out, SectionClosing)
}

// HeadingFunc decides whether a course plan paragraph is set as a heading.
type HeadingFunc func(paragraph string) bool

// DefaultHeading treats a paragraph shorter than 50 characters that ends
// with a colon as a heading.
func DefaultHeading(paragraph string) bool {
	return utf8.RuneCountInString(paragraph) < 50 && strings.HasSuffix(strings.TrimSpace(paragraph), ":")
}

// Paragraph is one block of the course plan.
type Paragraph struct {
	Text    string
	Heading bool
}

// PlanParagraphs splits plan text on blank lines and classifies each block.
func PlanParagraphs(plan string, heading HeadingFunc) []Paragraph {
	if heading == nil {
		heading = DefaultHeading
	}
	plan = strings.ReplaceAll(plan, "\r\n", "\n")
	var out []Paragraph
	for _, p := range strings.Split(plan, "\n\n") {
		if strings.TrimSpace(p) == "" {
			continue
		}
		out = append(out, Paragraph{Text: p, Heading: heading(p)})
	}
	return out
}
