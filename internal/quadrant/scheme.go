// Package quadrant turns a four-part text analysis into buckets and draws
// them as a 2x2 chart.
package quadrant

import "image/color"

// Heading is one quadrant: its display name, the lowercase keywords that
// identify its heading line, and its colour.
type Heading struct {
	Name     string
	Keywords []string
	Color    color.RGBA
}

// Scheme is an ordered set of four headings. Order is both the keyword
// priority and the chart layout (row-major).
type Scheme struct {
	Name     string
	Headings []Heading
}

func rgb(r, g, b uint8) color.RGBA { return color.RGBA{R: r, G: g, B: b, A: 0xff} }

var (
	green  = rgb(0x4C, 0xAF, 0x50)
	red    = rgb(0xF4, 0x43, 0x36)
	blue   = rgb(0x21, 0x96, 0xF3)
	orange = rgb(0xFF, 0x98, 0x00)
)

// Longevity is the scheme used for the longevity analysis on the longevity page.
var Longevity = Scheme{
	Name: "longevity",
	Headings: []Heading{
		{Name: "Strength Factors", Keywords: []string{"strength", "styrk", "existing", "befintliga"}, Color: rgb(0x38, 0x8E, 0x3C)},
		{Name: "Challenges", Keywords: []string{"challenge", "utmaning", "reduce", "minska"}, Color: rgb(0xF5, 0x7C, 0x00)},
		{Name: "Opportunities", Keywords: []string{"opportunit", "möjlighet", "introduce", "införa"}, Color: rgb(0x19, 0x76, 0xD2)},
		{Name: "Life Wisdom", Keywords: []string{"wisdom", "visdom", "insight", "insikt"}, Color: rgb(0x7B, 0x1F, 0xA2)},
	},
}

var SWOT = Scheme{
	Name: "swot",
	Headings: []Heading{
		{Name: "Strengths", Keywords: []string{"strength", "styrkor"}, Color: green},
		{Name: "Weaknesses", Keywords: []string{"weakness", "svagheter"}, Color: red},
		{Name: "Opportunities", Keywords: []string{"opportunit", "möjligheter"}, Color: blue},
		{Name: "Threats", Keywords: []string{"threat", "risker"}, Color: orange},
	},
}

// Food swaps the threats quadrant for food wisdom.
var Food = Scheme{
	Name: "food",
	Headings: []Heading{
		{Name: "Strengths", Keywords: []string{"strength", "styrkor"}, Color: green},
		{Name: "Weaknesses", Keywords: []string{"weakness", "svagheter"}, Color: red},
		{Name: "Opportunities", Keywords: []string{"opportunit", "möjligheter"}, Color: blue},
		{Name: "Wisdom Insights", Keywords: []string{"wisdom", "visdom"}, Color: orange},
	},
}

// SchemeByName looks up one of the built-in schemes.
func SchemeByName(name string) (Scheme, bool) {
	for _, s := range []Scheme{Longevity, SWOT, Food} {
		if s.Name == name {
			return s, true
		}
	}
	return Scheme{}, false
}
