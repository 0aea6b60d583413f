package quadrant

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"unicode"
	"unicode/utf8"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	ChartWidth  = 1200
	ChartHeight = 1000

	MaxItems    = 7
	MaxLabelLen = 60

	Placeholder = "No information available"

	margin      = 24
	cellPadding = 24
	titleScale  = 2
	lineHeight  = 40
)

var (
	background = color.RGBA{R: 0xf0, G: 0xf0, B: 0xf0, A: 0xff}
	textColor  = color.RGBA{R: 0x21, G: 0x21, B: 0x21, A: 0xff}
)

// Cell is the resolved content of one chart quadrant.
type Cell struct {
	Title string
	Color color.RGBA
	Lines []string
}

// Truncate shortens labels longer than MaxLabelLen runes to 57 runes plus "...".
func Truncate(s string) string {
	if utf8.RuneCountInString(s) <= MaxLabelLen {
		return s
	}
	r := []rune(s)
	return string(r[:MaxLabelLen-3]) + "..."
}

// Layout resolves what each cell shows, in scheme order.
func Layout(a Analysis) []Cell {
	cells := make([]Cell, len(a.Scheme.Headings))
	for i, h := range a.Scheme.Headings {
		var items []string
		if i < len(a.Buckets) {
			items = a.Buckets[i]
		}
		lines := make([]string, 0, MaxItems)
		for j, item := range items {
			if j == MaxItems {
				break
			}
			lines = append(lines, Truncate(item))
		}
		if len(lines) == 0 {
			lines = append(lines, Placeholder)
		}
		cells[i] = Cell{Title: h.Name, Color: h.Color, Lines: lines}
	}
	return cells
}

// Render draws the analysis as a 2x2 PNG. The same analysis always yields
// the same bytes.
func Render(a Analysis) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, ChartWidth, ChartHeight))
	draw.Draw(img, img.Bounds(), image.NewUniform(background), image.Point{}, draw.Src)

	cellW := (ChartWidth - 3*margin) / 2
	cellH := (ChartHeight - 3*margin) / 2

	for i, cell := range Layout(a) {
		col, row := i%2, i/2
		x0 := margin + col*(cellW+margin)
		y0 := margin + row*(cellH+margin)
		rect := image.Rect(x0, y0, x0+cellW, y0+cellH)

		draw.Draw(img, rect, image.NewUniform(tint(cell.Color)), image.Point{}, draw.Src)

		drawText(img, x0+cellPadding, y0+cellPadding, cell.Title, cell.Color, titleScale)

		y := y0 + cellPadding + 13*titleScale + lineHeight
		for _, line := range cell.Lines {
			bullet := image.Rect(x0+cellPadding, y+4, x0+cellPadding+6, y+10)
			draw.Draw(img, bullet, image.NewUniform(cell.Color), image.Point{}, draw.Src)
			drawText(img, x0+cellPadding+16, y, line, textColor, 1)
			y += lineHeight
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode chart: %w", err)
	}
	return buf.Bytes(), nil
}

// RenderText parses text with scheme and renders the result.
func RenderText(scheme Scheme, text string) ([]byte, error) {
	return Render(Parse(scheme, text))
}

// tint mixes c into the background at alpha 0x22.
func tint(c color.RGBA) color.RGBA {
	mix := func(bg, fg uint8) uint8 {
		return uint8((int(bg)*(255-0x22) + int(fg)*0x22) / 255)
	}
	return color.RGBA{R: mix(background.R, c.R), G: mix(background.G, c.G), B: mix(background.B, c.B), A: 0xff}
}

func drawText(dst *image.RGBA, x, y int, s string, col color.Color, scale int) {
	s = foldASCII(s)
	face := basicfont.Face7x13
	width := font.MeasureString(face, s).Ceil()
	if width == 0 {
		return
	}
	metrics := face.Metrics()
	height := metrics.Height.Ceil()

	glyphs := image.NewRGBA(image.Rect(0, 0, width, height))
	d := font.Drawer{
		Dst:  glyphs,
		Src:  image.NewUniform(col),
		Face: face,
		Dot:  fixed.P(0, metrics.Ascent.Ceil()),
	}
	d.DrawString(s)

	target := image.Rect(x, y, x+width*scale, y+height*scale)
	xdraw.NearestNeighbor.Scale(dst, target, glyphs, glyphs.Bounds(), xdraw.Over, nil)
}

// foldASCII strips diacritics so labels such as "Möjligheter" stay legible
// with the ASCII bitmap face.
func foldASCII(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
