package report

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Jakeminator123/kurs/internal/metrics"
	"github.com/Jakeminator123/kurs/internal/wizard"
	"github.com/disintegration/imaging"
	"github.com/go-pdf/fpdf"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	pageWidth   = 190.0
	lineHeight  = 8.0
	visionMaxPx = 800

	fontFamily = "Helvetica"
)

// ImageFetcher downloads the vision image by URL.
type ImageFetcher interface {
	FetchImage(ctx context.Context, url string) ([]byte, error)
}

// Assembler renders reports and writes them to OutputDir.
type Assembler struct {
	OutputDir string
	Coach     string
	Fetcher   ImageFetcher
	Heading   HeadingFunc
	Metrics   *metrics.Metrics

	// Contact details printed on the closing page.
	ContactURL   string
	ContactPhone string
	// CourseStart is the start date shown on the closing page, if set.
	CourseStart  string
}

// Report is a written PDF.
type Report struct {
	Name    string `json:"name"`
	Path    string `json:"path"`
	Size    int    `json:"size"`
	DataURI string `json:"data_uri"`
}

// Write renders in and stores it as health_plan_YYYYMMDD_<id>.pdf. An empty
// id is replaced by a random one so concurrent sessions never collide.
func (a *Assembler) Write(ctx context.Context, in Input, id string) (*Report, error) {
	data, err := a.Render(ctx, in)
	if err != nil {
		a.Metrics.ReportGenerated("error")
		return nil, err
	}

	if id == "" {
		id = uuid.NewString()
	}
	if in.GeneratedAt.IsZero() {
		in.GeneratedAt = time.Now()
	}
	name := fmt.Sprintf("health_plan_%s_%s.pdf", in.GeneratedAt.Format("20060102"), id)

	if err := os.MkdirAll(a.OutputDir, 0o755); err != nil {
		a.Metrics.ReportGenerated("error")
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(a.OutputDir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		a.Metrics.ReportGenerated("error")
		return nil, fmt.Errorf("write report: %w", err)
	}

	a.Metrics.ReportGenerated("ok")
	zerolog.Ctx(ctx).Info().Str("file", name).Int("bytes", len(data)).Msg("report written")
	return &Report{Name: name, Path: path, Size: len(data), DataURI: DataURI(data)}, nil
}

// DataURI encodes a PDF as an inline download link target.
func DataURI(pdf []byte) string {
	return "data:application/pdf;base64," + base64.StdEncoding.EncodeToString(pdf)
}

// Render builds the PDF bytes for in. Content problems never fail the
// report: unencodable characters are substituted and an unusable vision
// image is skipped.
func (a *Assembler) Render(ctx context.Context, in Input) ([]byte, error) {
	if in.Profile == nil {
		in.Profile = wizard.NewProfile()
	}
	if in.GeneratedAt.IsZero() {
		in.GeneratedAt = time.Now()
	}
	coach := a.Coach
	if coach == "" {
		coach = "Ulrika Davidsson"
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCreationDate(in.GeneratedAt)
	pdf.SetTitle("Functional Food & Longevity", false)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()

	w := &writer{pdf: pdf, log: zerolog.Ctx(ctx)}
	for _, s := range Sections(in) {
		switch s {
		case SectionTitle:
			w.title(in.Profile.Text(wizard.KeyName, "you"))
		case SectionVisionImage:
			a.vision(ctx, w, in.VisionImageURL)
		case SectionIntro:
			w.italic(11, introText(coach))
			pdf.Ln(5)
		case SectionProfile:
			w.profile(in.Profile)
		case SectionHabits:
			w.heading(16, "Your detailed analysis")
			w.heading(14, "Your eating habits")
			w.body(habitsText(in.Profile))
			pdf.Ln(5)
		case SectionSuggestions:
			if !in.Profile.Has(wizard.KeySuperfoods) {
				w.heading(16, "Your detailed analysis")
			}
			w.heading(14, fmt.Sprintf("%s's suggestions for improvement", firstName(coach)))
			w.body(suggestionsText(coach))
			pdf.Ln(5)
		case SectionCoursePlan:
			pdf.AddPage()
			w.heading(16, "Your personal course plan")
			for _, p := range PlanParagraphs(in.Profile.Text(wizard.KeyCoursePlan, ""), a.Heading) {
				if p.Heading {
					w.heading(14, p.Text)
					continue
				}
				w.body(p.Text)
				pdf.Ln(5)
			}
		case SectionQuadrant:
			pdf.AddPage()
			w.heading(16, "Four-field analysis for healthy ageing")
			if len(in.ChartPNG) > 0 {
				w.image("quadrant_chart", in.ChartPNG, "PNG", 10, pageWidth)
			}
			w.body(in.QuadrantText)
		case SectionMotto:
			pdf.AddPage()
			w.heading(16, "Your personal life motto")
			w.italic(12, in.Motto)
		case SectionClosing:
			pdf.AddPage()
			w.setFont("B", 16)
			pdf.CellFormat(pageWidth, 10, Encode("Take the next step towards optimal health"), "", 1, "C", false, 0, "")
			pdf.Ln(10)
			w.body(closingText(coach, a.CourseStart, contactLine(a.ContactURL, a.ContactPhone)))
			w.footer(fmt.Sprintf("Generated %s | Functional Food & Longevity with %s", in.GeneratedAt.Format("2006-01-02"), coach))
		}
	}

	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("assemble report: %w", err)
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render report: %w", err)
	}
	return buf.Bytes(), nil
}

// vision downloads, downscales and places the vision image. Any failure
// skips the section.
func (a *Assembler) vision(ctx context.Context, w *writer, url string) {
	logger := zerolog.Ctx(ctx)
	if a.Fetcher == nil {
		logger.Warn().Msg("no image fetcher configured, skipping vision image")
		return
	}
	raw, err := a.Fetcher.FetchImage(ctx, url)
	if err != nil {
		logger.Warn().Err(err).Msg("could not download vision image, skipping")
		return
	}
	jpg, err := downscale(raw)
	if err != nil {
		logger.Warn().Err(err).Msg("could not decode vision image, skipping")
		return
	}
	w.pdf.Ln(5)
	w.image("vision_image", jpg, "JPG", 65, 80)
	w.pdf.Ln(5)
}

func downscale(raw []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		return nil, err
	}
	img = imaging.Fit(img, visionMaxPx, visionMaxPx, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// writer wraps the fpdf calls shared by all sections.
type writer struct {
	pdf *fpdf.Fpdf
	log *zerolog.Logger
}

func (w *writer) setFont(style string, size float64) {
	w.pdf.SetFont(fontFamily, style, size)
}

func (w *writer) title(name string) {
	w.setFont("B", 24)
	w.pdf.CellFormat(pageWidth, 20, "Functional Food & Longevity", "", 1, "C", false, 0, "")
	w.setFont("B", 18)
	w.pdf.CellFormat(pageWidth, 10, Encode("Personal health plan for "+name), "", 1, "C", false, 0, "")
	w.pdf.Ln(5)
}

func (w *writer) heading(size float64, text string) {
	w.setFont("B", size)
	w.pdf.CellFormat(pageWidth, 10, Encode(strings.TrimSpace(text)), "", 1, "", false, 0, "")
	w.pdf.Ln(2)
}

func (w *writer) body(text string) {
	w.setFont("", 12)
	w.pdf.MultiCell(pageWidth, lineHeight, Encode(strings.TrimSpace(text)), "", "", false)
}

func (w *writer) italic(size float64, text string) {
	w.setFont("I", size)
	w.pdf.MultiCell(pageWidth, lineHeight, Encode(strings.TrimSpace(text)), "", "", false)
}

func (w *writer) profile(p *wizard.UserProfile) {
	w.heading(16, "Your health profile")

	rows := [][2]string{
		{"Name", p.Text(wizard.KeyName, "N/A")},
		{"Age", p.Text(wizard.KeyAge, "N/A")},
		{"Activity", p.Text(wizard.KeyActivity, "N/A")},
		{"Stress", p.Text(wizard.KeyStress, "N/A")},
		{"Sleep", p.Text(wizard.KeySleep, "N/A") + " hours/night"},
	}
	if p.Has(wizard.KeyDiet) {
		rows = append(rows, [2]string{"Diet", p.Text(wizard.KeyDiet, "")})
	}
	if p.Has(wizard.KeyHealthGoal) {
		rows = append(rows, [2]string{"Health goal", p.Text(wizard.KeyHealthGoal, "")})
	}

	for _, row := range rows {
		w.setFont("B", 12)
		w.pdf.CellFormat(40, lineHeight, Encode(row[0]+":"), "", 0, "", false, 0, "")
		w.setFont("", 12)
		w.pdf.MultiCell(pageWidth-40, lineHeight, Encode(row[1]), "", "", false)
	}
	w.pdf.Ln(8)
}

func (w *writer) image(name string, data []byte, kind string, x, width float64) {
	opts := fpdf.ImageOptions{ImageType: kind, ReadDpi: false}
	w.pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(data))
	if err := w.pdf.Error(); err != nil {
		w.log.Warn().Err(err).Str("image", name).Msg("could not embed image, skipping")
		w.pdf.ClearError()
		return
	}
	w.pdf.ImageOptions(name, x, -1, width, 0, true, opts, 0, "")
	w.pdf.Ln(5)
}

// footer is drawn at the bottom margin without triggering a page break.
func (w *writer) footer(text string) {
	w.pdf.SetAutoPageBreak(false, 0)
	w.pdf.SetY(-15)
	w.setFont("I", 8)
	w.pdf.CellFormat(0, 10, Encode(text), "", 0, "C", false, 0, "")
	w.pdf.SetAutoPageBreak(true, 15)
}

func firstName(full string) string {
	if f := strings.Fields(full); len(f) > 0 {
		return f[0]
	}
	return full
}

func introText(coach string) string {
	return fmt.Sprintf("This personal health report is based on the information you shared about your lifestyle and eating habits. "+
		"It is a taste of the deep and transformative knowledge you can gain through %s's complete course in Functional Food and Longevity.\n\n"+
		"With the right knowledge and tools you can reach optimal health and longevity through conscious food choices and lifestyle changes.", coach)
}

func habitsText(p *wizard.UserProfile) string {
	var b strings.Builder
	b.WriteString("Your food choices include:\n\n")
	fmt.Fprintf(&b, "Superfoods you eat: %s\n\n", p.Text(wizard.KeySuperfoods, "N/A"))
	if p.Has(wizard.KeyMealsPerDay) {
		fmt.Fprintf(&b, "Meals per day: %s\n\n", p.Text(wizard.KeyMealsPerDay, ""))
	}
	if p.Has(wizard.KeyFoodsLiked) {
		fmt.Fprintf(&b, "Food preferences: %s\n\n", p.Text(wizard.KeyFoodsLiked, ""))
	}
	if p.Has(wizard.KeyHomeCooking) {
		fmt.Fprintf(&b, "Cooking from scratch: %s times/week\n\n", p.Text(wizard.KeyHomeCooking, ""))
	}
	return b.String()
}

func suggestionsText(coach string) string {
	return fmt.Sprintf("Based on your profile %s recommends that you focus on:\n\n"+
		"1. Eating more foods rich in antioxidants to counteract inflammatory processes in the body\n"+
		"2. Balanced meal planning that supports your health goals\n"+
		"3. Regular meal routines that optimise your energy through the day\n"+
		"4. Prioritising fermented foods to strengthen the gut flora and the immune system\n\n"+
		"These improvements are only the start of your journey towards optimal health and well-being. "+
		"For a complete transformation and personal guidance, %s's full course is recommended.", coach, firstName(coach))
}

// contactLine tells the reader how to book a place.
func contactLine(url, phone string) string {
	switch {
	case url != "" && phone != "":
		return fmt.Sprintf("To secure your place, visit %s or call %s.", url, phone)
	case url != "":
		return fmt.Sprintf("To secure your place, visit %s.", url)
	case phone != "":
		return fmt.Sprintf("To secure your place, call %s.", phone)
	default:
		return "To secure your place, contact your coach."
	}
}

func closingText(coach, courseStart, contact string) string {
	places := "The number of places is limited to 25 participants."
	if courseStart != "" {
		places = fmt.Sprintf("The course starts %s, and the number of places is limited to 25 participants.", courseStart)
	}
	return fmt.Sprintf("This is just a taste of what you can learn in %s's complete course in Functional Food and Longevity. "+
		"In the full course you get:\n\n"+
		"* 8 weeks of intensive knowledge and practical tools\n"+
		"* Personal coaching and feedback\n"+
		"* Exclusive recipes developed by %s\n"+
		"* A deep understanding of how food affects your ageing\n"+
		"* Tools for creating lasting change\n\n"+
		"%s\n\n"+
		"%s\n\n"+
		"\"My mission is to help people live longer, healthier lives through knowledge of the power of food.\" - %s",
		coach, firstName(coach), places, contact, coach)
}
