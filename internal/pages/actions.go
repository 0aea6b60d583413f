package pages

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Jakeminator123/kurs/internal/mailer"
	"github.com/Jakeminator123/kurs/internal/metrics"
	"github.com/Jakeminator123/kurs/internal/openaiservice"
	"github.com/Jakeminator123/kurs/internal/quadrant"
	"github.com/Jakeminator123/kurs/internal/report"
	"github.com/Jakeminator123/kurs/internal/wizard"
	"github.com/rs/zerolog"
)

// DefaultHistoryTurns is how many earlier messages the coaching question sees.
const DefaultHistoryTurns = 10

var (
	ErrWrongStage    = errors.New("action not available at the current stage")
	ErrEmptyQuestion = errors.New("question is empty")
)

// Actions runs the generation actions of every page. Callers hold the
// session's lock for the duration of a call.
type Actions struct {
	Gateway      openaiservice.Gateway
	Prompts      openaiservice.Builder
	Assembler    *report.Assembler
	Mailer       *mailer.Mailer
	Metrics      *metrics.Metrics
	HistoryTurns int
	Now          func() time.Time
}

// Analysis is the longevity quadrant text with its parsed buckets and chart.
type Analysis struct {
	Text     string
	Parsed   quadrant.Analysis
	ChartPNG []byte
}

func (a *Actions) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

func (a *Actions) gate(s *wizard.Session, act Action) error {
	if !For(s.Stage).Offers(act) {
		return fmt.Errorf("%w: %s is not offered on the %s page", ErrWrongStage, act, s.Stage)
	}
	return nil
}

func (a *Actions) text(ctx context.Context, kind openaiservice.PromptKind, p *wizard.UserProfile) string {
	return openaiservice.Text(ctx, a.Gateway, a.Prompts.Build(kind, p), nil, openaiservice.DefaultTemperature)
}

// Answer validates answers against the current page and stores them.
func (a *Actions) Answer(s *wizard.Session, answers map[string]wizard.Value) error {
	return ApplyAnswers(For(s.Stage), s.Profile, answers)
}

// Continue moves the session to the next stage.
func (a *Actions) Continue(ctx context.Context, s *wizard.Session) wizard.Stage {
	from := s.Stage
	to := s.Continue()
	if to != from {
		a.Metrics.StageEntered(string(to))
	}
	zerolog.Ctx(ctx).Info().Str("session", s.ID).Str("from", string(from)).Str("to", string(to)).Msg("stage continue")
	return to
}

// VisionImage generates the diet page's vision image. Failures are returned.
func (a *Actions) VisionImage(ctx context.Context, s *wizard.Session) (string, error) {
	if err := a.gate(s, ActionVisionImage); err != nil {
		return "", err
	}
	prompt := a.Prompts.Build(openaiservice.VisionImage, s.Profile)
	url, err := openaiservice.Image(ctx, a.Gateway, prompt, openaiservice.DefaultImageOptions)
	if err != nil {
		return "", err
	}
	s.SetArtifact(wizard.ArtifactVisionImage, wizard.ImageArtifact(url))
	return url, nil
}

// QuadrantAnalysis generates the longevity four-field analysis and draws its chart.
func (a *Actions) QuadrantAnalysis(ctx context.Context, s *wizard.Session) (*Analysis, error) {
	if err := a.gate(s, ActionQuadrantAnalysis); err != nil {
		return nil, err
	}
	text := a.text(ctx, openaiservice.LongevityAnalysis, s.Profile)
	parsed := quadrant.Parse(quadrant.Longevity, text)
	png, err := quadrant.Render(parsed)
	if err != nil {
		return nil, fmt.Errorf("render quadrant chart: %w", err)
	}

	s.SetArtifact(wizard.ArtifactQuadrantAnalysis, wizard.TextArtifact(text))
	s.SetArtifact(wizard.ArtifactQuadrantChart, wizard.ChartArtifact(png))
	return &Analysis{Text: text, Parsed: parsed, ChartPNG: png}, nil
}

func (a *Actions) LifeMotto(ctx context.Context, s *wizard.Session) (string, error) {
	if err := a.gate(s, ActionLifeMotto); err != nil {
		return "", err
	}
	motto := a.text(ctx, openaiservice.LifeMotto, s.Profile)
	s.SetArtifact(wizard.ArtifactMotto, wizard.TextArtifact(motto))
	return motto, nil
}

func (a *Actions) LongevityFactors(ctx context.Context, s *wizard.Session) (string, error) {
	if err := a.gate(s, ActionLongevityFactors); err != nil {
		return "", err
	}
	factors := a.text(ctx, openaiservice.LongevityFactors, s.Profile)
	s.SetArtifact(wizard.ArtifactLongevityFactors, wizard.TextArtifact(factors))
	return factors, nil
}

// CoursePlan generates the 8-week plan and keeps it in the profile so the
// report and stage inference see it.
func (a *Actions) CoursePlan(ctx context.Context, s *wizard.Session) (string, error) {
	if err := a.gate(s, ActionCoursePlan); err != nil {
		return "", err
	}
	plan := a.text(ctx, openaiservice.CoursePlan, s.Profile)
	s.Profile.Set(wizard.KeyCoursePlan, wizard.String(plan))
	s.SetArtifact(wizard.ArtifactCoursePlan, wizard.TextArtifact(plan))
	return plan, nil
}

// Ask answers a coaching question with the recent history as context and
// records the turn.
func (a *Actions) Ask(ctx context.Context, s *wizard.Session, question string) (string, error) {
	if err := a.gate(s, ActionQuestion); err != nil {
		return "", err
	}
	question = strings.TrimSpace(question)
	if question == "" {
		return "", ErrEmptyQuestion
	}
	turns := a.HistoryTurns
	if turns <= 0 {
		turns = DefaultHistoryTurns
	}
	answer := openaiservice.Text(ctx, a.Gateway, a.Prompts.Question(question), s.RecentHistory(turns), openaiservice.DefaultTemperature)
	s.AppendTurn(question, answer)
	return answer, nil
}

// ReportInput collects everything the session has generated so far.
func ReportInput(s *wizard.Session, at time.Time) report.Input {
	in := report.Input{
		Profile:      s.Profile,
		QuadrantText: s.ArtifactText(wizard.ArtifactQuadrantAnalysis),
		Motto:        s.ArtifactText(wizard.ArtifactMotto),
		FullAnalysis: true,
		GeneratedAt:  at,
	}
	if chart, ok := s.Artifact(wizard.ArtifactQuadrantChart); ok {
		in.ChartPNG = chart.PNG
	}
	if img, ok := s.Artifact(wizard.ArtifactVisionImage); ok {
		in.VisionImageURL = img.URL
	}
	return in
}

// Report writes the PDF and remembers its path on the session. The report
// it replaces is removed, so a session keeps at most one file on disk.
func (a *Actions) Report(ctx context.Context, s *wizard.Session) (*report.Report, error) {
	if err := a.gate(s, ActionReport); err != nil {
		return nil, err
	}
	previous := s.ArtifactText(wizard.ArtifactReportPath)
	rep, err := a.Assembler.Write(ctx, ReportInput(s, a.now()), "")
	if err != nil {
		return nil, err
	}
	s.SetArtifact(wizard.ArtifactReportPath, wizard.TextArtifact(rep.Path))
	if previous != "" && previous != rep.Path {
		removeReport(ctx, previous)
	}
	return rep, nil
}

// Reset removes the session's generated files and starts it over at intro.
func (a *Actions) Reset(ctx context.Context, s *wizard.Session) {
	a.Discard(ctx, s)
	s.Reset()
}

// Discard removes files generated for s. It is called on reset and when the
// session is dropped from the store.
func (a *Actions) Discard(ctx context.Context, s *wizard.Session) {
	if path := s.ArtifactText(wizard.ArtifactReportPath); path != "" {
		removeReport(ctx, path)
	}
}

func removeReport(ctx context.Context, path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		zerolog.Ctx(ctx).Warn().Err(err).Str("file", path).Msg("could not remove old report")
		return
	}
	zerolog.Ctx(ctx).Debug().Str("file", path).Msg("old report removed")
}

// EmailReport mails the latest report to the participant, writing one first
// if the session has none.
func (a *Actions) EmailReport(ctx context.Context, s *wizard.Session, to string) (string, error) {
	if err := a.gate(s, ActionEmailReport); err != nil {
		return "", err
	}
	if !a.Mailer.Configured() {
		return "", mailer.ErrNotConfigured
	}

	path := s.ArtifactText(wizard.ArtifactReportPath)
	if path == "" {
		rep, err := a.Report(ctx, s)
		if err != nil {
			return "", err
		}
		path = rep.Path
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read report: %w", err)
	}

	name := s.Profile.Text(wizard.KeyName, "there")
	filename := filepath.Base(path)
	if err := a.Mailer.SendReport(ctx, to, name, filename, data); err != nil {
		return "", err
	}
	return filename, nil
}
