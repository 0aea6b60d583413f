package wizard

import (
	"sync"

	"github.com/google/uuid"
)

// Message is one turn of the plan page's question and answer history.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Session is the state of one user's pass through the wizard. It is owned
// by exactly one browser session and never shared between users.
type Session struct {
	ID      string
	Profile *UserProfile
	History []Message
	Stage   Stage

	artifacts map[string]Artifact
	mu        sync.Mutex
}

func NewSession() *Session {
	return newSessionWithID(uuid.NewString())
}

func newSessionWithID(id string) *Session {
	return &Session{
		ID:        id,
		Profile:   NewProfile(),
		Stage:     StageIntro,
		artifacts: make(map[string]Artifact),
	}
}

// Lock serialises requests that belong to the same session.
func (s *Session) Lock() { s.mu.Lock() }
func (s *Session) Unlock() { s.mu.Unlock() }

// Continue advances to the next stage and returns it. At plan it stays at plan.
func (s *Session) Continue() Stage {
	s.Stage = s.Stage.Next()
	return s.Stage
}

// Reset clears the profile, artifacts and history and returns to intro.
func (s *Session) Reset() {
	s.Profile = NewProfile()
	s.artifacts = make(map[string]Artifact)
	s.History = nil
	s.Stage = StageIntro
}

// SetArtifact stores a generated artifact, replacing any earlier one under key.
func (s *Session) SetArtifact(key string, a Artifact) {
	if s.artifacts == nil {
		s.artifacts = make(map[string]Artifact)
	}
	s.artifacts[key] = a
}

func (s *Session) Artifact(key string) (Artifact, bool) {
	a, ok := s.artifacts[key]
	return a, ok
}

// ArtifactText is the text of a PlainText artifact, or "" when absent.
func (s *Session) ArtifactText(key string) string {
	a, ok := s.artifacts[key]
	if !ok || a.Kind != PlainText {
		return ""
	}
	return a.Text
}

// ArtifactKeys lists the keys currently holding an artifact.
func (s *Session) ArtifactKeys() []string {
	keys := make([]string, 0, len(s.artifacts))
	for _, k := range []string{
		ArtifactVisionImage, ArtifactQuadrantAnalysis, ArtifactQuadrantChart, ArtifactMotto,
		ArtifactCoursePlan, ArtifactLongevityFactors, ArtifactReportPath,
	} {
		if _, ok := s.artifacts[k]; ok {
			keys = append(keys, k)
		}
	}
	return keys
}

func (s *Session) ArtifactCount() int { return len(s.artifacts) }

// AppendTurn records one question and its answer.
func (s *Session) AppendTurn(question, answer string) {
	s.History = append(s.History,
		Message{Role: RoleUser, Content: question},
		Message{Role: RoleAssistant, Content: answer},
	)
}

// RecentHistory returns at most the last n history messages.
func (s *Session) RecentHistory(n int) []Message {
	if n <= 0 || len(s.History) == 0 {
		return nil
	}
	start := len(s.History) - n
	if start < 0 {
		start = 0
	}
	return append([]Message(nil), s.History[start:]...)
}
