package wizard

import "fmt"

// Stage is one step of the wizard's fixed linear flow.
type Stage string

const (
	StageIntro     Stage = "intro"
	StageLifestyle Stage = "lifestyle"
	StageDiet      Stage = "diet"
	StageLongevity Stage = "longevity"
	StagePlan      Stage = "plan"
)

// Stages lists every stage in flow order.
var Stages = []Stage{StageIntro, StageLifestyle, StageDiet, StageLongevity, StagePlan}

var stageTitles = map[Stage]string{
	StageIntro:     "Welcome",
	StageLifestyle: "Your lifestyle",
	StageDiet:      "Your eating habits",
	StageLongevity: "Longevity analysis",
	StagePlan:      "Your personal course plan",
}

// ParseStage validates a stage name.
func ParseStage(s string) (Stage, error) {
	for _, st := range Stages {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown stage %q", s)
}

// Index returns the position of s in the flow, or -1.
func (s Stage) Index() int {
	for i, st := range Stages {
		if st == s {
			return i
		}
	}
	return -1
}

// Next returns the following stage. The plan stage is terminal.
func (s Stage) Next() Stage {
	i := s.Index()
	if i < 0 {
		return StageIntro
	}
	if i == len(Stages)-1 {
		return s
	}
	return Stages[i+1]
}

// Terminal reports whether no stage follows s.
func (s Stage) Terminal() bool { return s == StagePlan }

// Title is the user-facing name of the stage.
func (s Stage) Title() string {
	if t, ok := stageTitles[s]; ok {
		return t
	}
	return "Unknown step"
}

// InferStage derives a plausible stage purely from which profile keys are populated.
// It is used when restoring a snapshot and may disagree with a session's live stage.
func InferStage(p *UserProfile) Stage {
	switch {
	case p.Has(KeyCoursePlan):
		return StagePlan
	case p.Has(KeySuperfoods) || p.Has(KeyDiet):
		return StageLongevity
	case p.Has(KeyAge) && p.Has(KeyActivity):
		return StageDiet
	case p.Has(KeyName):
		return StageLifestyle
	default:
		return StageIntro
	}
}
