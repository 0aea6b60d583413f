// Package pages describes what each wizard stage asks for and validates
// answers against those UI-level constraints before they reach the profile.
package pages

import (
	"fmt"
	"slices"

	"github.com/Jakeminator123/kurs/internal/wizard"
)

type FieldKind string

const (
	FieldText        FieldKind = "text"
	FieldTextArea    FieldKind = "textarea"
	FieldNumber      FieldKind = "number"
	FieldChoice      FieldKind = "choice"
	FieldMultiChoice FieldKind = "multi_choice"
)

// Field is one input on a page.
type Field struct {
	Key     string    `json:"key"`
	Label   string    `json:"label"`
	Kind    FieldKind `json:"kind"`
	Options []string  `json:"options,omitempty"`
	Min     int       `json:"min,omitempty"`
	Max     int       `json:"max,omitempty"`
	Default int       `json:"default,omitempty"`
	Unit    string    `json:"unit,omitempty"`
}

// Action names a generation the page offers.
type Action string

const (
	ActionVisionImage      Action = "vision_image"
	ActionQuadrantAnalysis Action = "quadrant_analysis"
	ActionLifeMotto        Action = "life_motto"
	ActionLongevityFactors Action = "longevity_factors"
	ActionCoursePlan       Action = "course_plan"
	ActionQuestion         Action = "question"
	ActionReport           Action = "report"
	ActionEmailReport      Action = "email_report"
)

// Page is the descriptor for one stage.
type Page struct {
	Stage         wizard.Stage `json:"stage"`
	Title         string       `json:"title"`
	Intro         string       `json:"intro"`
	Fields        []Field      `json:"fields"`
	Actions       []Action     `json:"actions"`
	ContinueLabel string       `json:"continue_label,omitempty"`
}

// Field looks up a field by key.
func (p Page) Field(key string) (Field, bool) {
	for _, f := range p.Fields {
		if f.Key == key {
			return f, true
		}
	}
	return Field{}, false
}

// Offers reports whether the page has action a.
func (p Page) Offers(a Action) bool { return slices.Contains(p.Actions, a) }

// For returns the page of stage. Unknown stages fall back to the intro page.
func For(stage wizard.Stage) Page {
	if p, ok := registry[stage]; ok {
		return p
	}
	return registry[wizard.StageIntro]
}

// ForSession returns the session's current page with its title personalised.
func ForSession(s *wizard.Session) Page {
	p := For(s.Stage)
	if s.Stage == wizard.StageLifestyle {
		p.Title = fmt.Sprintf("Your lifestyle - %s personal profile", possessive(s.Profile.Text(wizard.KeyName, "")))
	}
	return p
}

func possessive(name string) string {
	if name == "" {
		return "your"
	}
	return name + "'s"
}

// All lists the pages in flow order.
func All() []Page {
	out := make([]Page, 0, len(wizard.Stages))
	for _, st := range wizard.Stages {
		out = append(out, registry[st])
	}
	return out
}

var registry = map[wizard.Stage]Page{
	wizard.StageIntro: {
		Stage: wizard.StageIntro,
		Title: "Functional Food & Longevity",
		Intro: "Discover how functional food can extend your life and improve your health. " +
			"Answer a few questions and receive a personal health plan.",
		Fields: []Field{
			{Key: wizard.KeyName, Label: "What is your name?", Kind: FieldText},
		},
		ContinueLabel: "Start the assessment",
	},
	wizard.StageLifestyle: {
		Stage: wizard.StageLifestyle,
		Title: "Your lifestyle",
		Intro: "First we need to understand your current habits to give you the best recommendations.",
		Fields: []Field{
			{Key: wizard.KeyAge, Label: "How old are you?", Kind: FieldNumber, Min: 18, Max: 100, Default: 40},
			{Key: wizard.KeyActivity, Label: "How would you describe your activity level?", Kind: FieldChoice, Options: activityOptions},
			{Key: wizard.KeyStress, Label: "How would you describe your stress level?", Kind: FieldChoice, Options: stressOptions},
			{Key: wizard.KeySleep, Label: "How many hours do you sleep per night on average?", Kind: FieldNumber, Min: 4, Max: 12, Default: 7, Unit: "hours"},
			{Key: wizard.KeyHealthGoal, Label: "Describe your main health goals:", Kind: FieldTextArea},
			{Key: wizard.KeyHealthChallenges, Label: "Do you have any specific health challenges?", Kind: FieldMultiChoice, Options: healthChallengeOptions},
		},
		ContinueLabel: "Continue to eating habits",
	},
	wizard.StageDiet: {
		Stage: wizard.StageDiet,
		Title: "Your eating habits",
		Intro: "Now let's explore your eating habits so we can give personal functional food recommendations.",
		Fields: []Field{
			{Key: wizard.KeyDiet, Label: "Which diet do you mainly follow?", Kind: FieldChoice, Options: dietOptions},
			{Key: wizard.KeyMealsPerDay, Label: "How many meals do you usually eat per day?", Kind: FieldNumber, Min: 1, Max: 8, Default: 3},
			{Key: wizard.KeyHomeCooking, Label: "How many times a week do you cook from scratch?", Kind: FieldNumber, Min: 0, Max: 21, Default: 7},
			{Key: wizard.KeyWaterGlasses, Label: "How many glasses of water do you drink per day?", Kind: FieldNumber, Min: 0, Max: 15, Default: 6},
			{Key: wizard.KeyBreakfastHabits, Label: "What are your breakfast habits?", Kind: FieldChoice, Options: breakfastOptions},
			{Key: wizard.KeyBreakfastExample, Label: "Describe your typical breakfast (if you eat breakfast):", Kind: FieldTextArea},
			{Key: wizard.KeyEveningEating, Label: "Do you eat anything before going to bed?", Kind: FieldChoice, Options: eveningOptions},
			{Key: wizard.KeyLastMealHours, Label: "How long before bedtime do you eat your last meal or snack?", Kind: FieldNumber, Min: 0, Max: 6, Default: 2, Unit: "hours"},
			{Key: wizard.KeyFoodsLiked, Label: "Which foods do you eat a lot of and enjoy?", Kind: FieldTextArea},
			{Key: wizard.KeyFoodsAvoided, Label: "Which foods do you avoid or like less?", Kind: FieldTextArea},
			{Key: wizard.KeyDietChallenges, Label: "What challenges do you have with your diet?", Kind: FieldMultiChoice, Options: dietChallengeOptions},
			{Key: wizard.KeySuperfoods, Label: "Which of these superfoods do you eat regularly?", Kind: FieldMultiChoice, Options: superfoodOptions},
			{Key: wizard.KeyEatingRules, Label: "Which 'rules' do you tend to follow when eating?", Kind: FieldMultiChoice, Options: eatingRuleOptions},
		},
		Actions:       []Action{ActionVisionImage},
		ContinueLabel: "Continue to the longevity analysis",
	},
	wizard.StageLongevity: {
		Stage: wizard.StageLongevity,
		Title: "Longevity analysis",
		Intro: "Now we will explore how your habits and food choices affect your long-term health and life expectancy.",
		Actions: []Action{
			ActionQuadrantAnalysis, ActionLifeMotto, ActionLongevityFactors,
		},
		ContinueLabel: "Create your personal course plan",
	},
	wizard.StagePlan: {
		Stage: wizard.StagePlan,
		Title: "Your personal course plan",
		Intro: "Transform your health with expert knowledge. Generate your course plan, ask questions and download your report.",
		Actions: []Action{
			ActionCoursePlan, ActionQuestion, ActionReport, ActionEmailReport,
		},
	},
}

var (
	activityOptions = []string{
		"Low (mostly sedentary)",
		"Moderate (some exercise per week)",
		"Active (3-5 workouts per week)",
		"Very active (daily exercise)",
	}
	stressOptions = []string{
		"Low (rarely stressed)",
		"Moderate (sometimes stressed)",
		"High (often stressed)",
		"Very high (constantly stressed)",
	}
	healthChallengeOptions = []string{
		"Inflammation", "Digestive problems", "High blood pressure", "High cholesterol",
		"Diabetes/pre-diabetes", "Joint pain", "Fatigue/low energy", "Sleep problems",
		"Stress-related problems", "Weight problems", "Skin problems", "No specific challenges", "Other",
	}
	dietOptions = []string{
		"Mixed diet", "Vegetarian", "Vegan", "Pescetarian", "Low carb/LCHF", "Ketogenic",
		"Paleo", "Mediterranean", "Intermittent fasting", "Other/None in particular",
	}
	breakfastOptions = []string{
		"Always eat breakfast", "Usually eat breakfast", "Sometimes eat breakfast",
		"Rarely eat breakfast", "Never eat breakfast",
	}
	eveningOptions = []string{"Yes, always", "Yes, often", "Sometimes", "Rarely", "Never"}

	dietChallengeOptions = []string{
		"No time to cook", "Hard to plan meals", "Hedonic hunger/sugar cravings", "Eat too much",
		"Eat too little", "Eat too fast", "Often eat out", "Financial constraints",
		"Food allergy/intolerance", "Hard to vary the diet", "Hard to find inspiration", "No specific challenges",
	}
	superfoodOptions = []string{
		"Berries (blueberries, goji, etc)", "Leafy greens", "Nuts and seeds", "Oily fish", "Fermented foods",
		"Ginger", "Turmeric", "Spirulina/Algae", "Broccoli/Cabbages", "Avocado", "Coconut oil", "Eggs",
		"Green tea", "Cacao/Dark chocolate", "Olive oil", "None of these",
	}
	eatingRuleOptions = []string{
		"Avoid processed food", "Avoid sugar", "Avoid gluten", "Avoid dairy",
		"Only eat organic", "Intermittent fasting", "Eat at set times", "Limit carbohydrates",
		"Count calories", "Eat when hungry", "Follow strict meal times", "No specific rules",
	}
)
