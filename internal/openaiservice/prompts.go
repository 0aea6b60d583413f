package openaiservice

import (
	"fmt"
	"strings"

	"github.com/Jakeminator123/kurs/internal/wizard"
)

/* =================================================================================
							PROMPT TEMPLATES
	Every template reads the profile through Defaults, so a partial or empty
	profile still renders a complete prompt.
=================================================================================*/

// DefaultCoach is the persona's name when none is configured.
const DefaultCoach = "Ulrika Davidsson"

// PromptKind selects one of the fixed prompt templates.
type PromptKind int

const (
	CoursePlan PromptKind = iota
	LongevityAnalysis
	FoodAnalysis
	SWOTAnalysis
	LifeMotto
	VisionImage
	LongevityFactors
)

func (k PromptKind) String() string {
	switch k {
	case CoursePlan:
		return "course_plan"
	case LongevityAnalysis:
		return "longevity_analysis"
	case FoodAnalysis:
		return "food_analysis"
	case SWOTAnalysis:
		return "swot_analysis"
	case LifeMotto:
		return "life_motto"
	case VisionImage:
		return "vision_image"
	case LongevityFactors:
		return "longevity_factors"
	default:
		return "unknown"
	}
}

// Defaults holds the text used for each profile key that is missing or empty.
var Defaults = map[string]string{
	wizard.KeyName:             "the participant",
	wizard.KeyAge:              "an undisclosed age",
	wizard.KeyActivity:         "an unspecified activity level",
	wizard.KeyStress:           "an unspecified stress level",
	wizard.KeySleep:            "an unreported number of",
	wizard.KeyHealthGoal:       "improve their overall health",
	wizard.KeyDiet:             "a balanced diet",
	wizard.KeyFoodPreferences:  "a mixed diet",
	wizard.KeyFoodPhilosophy:   "a balanced approach to food",
	wizard.KeyHealthChallenges: "none specified",
	wizard.KeySuperfoods:       "none specified",
	wizard.KeyDietChallenges:   "none specified",
	wizard.KeyEatingRules:      "none specified",
	wizard.KeyFoodsLiked:       "nothing in particular",
	wizard.KeyFoodsAvoided:     "nothing in particular",
}

// Builder renders prompts. It is pure: the same profile always yields the same text.
type Builder struct {
	Coach string
}

func NewBuilder(coach string) Builder {
	if strings.TrimSpace(coach) == "" {
		coach = DefaultCoach
	}
	return Builder{Coach: coach}
}

// Persona is the fixed system message sent with every chat call.
func (b Builder) Persona() string {
	return fmt.Sprintf("You are %s, a well-known health chef and expert in functional food and longevity. "+
		"You are inspiring, knowledgeable about nutrition and give personal advice on healthy eating that extends life "+
		"and increases well-being. Draw on current research on longevity, the Blue Zones and functional food. "+
		"Be personal and refer to your own experience as a health chef.", b.coach())
}

func (b Builder) coach() string {
	if b.Coach == "" {
		return DefaultCoach
	}
	return b.Coach
}

// Build renders the prompt for kind from profile. It never fails.
func (b Builder) Build(kind PromptKind, p *wizard.UserProfile) string {
	if p == nil {
		p = wizard.NewProfile()
	}
	v := func(key string) string { return p.Text(key, Defaults[key]) }

	switch kind {
	case CoursePlan:
		return fmt.Sprintf("Create a personal 8-week course plan in Functional Food and Longevity for %s. "+
			"The person is %s years old, has the activity level %s, follows %s "+
			"and has specific health challenges such as %s. Their health goal is to %s. "+
			"The course should contain weekly focus areas, each with:\n"+
			"1. A theme for the week\n"+
			"2. Three superfoods to focus on\n"+
			"3. A practical challenge\n"+
			"4. A recipe to try\n"+
			"5. An insight from %s\n"+
			"6. A taste of what the full course would go deeper into\n"+
			"Start every week with a short heading line ending in a colon. "+
			"Make the plan personal, make it clear that this is only an introduction and that the full course with %s "+
			"contains much deeper material, personal coaching and tools for transformation. "+
			"End with an encouraging invitation to the full course.",
			v(wizard.KeyName), v(wizard.KeyAge), v(wizard.KeyActivity), v(wizard.KeyDiet),
			v(wizard.KeyHealthChallenges), v(wizard.KeyHealthGoal), b.coach(), b.coach())

	case LongevityAnalysis:
		return fmt.Sprintf("Create a detailed four-field analysis for %s who has the following habits:\n"+
			"Age: %s\n"+
			"Activity level: %s\n"+
			"Stress level: %s\n"+
			"Sleep: %s hours/night\n"+
			"Diet: %s\n"+
			"Superfoods eaten regularly: %s\n"+
			"Health challenges: %s\n\n"+
			"Give at least 4 bullet points for each category, each category under its own heading line:\n"+
			"1. Strength Factors (existing habits that promote a long life)\n"+
			"2. Challenges (habits that may reduce life expectancy)\n"+
			"3. Opportunities (functional food and habits to introduce)\n"+
			"4. Life Wisdom (deeper insights about food, health and longevity)\n\n"+
			"Base the analysis on research about the Blue Zones, longevity and functional food connected to what the person has shared.",
			v(wizard.KeyName), v(wizard.KeyAge), v(wizard.KeyActivity), v(wizard.KeyStress),
			v(wizard.KeySleep), v(wizard.KeyDiet), v(wizard.KeySuperfoods), v(wizard.KeyHealthChallenges))

	case FoodAnalysis:
		return fmt.Sprintf("Create a detailed four-field analysis, similar to a SWOT analysis, for a person with these goals and preferences:\n"+
			"Health goal: %s\n"+
			"Food preferences: %s\n"+
			"Activity level: %s\n"+
			"Food philosophy: %s\n\n"+
			"Give at least 4 bullet points for each category, each category under its own heading line:\n"+
			"1. Strengths (current healthy habits to build on)\n"+
			"2. Weaknesses (challenges to overcome)\n"+
			"3. Opportunities (ways to improve diet and health)\n"+
			"4. Wisdom Insights (deeper insights about food, health and well-being)\n\n"+
			"Base the analysis on %s's philosophy of functional food and nourishing meals.",
			v(wizard.KeyHealthGoal), v(wizard.KeyFoodPreferences), v(wizard.KeyActivity),
			v(wizard.KeyFoodPhilosophy), b.coach())

	case SWOTAnalysis:
		return fmt.Sprintf("Make a detailed SWOT analysis of the current lifestyle of %s, aged %s, "+
			"with the activity level %s, the stress level %s and %s.\n\n"+
			"Give at least 5 bullet points for each category, each category under its own heading line:\n"+
			"1. Strengths\n"+
			"2. Weaknesses\n"+
			"3. Opportunities\n"+
			"4. Threats\n\n"+
			"Ground the analysis in concrete nutrition research.",
			v(wizard.KeyName), v(wizard.KeyAge), v(wizard.KeyActivity), v(wizard.KeyStress), v(wizard.KeyDiet))

	case LifeMotto:
		return fmt.Sprintf("Create an inspiring and powerful personal life motto for %s "+
			"that focuses on longevity, a healthy lifestyle and functional food.\n\n"+
			"The person has the following traits:\n"+
			"Age: %s\n"+
			"Health goal: %s\n"+
			"Diet: %s\n\n"+
			"The motto should be personal, inspiring and reflect %s's philosophy that food is medicine. "+
			"Finish with a short reflection on how the motto can guide the person in everyday life.",
			v(wizard.KeyName), v(wizard.KeyAge), v(wizard.KeyHealthGoal), v(wizard.KeyDiet), b.coach())

	case VisionImage:
		return fmt.Sprintf("Create a dreamy, magical and inspiring image that represents an optimal healthy lifestyle for %s "+
			"who wants to %s.\n\n"+
			"The image should be imaginative and almost spiritual with a feeling of transformation. Include beautiful, "+
			"vibrant colours, soft light and a sense of well-being. Show nourishing, living produce radiating energy, "+
			"where every ingredient seems to have a glowing aura.\n\n"+
			"Include subtle symbols of longevity and vitality such as a flowing spring of clear water, sprouting plants "+
			"and perhaps a beautiful tree representing the journey of life. The atmosphere should be calm and hopeful.\n\n"+
			"Create a dreamy, almost magical image with soft, glowing colours and a feeling of transformation. "+
			"Use a light, warm palette with subtle blue and green tones representing health and renewal.",
			v(wizard.KeyName), v(wizard.KeyHealthGoal))

	case LongevityFactors:
		return fmt.Sprintf("Based on the following information about %s: "+
			"Age: %s, Activity level: %s, Stress level: %s, Sleep: %s hours/night, Diet: %s, "+
			"Regular superfoods: %s. "+
			"Identify the three most important factors that positively affect the person's potential life expectancy "+
			"and the three factors that should be improved. Give concrete and personal recommendations on how these "+
			"improvements can be made with functional food principles according to %s's philosophy. "+
			"Be specific and personal in your recommendations.",
			v(wizard.KeyName), v(wizard.KeyAge), v(wizard.KeyActivity), v(wizard.KeyStress),
			v(wizard.KeySleep), v(wizard.KeyDiet), v(wizard.KeySuperfoods), b.coach())
	}

	return fmt.Sprintf("Give %s one practical piece of advice about functional food.", v(wizard.KeyName))
}

// Question wraps a participant's question for the plan page's Q&A.
func (b Builder) Question(question string) string {
	return fmt.Sprintf("Question about functional food and longevity: %s. "+
		"Give an informative answer that also sparks interest in the full course with %s.",
		strings.TrimSpace(question), b.coach())
}
