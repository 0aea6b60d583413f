package wizard

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Answer keys used across the wizard pages, prompts and the report.
const (
	KeyName             = "name"
	KeyAge              = "age"
	KeyActivity         = "activity"
	KeyStress           = "stress"
	KeySleep            = "sleep"
	KeyHealthGoal       = "health_goal"
	KeyHealthChallenges = "health_challenges"
	KeyDiet             = "diet"
	KeyMealsPerDay      = "meals_per_day"
	KeyHomeCooking      = "home_cooking"
	KeyWaterGlasses     = "water_glasses"
	KeyBreakfastHabits  = "breakfast_habits"
	KeyBreakfastExample = "breakfast_example"
	KeyEveningEating    = "evening_eating"
	KeyLastMealHours    = "last_meal_hours"
	KeyFoodsLiked       = "foods_liked"
	KeyFoodsAvoided     = "foods_avoided"
	KeyDietChallenges   = "diet_challenges"
	KeySuperfoods       = "superfoods"
	KeyEatingRules      = "eating_rules"
	KeyCoursePlan       = "course_plan"
	KeyFoodPreferences  = "food_preferences"
	KeyFoodPhilosophy   = "food_philosophy"
)

// ValueKind tags the variant held by a Value.
type ValueKind int

const (
	KindString ValueKind = iota
	KindNumber
	KindList
)

// Value is one answer: a string, an integer or an ordered list of strings.
type Value struct {
	kind ValueKind
	str  string
	num  int
	list []string
}

func String(s string) Value { return Value{kind: KindString, str: s} }
func Number(n int) Value { return Value{kind: KindNumber, num: n} }
func List(items ...string) Value { return Value{kind: KindList, list: append([]string(nil), items...)} }

func (v Value) Kind() ValueKind { return v.kind }

// Int returns the number held by a KindNumber value.
func (v Value) Int() (int, bool) { return v.num, v.kind == KindNumber }

// Text renders the value for display; lists are joined with ", ".
func (v Value) Text() string {
	switch v.kind {
	case KindNumber:
		return strconv.Itoa(v.num)
	case KindList:
		return strings.Join(v.list, ", ")
	default:
		return v.str
	}
}

// Items returns the list items, or the scalar as a one-element list.
func (v Value) Items() []string {
	switch v.kind {
	case KindList:
		return append([]string(nil), v.list...)
	default:
		if t := v.Text(); t != "" {
			return []string{t}
		}
		return nil
	}
}

// Empty reports whether the value carries no displayable content.
func (v Value) Empty() bool {
	switch v.kind {
	case KindNumber:
		return false
	case KindList:
		return len(v.list) == 0
	default:
		return strings.TrimSpace(v.str) == ""
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNumber:
		return json.Marshal(v.num)
	case KindList:
		if v.list == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.list)
	default:
		return json.Marshal(v.str)
	}
}

func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("empty answer value")
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = String(s)
	case '[':
		var items []string
		if err := json.Unmarshal(data, &items); err != nil {
			return fmt.Errorf("answer list must contain strings: %w", err)
		}
		*v = List(items...)
	case 'n':
		return fmt.Errorf("answer value must not be null")
	default:
		var f float64
		if err := json.Unmarshal(data, &f); err != nil {
			return fmt.Errorf("unsupported answer value %s", string(data))
		}
		if f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
			return fmt.Errorf("answer number must be a whole number, got %s", string(data))
		}
		*v = Number(int(f))
	}
	return nil
}

// UserProfile maps answer keys to values. Keys are never removed once set.
type UserProfile struct {
	values map[string]Value
}

func NewProfile() *UserProfile {
	return &UserProfile{values: make(map[string]Value)}
}

func (p *UserProfile) Set(key string, v Value) {
	if p.values == nil {
		p.values = make(map[string]Value)
	}
	p.values[key] = v
}

func (p *UserProfile) Get(key string) (Value, bool) {
	v, ok := p.values[key]
	return v, ok
}

// Has reports whether key is set to a non-empty value.
func (p *UserProfile) Has(key string) bool {
	v, ok := p.values[key]
	return ok && !v.Empty()
}

// Text returns the display text for key, or fallback when it is missing or empty.
func (p *UserProfile) Text(key, fallback string) string {
	if !p.Has(key) {
		return fallback
	}
	return p.values[key].Text()
}

// Items returns the list for key, or fallback when it is missing or empty.
func (p *UserProfile) Items(key string, fallback ...string) []string {
	if !p.Has(key) {
		return fallback
	}
	return p.values[key].Items()
}

func (p *UserProfile) Len() int { return len(p.values) }

// Keys returns the set keys in lexical order.
func (p *UserProfile) Keys() []string {
	keys := make([]string, 0, len(p.values))
	for k := range p.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns an independent copy.
func (p *UserProfile) Clone() *UserProfile {
	c := NewProfile()
	for k, v := range p.values {
		if v.kind == KindList {
			v.list = append([]string(nil), v.list...)
		}
		c.values[k] = v
	}
	return c
}

func (p *UserProfile) MarshalJSON() ([]byte, error) {
	if p.values == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(p.values)
}

func (p *UserProfile) UnmarshalJSON(data []byte) error {
	values := make(map[string]Value)
	if err := json.Unmarshal(data, &values); err != nil {
		return err
	}
	p.values = values
	return nil
}
