package pages

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/Jakeminator123/kurs/internal/wizard"
)

// ErrValidation groups every FieldError.
var ErrValidation = errors.New("invalid answer")

// FieldError is an answer that breaks a field constraint.
type FieldError struct {
	Key    string `json:"key"`
	Reason string `json:"reason"`
}

func (e *FieldError) Error() string { return fmt.Sprintf("%s: %s", e.Key, e.Reason) }

func (e *FieldError) Unwrap() error { return ErrValidation }

// ApplyAnswers validates answers against the page's fields and, only if all
// of them pass, writes them into p. Blank text answers are skipped so an
// earlier value is never cleared.
func ApplyAnswers(page Page, p *wizard.UserProfile, answers map[string]wizard.Value) error {
	keys := make([]string, 0, len(answers))
	for k := range answers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	accepted := make(map[string]wizard.Value, len(answers))
	for _, key := range keys {
		field, ok := page.Field(key)
		if !ok {
			return &FieldError{Key: key, Reason: fmt.Sprintf("not asked on the %s page", page.Stage)}
		}
		v, skip, err := check(field, answers[key])
		if err != nil {
			return err
		}
		if !skip {
			accepted[key] = v
		}
	}

	for k, v := range accepted {
		p.Set(k, v)
	}
	return nil
}

func check(f Field, v wizard.Value) (wizard.Value, bool, error) {
	switch f.Kind {
	case FieldNumber:
		num, ok := v.Int()
		if !ok {
			return v, false, &FieldError{Key: f.Key, Reason: "must be a number"}
		}
		if num < f.Min || num > f.Max {
			return v, false, &FieldError{Key: f.Key, Reason: fmt.Sprintf("must be between %d and %d", f.Min, f.Max)}
		}
		return v, false, nil

	case FieldChoice:
		if v.Kind() != wizard.KindString {
			return v, false, &FieldError{Key: f.Key, Reason: "must be one of the listed options"}
		}
		if !slices.Contains(f.Options, v.Text()) {
			return v, false, &FieldError{Key: f.Key, Reason: fmt.Sprintf("%q is not one of the listed options", v.Text())}
		}
		return v, false, nil

	case FieldMultiChoice:
		if v.Kind() != wizard.KindList {
			return v, false, &FieldError{Key: f.Key, Reason: "must be a list of options"}
		}
		for _, item := range v.Items() {
			if !slices.Contains(f.Options, item) {
				return v, false, &FieldError{Key: f.Key, Reason: fmt.Sprintf("%q is not one of the listed options", item)}
			}
		}
		return v, v.Empty(), nil

	default:
		if v.Kind() != wizard.KindString {
			return v, false, &FieldError{Key: f.Key, Reason: "must be text"}
		}
		text := strings.TrimSpace(v.Text())
		return wizard.String(text), text == "", nil
	}
}
