package openaiservice

import "fmt"

// Result is the outcome of one generation call. Exactly one of Value and Err is meaningful.
type Result struct {
	Value string
	Err   error
}

func (r Result) OK() bool { return r.Err == nil }

// FailurePolicy decides how a failed Result reaches the caller.
type FailurePolicy int

const (
	// Degrade turns a failure into a readable placeholder string and never errors.
	Degrade FailurePolicy = iota
	// Propagate returns the failure as an error.
	Propagate
)

func (p FailurePolicy) String() string {
	if p == Propagate {
		return "propagate"
	}
	return "degrade"
}

// Placeholder is the text a degraded result carries in place of generated content.
func Placeholder(err error) string {
	return fmt.Sprintf("Could not generate a response because of an error: %v", err)
}

// Resolve applies policy to r.
func (r Result) Resolve(policy FailurePolicy) (string, error) {
	if r.OK() {
		return r.Value, nil
	}
	if policy == Propagate {
		return "", r.Err
	}
	return Placeholder(r.Err), nil
}
