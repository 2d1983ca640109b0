// internal/automation/retry.go
package automation

import (
	"context"
	"fmt"
	"strings"
)

// StepFunc runs one attempt of a retried step. attempt starts at 1.
type StepFunc func(ctx context.Context, attempt int) (Outcome, error)

// ExecuteWithRetry runs step until it returns something other than conflict.
// On conflict, mutate is called before the next attempt. Any other outcome
// halts the loop and is returned unchanged; an error halts the loop and is
// returned with the outcome. If every attempt conflicts, OutcomeExhausted is
// returned after exactly maxAttempts tries. maxAttempts <= 0 means one attempt.
func ExecuteWithRetry(ctx context.Context, step StepFunc, conflict Outcome, mutate func(attempt int), maxAttempts int) (Outcome, int, error) {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return OutcomeNone, attempt - 1, err
		}
		out, err := step(ctx, attempt)
		if err != nil {
			return out, attempt, err
		}
		if out != conflict {
			return out, attempt, nil
		}
		if attempt < maxAttempts && mutate != nil {
			mutate(attempt)
		}
	}
	return OutcomeExhausted, maxAttempts, nil
}

// SuffixStrategy controls how a taken username is disambiguated.
type SuffixStrategy string

const (
	// SuffixIncrement yields name, name_2, name_3, ...
	SuffixIncrement SuffixStrategy = "increment"
	// SuffixCompound appends the same suffix each time: name, name_2, name_2_2, ...
	SuffixCompound SuffixStrategy = "compound"
)

// UsernameMutator rewrites Current after each username conflict.
type UsernameMutator struct {
	Strategy SuffixStrategy
	Base     string
	Current  string
}

// NewUsernameMutator starts at base.
func NewUsernameMutator(strategy SuffixStrategy, base string) *UsernameMutator {
	return &UsernameMutator{Strategy: strategy, Base: base, Current: base}
}

// Mutate is the mutate callback for ExecuteWithRetry.
func (m *UsernameMutator) Mutate(attempt int) {
	if m.Strategy == SuffixCompound {
		m.Current += "_2"
		return
	}
	m.Current = fmt.Sprintf("%s_%d", m.Base, attempt+1)
}

// CredentialCandidates returns stored followed by fallbacks, with blanks
// dropped and repeats removed, preserving first occurrence.
func CredentialCandidates(stored string, fallbacks []string) []string {
	seen := make(map[string]struct{}, len(fallbacks)+1)
	out := make([]string, 0, len(fallbacks)+1)
	for _, c := range append([]string{stored}, fallbacks...) {
		if strings.TrimSpace(c) == "" {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}
