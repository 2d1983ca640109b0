// internal/automation/markers.go
package automation

import (
	"fmt"
	"regexp"

	"github.com/xkilldash9x/formpilot/internal/config"
)

// Outcome is the transient result of one page step.
type Outcome string

const (
	// OutcomeNone means no marker matched within the window.
	OutcomeNone Outcome = ""
	// OutcomeSuccess is a step that completed without an error marker.
	OutcomeSuccess Outcome = "success"
	// OutcomeExhausted is returned by ExecuteWithRetry when the conflict never cleared.
	OutcomeExhausted Outcome = "exhausted"

	OutcomeEmailExists        Outcome = "email_exists"
	OutcomeUsernameTaken      Outcome = "username_taken"
	OutcomeCredentialRejected Outcome = "credential_rejected"
	OutcomePasswordUpdated    Outcome = "password_updated"
	OutcomeInvalidPassword    Outcome = "invalid_password"
)

// Marker is a text pattern whose presence on the page signals Outcome.
type Marker struct {
	Pattern string
	Outcome Outcome
	re      *regexp.Regexp
}

// Matches tests the marker against a snapshot.
func (m Marker) Matches(s *Snapshot) bool {
	if m.re != nil {
		return m.re.MatchString(s.HTML)
	}
	return s.Contains(m.Pattern)
}

// MarkerTable is an ordered list of markers. Order is significant.
type MarkerTable []Marker

// NewMarkerTable compiles configured markers. Regex patterns match case-insensitively.
func NewMarkerTable(cfgs []config.MarkerConfig) (MarkerTable, error) {
	table := make(MarkerTable, 0, len(cfgs))
	for i, c := range cfgs {
		m := Marker{Pattern: c.Pattern, Outcome: Outcome(c.Outcome)}
		if c.Regex {
			re, err := regexp.Compile("(?i)" + c.Pattern)
			if err != nil {
				return nil, fmt.Errorf("marker %d: invalid pattern %q: %w", i, c.Pattern, err)
			}
			m.re = re
		}
		table = append(table, m)
	}
	return table, nil
}

// Classify returns the outcome of the first marker present in s, or
// OutcomeNone. First match wins, not best match.
func (t MarkerTable) Classify(s *Snapshot) Outcome {
	for _, m := range t {
		if m.Matches(s) {
			return m.Outcome
		}
	}
	return OutcomeNone
}

// Only returns the markers whose outcome is one of outcomes, keeping order.
func (t MarkerTable) Only(outcomes ...Outcome) MarkerTable {
	var out MarkerTable
	for _, m := range t {
		for _, o := range outcomes {
			if m.Outcome == o {
				out = append(out, m)
				break
			}
		}
	}
	return out
}
