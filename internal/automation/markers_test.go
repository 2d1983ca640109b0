// internal/automation/markers_test.go
package automation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xkilldash9x/formpilot/internal/config"
)

func TestMarkerTableClassify(t *testing.T) {
	table, err := NewMarkerTable(config.NewDefaultConfig().Signup.Markers)
	require.NoError(t, err)

	tests := []struct {
		name string
		html string
		want Outcome
	}{
		{"email code", `<div class="ant-message">(22026) Email already exists.</div>`, OutcomeEmailExists},
		{"email text only", `<span>EMAIL ALREADY EXISTS</span>`, OutcomeEmailExists},
		{"username code", `<div>(37049) User name has been registered</div>`, OutcomeUsernameTaken},
		{"nothing", `<form><input id="email"></form>`, OutcomeNone},
		// Both markers present: the earlier table entry wins.
		{"first match wins", `<p>37049</p><p>22026</p>`, OutcomeEmailExists},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := Snapshot{HTML: tt.html}
			assert.Equal(t, tt.want, table.Classify(&snap))
		})
	}
}

func TestMarkerTableOrderIsData(t *testing.T) {
	table, err := NewMarkerTable([]config.MarkerConfig{
		{Pattern: "37049", Outcome: "username_taken"},
		{Pattern: "22026", Outcome: "email_exists"},
	})
	require.NoError(t, err)

	snap := Snapshot{HTML: `<p>37049</p><p>22026</p>`}
	assert.Equal(t, OutcomeUsernameTaken, table.Classify(&snap))
	assert.Equal(t, OutcomeEmailExists, table.Only(OutcomeEmailExists).Classify(&snap))
}

func TestMarkerRegex(t *testing.T) {
	table, err := NewMarkerTable([]config.MarkerConfig{{Pattern: `code\s*\(\d{5}\)`, Outcome: "email_exists", Regex: true}})
	require.NoError(t, err)

	snap := Snapshot{HTML: "<p>CODE (22026)</p>"}
	assert.Equal(t, OutcomeEmailExists, table.Classify(&snap))

	_, err = NewMarkerTable([]config.MarkerConfig{{Pattern: "(", Outcome: "x", Regex: true}})
	assert.Error(t, err)
}

func TestSnapshotQueries(t *testing.T) {
	snap := Snapshot{
		URL: "https://example.test/annotation/training",
		HTML: `<html><body><table>
			<tr><td>Intro</td><td>a</td><td>b</td><td><span class="ant-badge-status-text">Passed</span></td></tr>
			<tr><td>Standard Building</td><td>a</td><td>b</td><td><span class="ant-badge-status-text"> In Progress </span></td></tr>
		</table></body></html>`,
	}

	row := "//tr[.//td[contains(., 'Standard Building')]]"
	text, err := snap.Text(Within(row, ".//td[4]//span[contains(@class, 'ant-badge-status-text')]"))
	require.NoError(t, err)
	assert.Equal(t, "In Progress", text)

	ok, err := snap.Exists(row)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = snap.Text("//div[@id='missing']")
	assert.ErrorIs(t, err, ErrElementNotFound)

	_, err = snap.Exists("//tr[")
	assert.Error(t, err)

	assert.True(t, snap.Contains("standard building"))
}

func TestXPathLiteral(t *testing.T) {
	assert.Equal(t, "'plain'", xpathLiteral("plain"))
	assert.Equal(t, `"it's"`, xpathLiteral("it's"))
	assert.Equal(t, `concat('a', "'", 'b"c')`, xpathLiteral(`a'b"c`))
}
