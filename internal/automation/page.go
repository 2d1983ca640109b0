// internal/automation/page.go
package automation

import (
	"context"
	"time"
)

// By selects how a Selector's query is interpreted.
type By int

const (
	ByID By = iota
	ByName
	ByXPath
	ByCSS
)

func (b By) String() string {
	switch b {
	case ByID:
		return "id"
	case ByName:
		return "name"
	case ByXPath:
		return "xpath"
	case ByCSS:
		return "css"
	}
	return "unknown"
}

// Selector addresses one element on the live page.
type Selector struct {
	Query string
	By    By
}

func ID(q string) Selector    { return Selector{Query: q, By: ByID} }
func Name(q string) Selector  { return Selector{Query: q, By: ByName} }
func XPath(q string) Selector { return Selector{Query: q, By: ByXPath} }
func CSS(q string) Selector   { return Selector{Query: q, By: ByCSS} }

// IsZero reports whether the selector is unset.
func (s Selector) IsZero() bool { return s.Query == "" }

func (s Selector) String() string { return s.By.String() + "=" + s.Query }

// Page is the browser port the flows drive. One Page is bound to one browser
// session for the duration of a run.
//
// Fill and Click look the element up once and return ErrElementNotFound when it
// is absent. The Wait methods poll until the condition holds or the timeout
// elapses, returning ErrTimeout in the latter case.
type Page interface {
	Navigate(ctx context.Context, url string) error
	Fill(ctx context.Context, sel Selector, value string) error
	Click(ctx context.Context, sel Selector) error
	WaitPresent(ctx context.Context, sel Selector, timeout time.Duration) error
	WaitClickable(ctx context.Context, sel Selector, timeout time.Duration) error
	// WaitURL waits until the current URL satisfies match.
	WaitURL(ctx context.Context, match func(url string) bool, timeout time.Duration) error
	Snapshot(ctx context.Context) (Snapshot, error)
	ClearCookies(ctx context.Context) error
}
