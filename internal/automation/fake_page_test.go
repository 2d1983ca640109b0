// internal/automation/fake_page_test.go
package automation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/xkilldash9x/formpilot/internal/ledger"
	"github.com/xkilldash9x/formpilot/internal/records"
)

type fill struct {
	Sel   Selector
	Value string
}

// fakePage is a scripted Page. Its state is a URL and an HTML document;
// element presence is evaluated against the document, and clicks or
// navigations trigger registered reactions that rewrite it.
type fakePage struct {
	mu             sync.Mutex
	url            string
	html           string
	css            map[string]bool
	fills          []fill
	clicks         []Selector
	navigations    []string
	snapshots      int
	cookiesCleared int
	onClick        map[string]func(p *fakePage) error
	onNavigate     map[string]func(p *fakePage)
	snapshotErr    error
}

func newFakePage() *fakePage {
	return &fakePage{
		css:        map[string]bool{},
		onClick:    map[string]func(p *fakePage) error{},
		onNavigate: map[string]func(p *fakePage){},
	}
}

func (p *fakePage) exists(sel Selector) bool {
	var xp string
	switch sel.By {
	case ByID:
		xp = fmt.Sprintf("//*[@id=%s]", xpathLiteral(sel.Query))
	case ByName:
		xp = fmt.Sprintf("//*[@name=%s]", xpathLiteral(sel.Query))
	case ByXPath:
		xp = sel.Query
	case ByCSS:
		return p.css[sel.Query]
	}
	snap := Snapshot{HTML: p.html}
	ok, err := snap.Exists(xp)
	return err == nil && ok
}

func (p *fakePage) Navigate(_ context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.navigations = append(p.navigations, url)
	p.url = url
	if react, ok := p.onNavigate[url]; ok {
		react(p)
	}
	return nil
}

func (p *fakePage) Fill(_ context.Context, sel Selector, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.exists(sel) {
		return fmt.Errorf("%w: %s", ErrElementNotFound, sel)
	}
	p.fills = append(p.fills, fill{Sel: sel, Value: value})
	return nil
}

func (p *fakePage) Click(_ context.Context, sel Selector) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.exists(sel) {
		return fmt.Errorf("%w: %s", ErrElementNotFound, sel)
	}
	p.clicks = append(p.clicks, sel)
	if react, ok := p.onClick[sel.String()]; ok {
		return react(p)
	}
	return nil
}

func (p *fakePage) WaitPresent(_ context.Context, sel Selector, _ time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.exists(sel) {
		return fmt.Errorf("%w: %s", ErrTimeout, sel)
	}
	return nil
}

func (p *fakePage) WaitClickable(ctx context.Context, sel Selector, timeout time.Duration) error {
	return p.WaitPresent(ctx, sel, timeout)
}

func (p *fakePage) WaitURL(_ context.Context, match func(string) bool, _ time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !match(p.url) {
		return fmt.Errorf("%w: url %s", ErrTimeout, p.url)
	}
	return nil
}

func (p *fakePage) Snapshot(context.Context) (Snapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snapshots++
	if p.snapshotErr != nil {
		return Snapshot{}, p.snapshotErr
	}
	return Snapshot{URL: p.url, HTML: p.html}, nil
}

func (p *fakePage) ClearCookies(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cookiesCleared++
	return nil
}

// filledValues lists the values typed into one field, by id or name.
func (p *fakePage) filledValues(field string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, f := range p.fills {
		if f.Sel.Query == field {
			out = append(out, f.Value)
		}
	}
	return out
}

func (p *fakePage) lastFill(field string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := len(p.fills) - 1; i >= 0; i-- {
		if p.fills[i].Sel.Query == field {
			return p.fills[i].Value
		}
	}
	return ""
}

func (p *fakePage) navigatedTo(url string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, n := range p.navigations {
		if n == url {
			return true
		}
	}
	return false
}

type fieldWrite struct {
	Field records.Field
	Value string
}

// fakeWriter records WriteField calls and applies them to the record.
type fakeWriter struct {
	writes []fieldWrite
	err    error
}

func (w *fakeWriter) WriteField(_ context.Context, rec *records.Record, field records.Field, value string) error {
	if w.err != nil {
		return w.err
	}
	w.writes = append(w.writes, fieldWrite{Field: field, Value: value})
	return rec.Set(field, value)
}

func (w *fakeWriter) valuesFor(field records.Field) []string {
	var out []string
	for _, wr := range w.writes {
		if wr.Field == field {
			out = append(out, wr.Value)
		}
	}
	return out
}

type fakeJournal struct {
	entries []ledger.Entry
}

func (j *fakeJournal) Log(_ context.Context, e ledger.Entry) { j.entries = append(j.entries, e) }

func (j *fakeJournal) actions() []string {
	out := make([]string, len(j.entries))
	for i, e := range j.entries {
		out[i] = e.Action
	}
	return out
}

func (j *fakeJournal) find(action string) (ledger.Entry, bool) {
	for _, e := range j.entries {
		if e.Action == action {
			return e, true
		}
	}
	return ledger.Entry{}, false
}

var errStale = errors.New("stale element reference")
