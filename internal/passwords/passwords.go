// internal/passwords/passwords.go
package passwords

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"

	"github.com/xkilldash9x/formpilot/internal/records"
)

// MinLength is the shortest password the target site accepts.
const MinLength = 6

// DefaultFallbacks is used when the fallback file is missing or unreadable.
var DefaultFallbacks = []string{"123Qwe"}

var (
	ErrTooShort   = fmt.Errorf("password must be at least %d characters", MinLength)
	ErrNoLower    = errors.New("password must contain a lowercase letter")
	ErrNoUpper    = errors.New("password must contain an uppercase letter")
	ErrNoDigit    = errors.New("password must contain a digit")
	ErrEmpty      = errors.New("password is empty")
	ErrDuplicate  = errors.New("password already in the fallback list")
	ErrNotPresent = errors.New("password not in the fallback list")
)

// ValidateStrength applies the site's password rules and reports the first
// one violated.
func ValidateStrength(pw string) error {
	if len(pw) < MinLength {
		return ErrTooShort
	}
	var lower, upper, digit bool
	for _, r := range pw {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	switch {
	case !lower:
		return ErrNoLower
	case !upper:
		return ErrNoUpper
	case !digit:
		return ErrNoDigit
	}
	return nil
}

// Redundant returns the records whose stored password already equals pw.
// Rotating them would be a no-op on the site.
func Redundant(recs []records.Record, pw string) []records.Record {
	var out []records.Record
	for _, r := range recs {
		if r.Password == pw {
			out = append(out, r)
		}
	}
	return out
}

type fileFormat struct {
	Passwords []string `yaml:"passwords"`
}

// Fallbacks is the ordered list of passwords tried after a row's stored one.
type Fallbacks struct {
	path string
	list []string
}

// Load reads the fallback file. The returned list is never nil: a missing
// file yields the defaults silently, an unusable path or corrupt file yields
// the defaults together with the error.
func Load(path string) (*Fallbacks, error) {
	f := &Fallbacks{path: path, list: append([]string(nil), DefaultFallbacks...)}
	expanded, err := homedir.Expand(path)
	if err != nil {
		return f, fmt.Errorf("failed to expand fallback file path: %w", err)
	}
	f.path = expanded

	data, err := os.ReadFile(expanded)
	if errors.Is(err, os.ErrNotExist) {
		return f, nil
	}
	if err != nil {
		return f, fmt.Errorf("read %s: %w", expanded, err)
	}

	var ff fileFormat
	if err := yaml.Unmarshal(data, &ff); err != nil {
		return f, fmt.Errorf("parse %s: %w", expanded, err)
	}
	f.list = clean(ff.Passwords)
	return f, nil
}

func clean(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, p := range in {
		p = strings.TrimSpace(p)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

// List returns a copy of the fallbacks in order.
func (f *Fallbacks) List() []string {
	return append([]string(nil), f.list...)
}

func (f *Fallbacks) Path() string { return f.path }

// Add appends pw and persists the list.
func (f *Fallbacks) Add(pw string) error {
	pw = strings.TrimSpace(pw)
	if pw == "" {
		return ErrEmpty
	}
	for _, p := range f.list {
		if p == pw {
			return ErrDuplicate
		}
	}
	f.list = append(f.list, pw)
	return f.Save()
}

// Remove drops pw and persists the list.
func (f *Fallbacks) Remove(pw string) error {
	for i, p := range f.list {
		if p == pw {
			f.list = append(f.list[:i], f.list[i+1:]...)
			return f.Save()
		}
	}
	return ErrNotPresent
}

// Save writes the list atomically.
func (f *Fallbacks) Save() error {
	data, err := yaml.Marshal(fileFormat{Passwords: f.list})
	if err != nil {
		return fmt.Errorf("failed to encode fallback list: %w", err)
	}
	if dir := filepath.Dir(f.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", f.path, err)
	}
	return nil
}
