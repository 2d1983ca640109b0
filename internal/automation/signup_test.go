// internal/automation/signup_test.go
package automation

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xkilldash9x/formpilot/internal/config"
	"github.com/xkilldash9x/formpilot/internal/records"
	"go.uber.org/zap/zaptest"
)

const (
	accountFormHTML = `<form>
		<input id="email"><input id="name"><input id="password"><input id="confirm_password">
		<input name="referral_email"><input id="invitation_code">
		<button class="ant-btn ant-btn-primary">Next Step</button>
	</form>`
	detailsFormHTML = `<form>
		<input id="social_network"><input id="graduate_school"><input id="graduate_year">
		<button type="submit">Sign Up</button>
	</form>`
	confirmHTML = `<div><p>Almost there</p><button class="ant-btn cancel-button">Cancel</button></div>`
)

func signupConfig() config.SignupConfig {
	cfg := config.NewDefaultConfig().Signup
	cfg.URL = "https://site.test/annotator/sign-up"
	cfg.MarkerWindow = 20 * time.Millisecond
	cfg.WaitTimeout = 50 * time.Millisecond
	return cfg
}

var nextButton = XPath("//button[contains(., 'Next Step')]").String()

// signupSite scripts a site where the account form answers with
// step1Replies in turn (repeating the last), then moves on to details and confirm.
func signupSite(cfg config.SignupConfig, step1Replies ...string) *fakePage {
	p := newFakePage()
	p.onNavigate[cfg.URL] = func(p *fakePage) { p.html = accountFormHTML }
	calls := 0
	p.onClick[nextButton] = func(p *fakePage) error {
		reply := step1Replies[min(calls, len(step1Replies)-1)]
		calls++
		if reply == "" {
			p.html = detailsFormHTML
			return nil
		}
		p.html = accountFormHTML + `<div class="ant-message">` + reply + `</div>`
		return nil
	}
	p.onClick[XPath(cfg.Step2SubmitXPath).String()] = func(p *fakePage) error {
		p.html = confirmHTML
		return nil
	}
	p.onClick[XPath(cfg.CancelXPath).String()] = func(p *fakePage) error {
		p.url = "https://site.test/login"
		p.html = `<form class="login"></form>`
		return nil
	}
	return p
}

func newSignup(t *testing.T, page Page, cfg config.SignupConfig) *SignupFlow {
	t.Helper()
	flow, err := NewSignupFlow(page, cfg, AutomatorOptions{PollInterval: 5 * time.Millisecond}, zaptest.NewLogger(t))
	require.NoError(t, err)
	return flow
}

func TestSignupHappyPath(t *testing.T) {
	cfg := signupConfig()
	cfg.Defaults.ReferralEmail = "ref@x.com"
	page := signupSite(cfg, "")
	writer, journal := &fakeWriter{}, &fakeJournal{}
	rec := &records.Record{Email: "a@x.com", Username: "alice"}

	status, err := newSignup(t, page, cfg).Process(context.Background(), Env{Writer: writer, Journal: journal}, rec)
	require.NoError(t, err)
	assert.Equal(t, records.StatusOK, status)

	assert.Equal(t, []string{"a@x.com"}, page.filledValues("email"))
	assert.Equal(t, []string{"alice"}, page.filledValues("name"))
	assert.Equal(t, []string{"ref@x.com"}, page.filledValues("referral_email"), "name attribute fallback")
	assert.Equal(t, []string{" "}, page.filledValues("graduate_year"))
	assert.Empty(t, writer.writes, "no username adjustment without a collision")
	assert.Equal(t, []string{"Signup"}, journal.actions())
}

func TestSignupEmailExistsIsOK(t *testing.T) {
	cfg := signupConfig()
	page := signupSite(cfg, "(22026) Email already exists.")

	res, err := newSignup(t, page, cfg).Run(context.Background(), &records.Record{Email: "a@x.com", Username: "alice"})
	require.NoError(t, err)
	assert.Equal(t, records.StatusOK, res.Status)
	assert.Equal(t, 1, res.Attempts)
	assert.Empty(t, page.filledValues("social_network"), "details step must not run")
}

func TestSignupUsernameCollision(t *testing.T) {
	t.Run("retries with a suffix then succeeds", func(t *testing.T) {
		cfg := signupConfig()
		page := signupSite(cfg, "(37049) User name has been registered", "")
		writer := &fakeWriter{}
		rec := &records.Record{Email: "a@x.com", Username: "alice"}

		status, err := newSignup(t, page, cfg).Process(context.Background(), Env{Writer: writer}, rec)
		require.NoError(t, err)
		assert.Equal(t, records.StatusOK, status)
		assert.Equal(t, []string{"alice", "alice_2"}, page.filledValues("name"))
		assert.Equal(t, []string{"alice_2"}, writer.valuesFor(records.FieldUsername))
		assert.Equal(t, "alice_2", rec.Username)
	})

	t.Run("exhaustion fails the record", func(t *testing.T) {
		cfg := signupConfig()
		page := signupSite(cfg, "User name has been registered")

		res, err := newSignup(t, page, cfg).Run(context.Background(), &records.Record{Email: "a@x.com", Username: "bob"})
		var conflict *ConflictError
		require.True(t, errors.As(err, &conflict))
		assert.Equal(t, OutcomeUsernameTaken, conflict.Kind)
		assert.Equal(t, 5, conflict.Attempts)
		assert.Equal(t, records.StatusFailed, res.Status)
		assert.Equal(t, []string{"bob", "bob_2", "bob_3", "bob_4", "bob_5"}, page.filledValues("name"))
	})

	t.Run("compound strategy", func(t *testing.T) {
		cfg := signupConfig()
		cfg.SuffixStrategy = "compound"
		cfg.MaxAttempts = 3
		page := signupSite(cfg, "37049")

		_, err := newSignup(t, page, cfg).Run(context.Background(), &records.Record{Email: "a@x.com", Username: "bob"})
		require.Error(t, err)
		assert.Equal(t, []string{"bob", "bob_2", "bob_2_2"}, page.filledValues("name"))
	})
}

func TestSignupDetailsStep(t *testing.T) {
	t.Run("late email-exists marker is OK", func(t *testing.T) {
		cfg := signupConfig()
		page := signupSite(cfg, "")
		page.onClick[XPath(cfg.Step2SubmitXPath).String()] = func(p *fakePage) error {
			p.html = detailsFormHTML + `<div>Email already exists</div>`
			return errStale
		}

		res, err := newSignup(t, page, cfg).Run(context.Background(), &records.Record{Email: "a@x.com", Username: "alice"})
		require.NoError(t, err)
		assert.Equal(t, records.StatusOK, res.Status)
	})

	t.Run("other failures propagate", func(t *testing.T) {
		cfg := signupConfig()
		page := signupSite(cfg, "")
		page.onClick[XPath(cfg.Step2SubmitXPath).String()] = func(*fakePage) error { return errStale }

		res, err := newSignup(t, page, cfg).Run(context.Background(), &records.Record{Email: "a@x.com", Username: "alice"})
		assert.ErrorIs(t, err, errStale)
		assert.Equal(t, records.StatusFailed, res.Status)
	})
}

func TestSignupConfirmFallsBackToManualCheck(t *testing.T) {
	cfg := signupConfig()
	page := signupSite(cfg, "")
	page.onClick[XPath(cfg.Step2SubmitXPath).String()] = func(p *fakePage) error {
		p.html = `<div>Thanks</div>`
		return nil
	}

	res, err := newSignup(t, page, cfg).Run(context.Background(), &records.Record{Email: "a@x.com", Username: "alice"})
	require.NoError(t, err)
	assert.Equal(t, records.StatusManualCheck, res.Status)
}

func TestSignupFieldPolicy(t *testing.T) {
	cfg := signupConfig()
	cfg.Fields.InviteCode = "coupon"

	t.Run("lenient skips the unknown field", func(t *testing.T) {
		res, err := newSignup(t, signupSite(cfg, ""), cfg).Run(context.Background(), &records.Record{Email: "a@x.com", Username: "a"})
		require.NoError(t, err)
		assert.Equal(t, records.StatusOK, res.Status)
	})

	t.Run("strict fails on it", func(t *testing.T) {
		strict := cfg
		strict.FieldPolicy = "strict"
		res, err := newSignup(t, signupSite(strict, ""), strict).Run(context.Background(), &records.Record{Email: "a@x.com", Username: "a"})
		assert.ErrorIs(t, err, ErrElementNotFound)
		assert.True(t, strings.Contains(err.Error(), "coupon"))
		assert.Equal(t, records.StatusFailed, res.Status)
	})
}

func TestSignupNextButtonFallback(t *testing.T) {
	cfg := signupConfig()
	page := signupSite(cfg, "")
	// Markup without the "Next Step" label: only the css fallback matches.
	page.onNavigate[cfg.URL] = func(p *fakePage) {
		p.html = strings.Replace(accountFormHTML, "Next Step", "Continue", 1)
		p.css[cfg.Step1NextFallback] = true
	}
	page.onClick[CSS(cfg.Step1NextFallback).String()] = func(p *fakePage) error {
		p.html = detailsFormHTML
		return nil
	}

	res, err := newSignup(t, page, cfg).Run(context.Background(), &records.Record{Email: "a@x.com", Username: "alice"})
	require.NoError(t, err)
	assert.Equal(t, records.StatusOK, res.Status)
}
