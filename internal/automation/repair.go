// internal/automation/repair.go
package automation

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/xkilldash9x/formpilot/internal/config"
	"github.com/xkilldash9x/formpilot/internal/records"
	"go.uber.org/zap"
)

// RepairOptions selects the optional sub-steps of a repair run.
type RepairOptions struct {
	FixUsername    bool
	ChangePassword bool
	NewPassword    string
	// Fallbacks are tried, in order, after the stored password.
	Fallbacks []string
}

// RepairFlow logs into an existing account and reconciles it with its row:
// login with fallback passwords, training gate, username check, password rotation.
type RepairFlow struct {
	auto      *Automator
	cfg       config.RepairConfig
	opts      RepairOptions
	toasts    MarkerTable
	loginPath string
	logger    *zap.Logger
}

// NewRepairFlow binds the flow to a page.
func NewRepairFlow(page Page, cfg config.RepairConfig, opts RepairOptions, automatorOpts AutomatorOptions, logger *zap.Logger) (*RepairFlow, error) {
	toasts, err := NewMarkerTable(cfg.ToastMarkers)
	if err != nil {
		return nil, fmt.Errorf("toast markers: %w", err)
	}
	if opts.ChangePassword && opts.NewPassword == "" {
		return nil, errors.New("password change requested without a new password")
	}
	u, err := url.Parse(cfg.LoginURL)
	if err != nil {
		return nil, fmt.Errorf("invalid login url: %w", err)
	}
	loginPath := u.Path
	if loginPath == "" || loginPath == "/" {
		loginPath = "/login"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	// Login and modal fields are addressed by id only; a missing one is a fault.
	automatorOpts.Policy = PolicyStrict
	return &RepairFlow{
		auto:      NewAutomator(page, automatorOpts, logger),
		cfg:       cfg,
		opts:      opts,
		toasts:    toasts,
		loginPath: loginPath,
		logger:    logger.Named("repair"),
	}, nil
}

func (f *RepairFlow) Name() string { return "repair" }

// Process runs Login, CheckTrainingGate, ChangeUsernameIfNeeded and
// ChangePasswordIfEligible for one record. Logout always runs; cookies are
// cleared when the record ends in a fault.
func (f *RepairFlow) Process(ctx context.Context, env Env, rec *records.Record) (status records.Status, err error) {
	log := f.logger.With(zap.String("email", rec.Email))
	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), f.cfg.WaitTimeout)
		defer cancel()
		f.logout(cleanupCtx, log)
		if err != nil {
			env.log(ctx, rec, "CRITICAL ERROR", "-", "-", string(Code(err)))
			if cerr := f.auto.Page().ClearCookies(cleanupCtx); cerr != nil {
				log.Warn("Failed to clear cookies", zap.Error(cerr))
			}
		}
	}()

	active, err := f.login(ctx, env, rec)
	if err != nil {
		return records.StatusFailed, err
	}

	if rec.Status == records.StatusUnprocessed {
		if werr := env.write(ctx, rec, records.FieldStatus, string(records.StatusOK)); werr != nil {
			log.Warn("Failed to mark status OK", zap.Error(werr))
			env.log(ctx, rec, "Status Update", "Blank", "Error", werr.Error())
		} else {
			env.log(ctx, rec, "Status Update", "Blank", string(records.StatusOK), "Saved")
		}
	}

	if f.opts.ChangePassword {
		passed, err := f.trainingGate(ctx, env, rec)
		if err != nil {
			return records.StatusFailed, err
		}
		if !passed {
			return rec.Status, nil
		}
	}

	if f.opts.FixUsername {
		if err := f.checkUsername(ctx, env, rec); err != nil {
			log.Warn("Username check failed", zap.Error(err))
			env.log(ctx, rec, "Username Check", "-", "-", "Error: "+string(Code(err)))
		}
	}

	if f.opts.ChangePassword {
		switch err := f.changePassword(ctx, env, rec, active); {
		case err == nil:
		case errors.Is(err, ErrValidationRejected), errors.Is(err, ErrTimeout):
			log.Warn("Password change did not complete", zap.Error(err))
		default:
			return records.StatusFailed, err
		}
	}
	return rec.Status, nil
}

// login tries each credential candidate until the browser leaves the login
// page, and returns the password that worked.
func (f *RepairFlow) login(ctx context.Context, env Env, rec *records.Record) (string, error) {
	page := f.auto.Page()
	sel := f.cfg.Selectors
	candidates := CredentialCandidates(rec.Password, f.opts.Fallbacks)
	if len(candidates) == 0 {
		env.log(ctx, rec, "Login Failed", "No Candidates", "-", "Skipped Row")
		return "", fmt.Errorf("%w: no password on record and no fallbacks", ErrAuthExhausted)
	}

	if err := page.Navigate(ctx, f.cfg.LoginURL); err != nil {
		return "", fmt.Errorf("failed to open login page: %w", err)
	}
	if err := page.WaitPresent(ctx, ID(sel.EmailInput), f.cfg.WaitTimeout); err != nil {
		return "", fmt.Errorf("login form: %w", err)
	}

	var active string
	leftLogin := func(u string) bool { return !strings.Contains(u, f.loginPath) }
	step := func(ctx context.Context, attempt int) (Outcome, error) {
		password := candidates[attempt-1]
		err := f.auto.FillAll(ctx, []FieldValue{
			{Field: sel.EmailInput, Value: rec.Email},
			{Field: sel.PasswordInput, Value: password},
		})
		if err != nil {
			return OutcomeNone, err
		}
		button := XPath(sel.LoginButton)
		if err := page.WaitClickable(ctx, button, f.cfg.WaitTimeout); err != nil {
			return OutcomeNone, err
		}
		if err := page.Click(ctx, button); err != nil {
			return OutcomeNone, err
		}
		err = page.WaitURL(ctx, leftLogin, f.cfg.LoginWindow)
		if errors.Is(err, ErrTimeout) {
			return OutcomeCredentialRejected, nil
		}
		if err != nil {
			return OutcomeNone, err
		}
		active = password
		return OutcomeSuccess, nil
	}

	out, attempts, err := ExecuteWithRetry(ctx, step, OutcomeCredentialRejected, nil, len(candidates))
	if err != nil {
		return "", err
	}
	if out != OutcomeSuccess {
		env.log(ctx, rec, "Login Failed", "All Fallbacks", "-", "Skipped Row")
		return "", fmt.Errorf("%w: %d candidates tried", ErrAuthExhausted, attempts)
	}

	if active != rec.Password {
		before := rec.Password
		if err := env.write(ctx, rec, records.FieldPassword, active); err != nil {
			f.logger.Warn("Failed to persist working password", zap.String("email", rec.Email), zap.Error(err))
			env.log(ctx, rec, "Fix Password", before, active, "Write Error")
		} else {
			env.log(ctx, rec, "Fix Password", before, active, "Updated")
		}
	}
	return active, nil
}

// trainingGate reports whether the configured training shows "passed". A
// missing row is a closed gate, not a fault.
func (f *RepairFlow) trainingGate(ctx context.Context, env Env, rec *records.Record) (bool, error) {
	page := f.auto.Page()
	name := f.cfg.TrainingName
	row := fmt.Sprintf("//tr[.//td[contains(., %s)]]", xpathLiteral(name))

	if err := page.Navigate(ctx, f.cfg.TrainingURL); err != nil {
		return false, fmt.Errorf("failed to open training page: %w", err)
	}
	err := page.WaitPresent(ctx, XPath(row), f.cfg.WaitTimeout)
	if errors.Is(err, ErrTimeout) {
		env.log(ctx, rec, "Check Training", name, "Not Found", "Timeout/Missing")
		return false, nil
	}
	if err != nil {
		return false, err
	}

	snap, err := page.Snapshot(ctx)
	if err != nil {
		return false, err
	}
	badge, err := snap.Text(Within(row, f.cfg.Selectors.TrainingBadge))
	if err != nil && !errors.Is(err, ErrElementNotFound) {
		return false, err
	}
	if !strings.EqualFold(strings.TrimSpace(badge), "passed") {
		f.logger.Info("Training gate not passed", zap.String("email", rec.Email), zap.String("badge", badge))
		env.log(ctx, rec, "Check Training", name, badge, "Skipped (Not Passed)")
		return false, nil
	}
	env.log(ctx, rec, "Check Training", name, badge, "Passed")
	return true, nil
}

// checkUsername treats the site's displayed username as the truth and copies
// it into the record when they differ.
func (f *RepairFlow) checkUsername(ctx context.Context, env Env, rec *records.Record) error {
	page := f.auto.Page()
	sel := f.cfg.Selectors

	avatar := ID(sel.AvatarButton)
	if err := page.WaitClickable(ctx, avatar, f.cfg.WaitTimeout); err != nil {
		return err
	}
	if err := page.Click(ctx, avatar); err != nil {
		return err
	}
	if err := page.WaitPresent(ctx, XPath(sel.UsernameDisplay), f.cfg.WaitTimeout); err != nil {
		return err
	}
	snap, err := page.Snapshot(ctx)
	if err != nil {
		return err
	}
	site, err := snap.Text(sel.UsernameDisplay)
	if err != nil {
		return err
	}

	if site == rec.Username {
		env.log(ctx, rec, "Check Username", rec.Username, site, "Match (No Change)")
		return nil
	}
	before := rec.Username
	if err := env.write(ctx, rec, records.FieldUsername, site); err != nil {
		return fmt.Errorf("failed to persist site username: %w", err)
	}
	env.log(ctx, rec, "Fix Username", before, site, "Updated")
	return nil
}

// changePassword rotates the password through the profile modal. It returns
// ErrValidationRejected when the form refuses the new value and ErrTimeout
// when no toast appears; both leave the rest of the record untouched.
func (f *RepairFlow) changePassword(ctx context.Context, env Env, rec *records.Record, active string) error {
	newPassword := f.opts.NewPassword
	if active == newPassword {
		env.log(ctx, rec, "Change Password", active, newPassword, "Skipped: Same as Current")
		return nil
	}

	page := f.auto.Page()
	sel := f.cfg.Selectors
	if err := page.Navigate(ctx, f.cfg.ProfileURL); err != nil {
		return fmt.Errorf("failed to open profile page: %w", err)
	}
	edit := XPath(sel.EditPassword)
	if err := page.WaitClickable(ctx, edit, f.cfg.WaitTimeout); err != nil {
		return err
	}
	if err := page.Click(ctx, edit); err != nil {
		return err
	}
	if err := page.WaitPresent(ctx, ID(sel.InputCurrent), f.cfg.WaitTimeout); err != nil {
		return err
	}
	err := f.auto.FillAll(ctx, []FieldValue{
		{Field: sel.InputCurrent, Value: active},
		{Field: sel.InputNew, Value: newPassword},
		{Field: sel.InputConfirm, Value: newPassword},
	})
	if err != nil {
		return err
	}

	if err := sleep(ctx, f.cfg.InlineCheckDelay); err != nil {
		return err
	}
	snap, err := page.Snapshot(ctx)
	if err != nil {
		return err
	}
	if msg, err := snap.Text(sel.InlineError); err == nil {
		env.log(ctx, rec, "Change Password", active, newPassword, "Format Error: "+msg)
		if cerr := page.Click(ctx, XPath(sel.ModalCancel)); cerr != nil {
			f.logger.Warn("Failed to dismiss password modal", zap.Error(cerr))
		}
		return fmt.Errorf("%w: %s", ErrValidationRejected, msg)
	}

	if err := page.Click(ctx, XPath(sel.ModalSubmit)); err != nil {
		return err
	}
	out, err := f.auto.Expect(ctx, f.toasts, f.cfg.ToastWindow)
	if errors.Is(err, ErrTimeout) {
		env.log(ctx, rec, "Change Password", "-", "-", "Validation Timeout")
		return err
	}
	if err != nil {
		return err
	}

	switch out {
	case OutcomePasswordUpdated:
		if err := env.write(ctx, rec, records.FieldPassword, newPassword); err != nil {
			// The site already has the new value; the next run heals the row through the fallbacks.
			f.logger.Error("Password changed on site but not persisted", zap.String("email", rec.Email), zap.Error(err))
			env.log(ctx, rec, "Change Password", active, newPassword, "Changed, Write Error")
			return nil
		}
		env.log(ctx, rec, "Change Password", active, newPassword, "Success")
	case OutcomeInvalidPassword:
		env.log(ctx, rec, "Change Password", active, newPassword, "Wrong Current Pass")
	default:
		env.log(ctx, rec, "Change Password", "-", "-", "Unknown Outcome: "+string(out))
	}
	return nil
}

func (f *RepairFlow) logout(ctx context.Context, log *zap.Logger) {
	if err := f.auto.Page().Navigate(ctx, f.cfg.LogoutURL); err != nil {
		log.Warn("Logout navigation failed", zap.Error(err))
		return
	}
	_ = sleep(ctx, f.cfg.LogoutDelay)
}

// xpathLiteral quotes s for use inside an XPath 1.0 expression.
func xpathLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	return "concat('" + strings.Join(parts, `', "'", '`) + "')"
}
