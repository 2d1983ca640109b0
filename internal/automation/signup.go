// internal/automation/signup.go
package automation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/xkilldash9x/formpilot/internal/config"
	"github.com/xkilldash9x/formpilot/internal/records"
	"go.uber.org/zap"
)

// SignupResult is the outcome of one signup run.
type SignupResult struct {
	Status records.Status
	// Username is the value finally submitted, after any collision suffixes.
	Username string
	Attempts int
}

// SignupFlow creates one account through the multi-step signup form:
// account fields, profile details, then the cancel button that returns to login.
type SignupFlow struct {
	auto    *Automator
	cfg     config.SignupConfig
	markers MarkerTable
	logger  *zap.Logger
}

// NewSignupFlow compiles the marker table and binds the flow to a page.
func NewSignupFlow(page Page, cfg config.SignupConfig, opts AutomatorOptions, logger *zap.Logger) (*SignupFlow, error) {
	markers, err := NewMarkerTable(cfg.Markers)
	if err != nil {
		return nil, fmt.Errorf("signup markers: %w", err)
	}
	if opts.Policy == "" {
		opts.Policy = FieldPolicy(cfg.FieldPolicy)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SignupFlow{
		auto:    NewAutomator(page, opts, logger),
		cfg:     cfg,
		markers: markers,
		logger:  logger.Named("signup"),
	}, nil
}

func (f *SignupFlow) Name() string { return "signup" }

// Process runs the signup and persists the final username when a collision
// forced a different one.
func (f *SignupFlow) Process(ctx context.Context, env Env, rec *records.Record) (records.Status, error) {
	res, err := f.Run(ctx, rec)

	if res.Username != "" && res.Username != rec.Username && res.Status != records.StatusFailed {
		before := rec.Username
		if werr := env.write(ctx, rec, records.FieldUsername, res.Username); werr != nil {
			f.logger.Warn("Failed to persist adjusted username", zap.String("username", res.Username), zap.Error(werr))
			env.log(ctx, rec, "Adjust Username", before, res.Username, "Write Error: "+werr.Error())
		} else {
			env.log(ctx, rec, "Adjust Username", before, res.Username, "Updated")
		}
	}

	result := string(res.Status)
	if err != nil {
		result = fmt.Sprintf("%s: %s", res.Status, Code(err))
	}
	env.log(ctx, rec, "Signup", string(rec.Status), string(res.Status), result)
	return res.Status, err
}

// Run drives the form for one record without touching the record store.
func (f *SignupFlow) Run(ctx context.Context, rec *records.Record) (SignupResult, error) {
	page := f.auto.Page()
	log := f.logger.With(zap.String("email", rec.Email))

	if err := page.Navigate(ctx, f.cfg.URL); err != nil {
		return SignupResult{Status: records.StatusFailed, Username: rec.Username}, fmt.Errorf("failed to open signup page: %w", err)
	}

	// Step 1 with the username collision loop.
	mutator := NewUsernameMutator(SuffixStrategy(f.cfg.SuffixStrategy), rec.Username)
	step := func(ctx context.Context, attempt int) (Outcome, error) {
		if err := page.WaitPresent(ctx, ID(f.cfg.Fields.Email), f.cfg.WaitTimeout); err != nil {
			return OutcomeNone, fmt.Errorf("account form: %w", err)
		}
		next := Target{Primary: XPath(f.cfg.Step1NextXPath), Fallback: CSS(f.cfg.Step1NextFallback)}
		if _, err := f.auto.FillAndSubmit(ctx, f.accountFields(rec.Email, mutator.Current), next); err != nil {
			return OutcomeNone, err
		}
		out, _, err := f.auto.Classify(ctx, f.markers, f.cfg.MarkerWindow)
		if err != nil {
			return OutcomeNone, err
		}
		if out == OutcomeUsernameTaken {
			log.Warn("Username taken, retrying with suffix", zap.String("username", mutator.Current), zap.Int("attempt", attempt))
		}
		if out == OutcomeNone {
			return OutcomeSuccess, nil
		}
		return out, nil
	}

	out, attempts, err := ExecuteWithRetry(ctx, step, OutcomeUsernameTaken, mutator.Mutate, f.cfg.MaxAttempts)
	res := SignupResult{Status: records.StatusFailed, Username: mutator.Current, Attempts: attempts}
	if err != nil {
		return res, err
	}

	switch out {
	case OutcomeEmailExists:
		log.Info("Email already registered on the site, treating as done")
		res.Status = records.StatusOK
		return res, nil
	case OutcomeExhausted:
		return res, &ConflictError{Kind: OutcomeUsernameTaken, Attempts: attempts, Last: mutator.Current}
	case OutcomeSuccess:
	default:
		return res, fmt.Errorf("%w: unexpected account form outcome %q", ErrUnrecoverable, out)
	}

	// Step 2: profile details.
	if err := f.details(ctx); err != nil {
		if snap, serr := page.Snapshot(ctx); serr == nil && f.markers.Only(OutcomeEmailExists).Classify(&snap) == OutcomeEmailExists {
			log.Info("Email reported as existing after details step, treating as done")
			res.Status = records.StatusOK
			return res, nil
		}
		return res, fmt.Errorf("details form: %w", err)
	}

	// Step 3: leave through cancel. Anything short of landing on login needs a human look.
	if err := f.confirm(ctx); err != nil {
		log.Warn("Could not confirm signup, flagging for manual check", zap.Error(err))
		res.Status = records.StatusManualCheck
		return res, nil
	}
	res.Status = records.StatusOK
	return res, nil
}

func (f *SignupFlow) accountFields(email, username string) []FieldValue {
	d := f.cfg.Defaults
	return []FieldValue{
		{Field: f.cfg.Fields.Email, Value: email},
		{Field: f.cfg.Fields.Username, Value: username},
		{Field: f.cfg.Fields.Password, Value: d.Password},
		{Field: f.cfg.Fields.ConfirmPassword, Value: d.Password},
		{Field: f.cfg.Fields.ReferralEmail, Value: d.ReferralEmail},
		{Field: f.cfg.Fields.InviteCode, Value: d.InviteCode},
	}
}

func (f *SignupFlow) details(ctx context.Context) error {
	page := f.auto.Page()
	if err := page.WaitPresent(ctx, ID(f.cfg.Fields.SocialNetwork), f.cfg.WaitTimeout); err != nil {
		return err
	}
	filler := f.cfg.Defaults.DetailsFiller
	err := f.auto.FillAll(ctx, []FieldValue{
		{Field: f.cfg.Fields.SocialNetwork, Value: filler},
		{Field: f.cfg.Fields.GraduateSchool, Value: filler},
		{Field: f.cfg.Fields.GraduateYear, Value: filler},
	})
	if err != nil {
		return err
	}
	return page.Click(ctx, XPath(f.cfg.Step2SubmitXPath))
}

func (f *SignupFlow) confirm(ctx context.Context) error {
	page := f.auto.Page()
	cancel := XPath(f.cfg.CancelXPath)
	if err := page.WaitClickable(ctx, cancel, f.cfg.WaitTimeout); err != nil {
		return err
	}
	if err := page.Click(ctx, cancel); err != nil {
		return err
	}
	fragment := f.cfg.LoginURLFragment
	err := page.WaitURL(ctx, func(u string) bool { return strings.Contains(u, fragment) }, f.cfg.WaitTimeout)
	if errors.Is(err, ErrTimeout) {
		return fmt.Errorf("did not reach %q: %w", fragment, err)
	}
	return err
}
