// File: internal/config/config.go
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
// Selectors and marker tables live here so that a markup change on the target
// site is a configuration update rather than a code change.
type Config struct {
	Logger  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	Browser BrowserConfig `mapstructure:"browser" yaml:"browser"`
	Source  SourceConfig  `mapstructure:"source" yaml:"source"`
	Signup  SignupConfig  `mapstructure:"signup" yaml:"signup"`
	Repair  RepairConfig  `mapstructure:"repair" yaml:"repair"`
	Ledger  LedgerConfig  `mapstructure:"ledger" yaml:"ledger"`
	Report  ReportConfig  `mapstructure:"report" yaml:"report"`
	// Run gets its marching orders from CLI flags, not the config file.
	Run RunConfig `mapstructure:"-" yaml:"-"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color names for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// BrowserConfig holds settings for the Chrome instance owned by a run.
type BrowserConfig struct {
	Headless       bool          `mapstructure:"headless" yaml:"headless"`
	ExecPath       string        `mapstructure:"exec_path" yaml:"exec_path"`
	StartMaximized bool          `mapstructure:"start_maximized" yaml:"start_maximized"`
	Args           []string      `mapstructure:"args" yaml:"args"`
	LaunchTimeout  time.Duration `mapstructure:"launch_timeout" yaml:"launch_timeout"`
	// ActionTimeout bounds a single click or fill.
	ActionTimeout     time.Duration `mapstructure:"action_timeout" yaml:"action_timeout"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	PollInterval      time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
}

// SourceConfig selects and tunes the record store.
type SourceConfig struct {
	Kind            string `mapstructure:"kind" yaml:"kind"` // sheets | csv
	SheetURL        string `mapstructure:"sheet_url" yaml:"sheet_url"`
	CredentialsFile string `mapstructure:"credentials_file" yaml:"credentials_file"`
	CSVPath         string `mapstructure:"csv_path" yaml:"csv_path"`
	// WritesPerSecond throttles remote cell writes; the Sheets API quota is per minute.
	WritesPerSecond float64       `mapstructure:"writes_per_second" yaml:"writes_per_second"`
	WriteBurst      int           `mapstructure:"write_burst" yaml:"write_burst"`
	WriteMaxElapsed time.Duration `mapstructure:"write_max_elapsed" yaml:"write_max_elapsed"`
}

// ColumnRule locates one logical column. Names are tried as exact matches in
// order, then Keyword as a case-insensitive substring. Index (1-based) pins the
// column to a fixed position and wins over both.
type ColumnRule struct {
	Names   []string `mapstructure:"names" yaml:"names"`
	Keyword string   `mapstructure:"keyword" yaml:"keyword"`
	Index   int      `mapstructure:"index" yaml:"index"`
}

// ColumnsConfig maps the logical record fields onto sheet headers.
type ColumnsConfig struct {
	Email    ColumnRule `mapstructure:"email" yaml:"email"`
	Username ColumnRule `mapstructure:"username" yaml:"username"`
	Password ColumnRule `mapstructure:"password" yaml:"password"`
	FullName ColumnRule `mapstructure:"full_name" yaml:"full_name"`
	Status   ColumnRule `mapstructure:"status" yaml:"status"`
}

// MarkerConfig is one row of a marker table: a text pattern whose presence on
// the rendered page signals Outcome. Regex switches Pattern to a regular expression.
type MarkerConfig struct {
	Pattern string `mapstructure:"pattern" yaml:"pattern"`
	Outcome string `mapstructure:"outcome" yaml:"outcome"`
	Regex   bool   `mapstructure:"regex" yaml:"regex"`
}

// SignupDefaults are the strict values typed into every signup form.
type SignupDefaults struct {
	Password      string `mapstructure:"password" yaml:"password"`
	ReferralEmail string `mapstructure:"referral_email" yaml:"referral_email"`
	InviteCode    string `mapstructure:"invite_code" yaml:"invite_code"`
	DetailsFiller string `mapstructure:"details_filler" yaml:"details_filler"`
}

// SignupFields are the element ids (or names) of the signup form.
type SignupFields struct {
	Email           string `mapstructure:"email" yaml:"email"`
	Username        string `mapstructure:"username" yaml:"username"`
	Password        string `mapstructure:"password" yaml:"password"`
	ConfirmPassword string `mapstructure:"confirm_password" yaml:"confirm_password"`
	ReferralEmail   string `mapstructure:"referral_email" yaml:"referral_email"`
	InviteCode      string `mapstructure:"invite_code" yaml:"invite_code"`
	SocialNetwork   string `mapstructure:"social_network" yaml:"social_network"`
	GraduateSchool  string `mapstructure:"graduate_school" yaml:"graduate_school"`
	GraduateYear    string `mapstructure:"graduate_year" yaml:"graduate_year"`
}

// SignupConfig configures the signup flow.
type SignupConfig struct {
	URL               string         `mapstructure:"url" yaml:"url"`
	Defaults          SignupDefaults `mapstructure:"defaults" yaml:"defaults"`
	Fields            SignupFields   `mapstructure:"fields" yaml:"fields"`
	Step1NextXPath    string         `mapstructure:"step1_next_xpath" yaml:"step1_next_xpath"`
	Step1NextFallback string         `mapstructure:"step1_next_fallback_css" yaml:"step1_next_fallback_css"`
	Step2SubmitXPath  string         `mapstructure:"step2_submit_xpath" yaml:"step2_submit_xpath"`
	CancelXPath       string         `mapstructure:"cancel_xpath" yaml:"cancel_xpath"`
	LoginURLFragment  string         `mapstructure:"login_url_fragment" yaml:"login_url_fragment"`
	Markers           []MarkerConfig `mapstructure:"markers" yaml:"markers"`
	MaxAttempts       int            `mapstructure:"max_attempts" yaml:"max_attempts"`
	SuffixStrategy    string         `mapstructure:"suffix_strategy" yaml:"suffix_strategy"`
	FieldPolicy       string         `mapstructure:"field_policy" yaml:"field_policy"`
	WaitTimeout       time.Duration  `mapstructure:"wait_timeout" yaml:"wait_timeout"`
	MarkerWindow      time.Duration  `mapstructure:"marker_window" yaml:"marker_window"`
	Columns           ColumnsConfig  `mapstructure:"columns" yaml:"columns"`
}

// RepairSelectors are the ids and xpaths used by the admin repair flow.
type RepairSelectors struct {
	EmailInput      string `mapstructure:"email_input" yaml:"email_input"`
	PasswordInput   string `mapstructure:"password_input" yaml:"password_input"`
	LoginButton     string `mapstructure:"login_button" yaml:"login_button"`
	AvatarButton    string `mapstructure:"avatar_button" yaml:"avatar_button"`
	UsernameDisplay string `mapstructure:"username_display" yaml:"username_display"`
	TrainingBadge   string `mapstructure:"training_badge" yaml:"training_badge"`
	EditPassword    string `mapstructure:"edit_password" yaml:"edit_password"`
	InputCurrent    string `mapstructure:"input_current" yaml:"input_current"`
	InputNew        string `mapstructure:"input_new" yaml:"input_new"`
	InputConfirm    string `mapstructure:"input_confirm" yaml:"input_confirm"`
	ModalSubmit     string `mapstructure:"modal_submit" yaml:"modal_submit"`
	ModalCancel     string `mapstructure:"modal_cancel" yaml:"modal_cancel"`
	InlineError     string `mapstructure:"inline_error" yaml:"inline_error"`
}

// RepairConfig configures the admin repair flow.
type RepairConfig struct {
	LoginURL         string          `mapstructure:"login_url" yaml:"login_url"`
	TrainingURL      string          `mapstructure:"training_url" yaml:"training_url"`
	ProfileURL       string          `mapstructure:"profile_url" yaml:"profile_url"`
	LogoutURL        string          `mapstructure:"logout_url" yaml:"logout_url"`
	TrainingName     string          `mapstructure:"training_name" yaml:"training_name"`
	Selectors        RepairSelectors `mapstructure:"selectors" yaml:"selectors"`
	ToastMarkers     []MarkerConfig  `mapstructure:"toast_markers" yaml:"toast_markers"`
	FallbackFile     string          `mapstructure:"fallback_file" yaml:"fallback_file"`
	WaitTimeout      time.Duration   `mapstructure:"wait_timeout" yaml:"wait_timeout"`
	LoginWindow      time.Duration   `mapstructure:"login_window" yaml:"login_window"`
	ToastWindow      time.Duration   `mapstructure:"toast_window" yaml:"toast_window"`
	InlineCheckDelay time.Duration   `mapstructure:"inline_check_delay" yaml:"inline_check_delay"`
	LogoutDelay      time.Duration   `mapstructure:"logout_delay" yaml:"logout_delay"`
	Columns          ColumnsConfig   `mapstructure:"columns" yaml:"columns"`
}

// LedgerConfig selects where the per-record action log is persisted.
type LedgerConfig struct {
	Driver string `mapstructure:"driver" yaml:"driver"` // none | postgres | sqlite
	URL    string `mapstructure:"url" yaml:"url"`
	Path   string `mapstructure:"path" yaml:"path"`
}

// ReportConfig controls the end-of-run report.
type ReportConfig struct {
	Format string `mapstructure:"format" yaml:"format"`
	Output string `mapstructure:"output" yaml:"output"`
}

// RunConfig holds settings populated from CLI flags for a single run.
type RunConfig struct {
	StartRow       int
	Limit          int
	EndRow         int
	StatusFilter   []string
	PasswordFilter []string
	FixUsername    bool
	ChangePassword bool
	NewPassword    string
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for every configuration parameter.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "formpilot")
	v.SetDefault("logger.log_file", "formpilot.log")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")

	// -- Browser --
	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.start_maximized", true)
	v.SetDefault("browser.launch_timeout", "30s")
	v.SetDefault("browser.action_timeout", "15s")
	v.SetDefault("browser.navigation_timeout", "45s")
	v.SetDefault("browser.poll_interval", "250ms")

	// -- Source --
	v.SetDefault("source.kind", "sheets")
	v.SetDefault("source.writes_per_second", 0.9)
	v.SetDefault("source.write_burst", 1)
	v.SetDefault("source.write_max_elapsed", "45s")

	// -- Signup --
	v.SetDefault("signup.url", "https://ginger.bitmappro.com/annotator/sign-up")
	v.SetDefault("signup.defaults.password", "123456")
	v.SetDefault("signup.defaults.referral_email", "")
	v.SetDefault("signup.defaults.invite_code", "")
	v.SetDefault("signup.defaults.details_filler", " ")
	v.SetDefault("signup.fields.email", "email")
	v.SetDefault("signup.fields.username", "name")
	v.SetDefault("signup.fields.password", "password")
	v.SetDefault("signup.fields.confirm_password", "confirm_password")
	v.SetDefault("signup.fields.referral_email", "referral_email")
	v.SetDefault("signup.fields.invite_code", "invitation_code")
	v.SetDefault("signup.fields.social_network", "social_network")
	v.SetDefault("signup.fields.graduate_school", "graduate_school")
	v.SetDefault("signup.fields.graduate_year", "graduate_year")
	v.SetDefault("signup.step1_next_xpath", "//button[contains(., 'Next Step')]")
	v.SetDefault("signup.step1_next_fallback_css", "button.ant-btn-primary")
	v.SetDefault("signup.step2_submit_xpath", "//button[@type='submit']")
	v.SetDefault("signup.cancel_xpath", "//button[contains(@class, 'cancel-button')]")
	v.SetDefault("signup.login_url_fragment", "login")
	v.SetDefault("signup.markers", []map[string]interface{}{
		{"pattern": "22026", "outcome": "email_exists"},
		{"pattern": "email already exists", "outcome": "email_exists"},
		{"pattern": "37049", "outcome": "username_taken"},
		{"pattern": "user name has been registered", "outcome": "username_taken"},
	})
	v.SetDefault("signup.max_attempts", 5)
	v.SetDefault("signup.suffix_strategy", "increment")
	v.SetDefault("signup.field_policy", "lenient")
	v.SetDefault("signup.wait_timeout", "30s")
	v.SetDefault("signup.marker_window", "1500ms")
	v.SetDefault("signup.columns.email.names", []string{"user email", "Email:", "Email Address", "email", "Email"})
	v.SetDefault("signup.columns.email.keyword", "email")
	v.SetDefault("signup.columns.username.keyword", "username")
	v.SetDefault("signup.columns.full_name.keyword", "full name")
	v.SetDefault("signup.columns.status.names", []string{"Status:"})

	// -- Repair --
	v.SetDefault("repair.login_url", "https://ginger.bitmappro.com/login")
	v.SetDefault("repair.training_url", "https://ginger.bitmappro.com/annotation/training")
	v.SetDefault("repair.profile_url", "https://ginger.bitmappro.com/account/profile")
	v.SetDefault("repair.logout_url", "https://ginger.bitmappro.com/logout")
	v.SetDefault("repair.training_name", "Standard Building")
	v.SetDefault("repair.selectors.email_input", "email")
	v.SetDefault("repair.selectors.password_input", "password")
	v.SetDefault("repair.selectors.login_button", "//button[contains(@class, 'login-btn')]")
	v.SetDefault("repair.selectors.avatar_button", "avatar_in_header")
	v.SetDefault("repair.selectors.username_display", "//span[contains(@class, 'user-title')]")
	v.SetDefault("repair.selectors.training_badge", ".//td[4]//span[contains(@class, 'ant-badge-status-text')]")
	v.SetDefault("repair.selectors.edit_password", "//label[contains(text(), 'Password')]/following-sibling::div//span[contains(@class, 'anticon-form')]")
	v.SetDefault("repair.selectors.input_current", "change-password_current_password")
	v.SetDefault("repair.selectors.input_new", "change-password_password")
	v.SetDefault("repair.selectors.input_confirm", "change-password_confirm_new_password")
	v.SetDefault("repair.selectors.modal_submit", "//div[contains(@class, 'modal-footer')]//button[contains(., 'Submit')]")
	v.SetDefault("repair.selectors.modal_cancel", "//div[contains(@class, 'modal-footer')]//button[contains(., 'Cancel')]")
	v.SetDefault("repair.selectors.inline_error", "//div[contains(@class, 'ant-form-item-explain-error')]")
	v.SetDefault("repair.toast_markers", []map[string]interface{}{
		{"pattern": "Password updated", "outcome": "password_updated"},
		{"pattern": "Invalid password", "outcome": "invalid_password"},
	})
	v.SetDefault("repair.fallback_file", "fallback_passwords.yaml")
	v.SetDefault("repair.wait_timeout", "15s")
	v.SetDefault("repair.login_window", "4s")
	v.SetDefault("repair.toast_window", "5s")
	v.SetDefault("repair.inline_check_delay", "1s")
	v.SetDefault("repair.logout_delay", "1500ms")
	v.SetDefault("repair.columns.email.names", []string{"bitmappro Email login:"})
	v.SetDefault("repair.columns.email.keyword", "email")
	v.SetDefault("repair.columns.password.names", []string{"bitmappro Password: (Default is 123456)"})
	v.SetDefault("repair.columns.password.keyword", "password")
	v.SetDefault("repair.columns.full_name.names", []string{"Full Name(First and Last Name ONLY!):"})
	v.SetDefault("repair.columns.username.keyword", "enter your SITE USERNAME")
	v.SetDefault("repair.columns.status.names", []string{"Status:"})

	// -- Ledger --
	v.SetDefault("ledger.driver", "none")
	v.SetDefault("ledger.path", "formpilot.db")

	// -- Report --
	v.SetDefault("report.format", "csv")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Secrets are only ever read from the environment.
	_ = v.BindEnv("ledger.url", "FORMPILOT_LEDGER_URL")
	_ = v.BindEnv("source.credentials_file", "FORMPILOT_CREDENTIALS_FILE")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	switch c.Source.Kind {
	case "sheets", "csv":
	default:
		return fmt.Errorf("source.kind must be 'sheets' or 'csv', got %q", c.Source.Kind)
	}
	if c.Browser.ActionTimeout <= 0 || c.Browser.NavigationTimeout <= 0 {
		return fmt.Errorf("browser.action_timeout and browser.navigation_timeout must be positive durations")
	}
	if c.Browser.PollInterval <= 0 {
		return fmt.Errorf("browser.poll_interval must be a positive duration")
	}
	if c.Source.WritesPerSecond <= 0 {
		return fmt.Errorf("source.writes_per_second must be positive")
	}
	if err := c.Signup.Validate(); err != nil {
		return fmt.Errorf("signup configuration invalid: %w", err)
	}
	if err := c.Repair.Validate(); err != nil {
		return fmt.Errorf("repair configuration invalid: %w", err)
	}
	switch c.Ledger.Driver {
	case "", "none", "sqlite":
	case "postgres":
		if c.Ledger.URL == "" {
			return fmt.Errorf("ledger.url is required for the postgres driver (FORMPILOT_LEDGER_URL)")
		}
	default:
		return fmt.Errorf("unsupported ledger.driver %q", c.Ledger.Driver)
	}
	return nil
}

// Validate checks the signup settings.
func (s *SignupConfig) Validate() error {
	if err := validateURL("url", s.URL); err != nil {
		return err
	}
	if s.MaxAttempts <= 0 {
		return fmt.Errorf("max_attempts must be greater than 0")
	}
	if s.WaitTimeout <= 0 {
		return fmt.Errorf("wait_timeout must be a positive duration")
	}
	if s.MarkerWindow < 0 {
		return fmt.Errorf("marker_window must not be negative")
	}
	switch s.SuffixStrategy {
	case "increment", "compound":
	default:
		return fmt.Errorf("suffix_strategy must be 'increment' or 'compound', got %q", s.SuffixStrategy)
	}
	switch s.FieldPolicy {
	case "lenient", "strict":
	default:
		return fmt.Errorf("field_policy must be 'lenient' or 'strict', got %q", s.FieldPolicy)
	}
	if err := validateMarkers(s.Markers); err != nil {
		return err
	}
	return nil
}

// Validate checks the repair settings.
func (r *RepairConfig) Validate() error {
	for name, raw := range map[string]string{
		"login_url":    r.LoginURL,
		"training_url": r.TrainingURL,
		"profile_url":  r.ProfileURL,
		"logout_url":   r.LogoutURL,
	} {
		if err := validateURL(name, raw); err != nil {
			return err
		}
	}
	if r.LoginWindow <= 0 || r.ToastWindow <= 0 || r.WaitTimeout <= 0 {
		return fmt.Errorf("wait_timeout, login_window and toast_window must be positive durations")
	}
	if strings.TrimSpace(r.TrainingName) == "" {
		return fmt.Errorf("training_name is required")
	}
	return validateMarkers(r.ToastMarkers)
}

func validateURL(name, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s must be an absolute URL, got %q", name, raw)
	}
	return nil
}

func validateMarkers(markers []MarkerConfig) error {
	if len(markers) == 0 {
		return fmt.Errorf("at least one marker is required")
	}
	for i, m := range markers {
		if m.Pattern == "" || m.Outcome == "" {
			return fmt.Errorf("marker %d needs both pattern and outcome", i)
		}
	}
	return nil
}
