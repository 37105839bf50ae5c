package cfg

import (
	"errors"
	"flag"
	"fmt"
	"strings"
)

// Config holds the service configuration, bound to flags and filled from the
// environment by main.
type Config struct {
	DrainSeconds          int
	ShutdownBudgetSeconds int
	APIPort               int

	DatabaseURL string

	HFAPIToken string
	HFEndpoint string

	JWTSecret         string
	AdminEmail        string
	AdminPasswordHash string

	UploadDir       string
	SubmitPerMinute int
	SubmitBurst     int
	MaxImageWidth   int
}

// RegisterFlags binds Config fields to the given FlagSet with defaults inline
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.DrainSeconds, "drain-seconds", 60, "seconds to wait for in-flight requests to drain before shutdown (1..300)")
	fs.IntVar(&c.ShutdownBudgetSeconds, "shutdown-budget-seconds", 90, "total seconds for component shutdown after drain (1..300)")
	fs.IntVar(&c.APIPort, "http-port", 8080, "API listen TCP port (1..65535)")
	fs.StringVar(&c.DatabaseURL, "database-url", "", "PostgreSQL connection URL (empty = in-memory store)")
	fs.StringVar(&c.HFAPIToken, "hf-api-token", "", "Hugging Face inference API token (empty = keyword fallback only)")
	fs.StringVar(&c.HFEndpoint, "hf-endpoint", "", "Hugging Face inference base URL (empty = hosted API)")
	fs.StringVar(&c.JWTSecret, "jwt-secret", "", "HS256 signing secret for admin session tokens (min 16 chars)")
	fs.StringVar(&c.AdminEmail, "admin-email", "", "admin console login email")
	fs.StringVar(&c.AdminPasswordHash, "admin-password-hash", "", "bcrypt hash of the admin console password")
	fs.StringVar(&c.UploadDir, "upload-dir", "./uploads", "directory for attachment files (empty = uploads disabled)")
	fs.IntVar(&c.SubmitPerMinute, "submit-per-minute", 5, "anonymous submissions allowed per client IP per minute (0 = unlimited)")
	fs.IntVar(&c.SubmitBurst, "submit-burst", 10, "submission burst allowance per client IP")
	fs.IntVar(&c.MaxImageWidth, "max-image-width", 960, "attachment images are scaled down to this width before analysis (1..4096)")
}

// Validate checks all configuration fields for correctness.
// It returns an error if any field is invalid, or nil if all fields are valid.
func (c *Config) Validate() error {
	var errs []error

	// Drain and shutdown budgets
	if c.DrainSeconds <= 0 || c.DrainSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid DRAIN_SECONDS %d (must be 1..300)", c.DrainSeconds))
	}
	if c.ShutdownBudgetSeconds <= 0 || c.ShutdownBudgetSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid SHUTDOWN_BUDGET_SECONDS %d (must be 1..300)", c.ShutdownBudgetSeconds))
	}

	// Shutdown budget must be greater than drain time
	if c.ShutdownBudgetSeconds <= c.DrainSeconds {
		errs = append(errs, fmt.Errorf("SHUTDOWN_BUDGET_SECONDS %d must be greater than DRAIN_SECONDS %d", c.ShutdownBudgetSeconds, c.DrainSeconds))
	}

	// API port must be valid TCP port number
	if c.APIPort <= 0 || c.APIPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP_PORT %d (must be 1..65535)", c.APIPort))
	}

	// Admin console cannot run without a credential and a signing secret.
	if len(c.JWTSecret) < 16 {
		errs = append(errs, errors.New("JWT_SECRET is required (min 16 chars)"))
	}
	if c.AdminEmail == "" {
		errs = append(errs, errors.New("ADMIN_EMAIL is required"))
	}
	if !strings.HasPrefix(c.AdminPasswordHash, "$2") {
		errs = append(errs, errors.New("ADMIN_PASSWORD_HASH must be a bcrypt hash"))
	}

	if c.SubmitPerMinute < 0 {
		errs = append(errs, fmt.Errorf("invalid SUBMIT_PER_MINUTE %d (must be >= 0)", c.SubmitPerMinute))
	}
	if c.SubmitBurst < 0 {
		errs = append(errs, fmt.Errorf("invalid SUBMIT_BURST %d (must be >= 0)", c.SubmitBurst))
	}
	if c.MaxImageWidth <= 0 || c.MaxImageWidth > 4096 {
		errs = append(errs, fmt.Errorf("invalid MAX_IMAGE_WIDTH %d (must be 1..4096)", c.MaxImageWidth))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
