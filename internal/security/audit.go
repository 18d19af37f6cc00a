// Package security audits the deployment settings that protect the admin API.
package security

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/shopadmin/internal/app"
	iauth "github.com/charlesng35/shopadmin/internal/auth"
	"github.com/charlesng35/shopadmin/internal/models"
	"github.com/charlesng35/shopadmin/pkg/crypto"
)

// CheckStatus captures the outcome of a security audit check.
type CheckStatus string

const (
	StatusPass CheckStatus = "pass"
	StatusWarn CheckStatus = "warn"
	StatusFail CheckStatus = "fail"
)

// Check contains the result of a single audit verification.
type Check struct {
	ID          string      `json:"id"`
	Status      CheckStatus `json:"status"`
	Message     string      `json:"message"`
	Remediation string      `json:"remediation,omitempty"`
	Details     any         `json:"details,omitempty"`
}

// Result aggregates all checks with a status summary.
type Result struct {
	CheckedAt time.Time      `json:"checked_at"`
	Checks    []Check        `json:"checks"`
	Summary   map[string]int `json:"summary"`
}

// Failed reports whether any check failed.
func (r Result) Failed() bool {
	return r.Summary[string(StatusFail)] > 0
}

// AuditService evaluates the admin account, token and transport settings.
type AuditService struct {
	db  *gorm.DB
	jwt *iauth.JWTService
	cfg *app.Config
	now func() time.Time
}

// NewAuditService constructs the audit service. Missing dependencies degrade the
// affected checks to warnings.
func NewAuditService(db *gorm.DB, jwt *iauth.JWTService, cfg *app.Config) *AuditService {
	return &AuditService{db: db, jwt: jwt, cfg: cfg, now: time.Now}
}

// WithClock overrides the clock used in results.
func (s *AuditService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// Run executes all audit checks.
func (s *AuditService) Run(ctx context.Context) Result {
	if ctx == nil {
		ctx = context.Background()
	}

	checks := []Check{
		s.checkAdminPresent(ctx),
		s.checkJWTSecret(),
		s.checkBcryptCost(),
		s.checkCORS(),
		s.checkSMTPTransport(),
	}

	summary := map[string]int{
		string(StatusPass): 0,
		string(StatusWarn): 0,
		string(StatusFail): 0,
	}
	for _, check := range checks {
		summary[string(check.Status)]++
	}

	return Result{CheckedAt: s.now().UTC(), Checks: checks, Summary: summary}
}

func (s *AuditService) checkAdminPresent(ctx context.Context) Check {
	const id = "admin_present"
	if s.db == nil {
		return Check{
			ID:          id,
			Status:      StatusWarn,
			Message:     "Database unavailable, unable to confirm an administrator exists.",
			Remediation: "Ensure database connectivity before running the audit.",
		}
	}

	var count int64
	if err := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("role = ?", models.RoleAdmin).
		Count(&count).Error; err != nil {
		return Check{
			ID:          id,
			Status:      StatusWarn,
			Message:     fmt.Sprintf("Could not count administrators: %v", err),
			Remediation: "Retry after resolving database errors.",
		}
	}

	if count == 0 {
		return Check{
			ID:          id,
			Status:      StatusFail,
			Message:     "No administrator account exists; the admin API is unreachable.",
			Remediation: "Set auth.bootstrap_admin so one is created on start.",
		}
	}
	return Check{ID: id, Status: StatusPass, Message: "Administrator present.", Details: map[string]any{"count": count}}
}

func (s *AuditService) checkJWTSecret() Check {
	const id = "jwt_secret_strength"
	if s.jwt == nil {
		return Check{
			ID:          id,
			Status:      StatusWarn,
			Message:     "JWT service not initialised, unable to assess signing secret strength.",
			Remediation: "Initialise the JWT service with a strong secret.",
		}
	}

	length := s.jwt.SecretLength()
	switch {
	case length < 32:
		return Check{
			ID:          id,
			Status:      StatusFail,
			Message:     fmt.Sprintf("JWT signing secret is too short (%d bytes).", length),
			Remediation: "Use a randomly generated secret of at least 32 bytes.",
		}
	case length < 48:
		return Check{
			ID:          id,
			Status:      StatusWarn,
			Message:     fmt.Sprintf("JWT signing secret is %d bytes. Consider 48+ bytes.", length),
			Remediation: "Increase SHOPADMIN_AUTH_JWT_SECRET to at least 48 bytes.",
			Details:     map[string]any{"length": length},
		}
	default:
		return Check{
			ID:      id,
			Status:  StatusPass,
			Message: fmt.Sprintf("JWT signing secret length is %d bytes.", length),
			Details: map[string]any{"length": length},
		}
	}
}

func (s *AuditService) checkBcryptCost() Check {
	const id = "bcrypt_cost"
	if s.cfg == nil {
		return configMissing(id)
	}

	cost := crypto.NewBcryptHasher(s.cfg.Auth.BcryptCost).Cost
	if cost < crypto.DefaultCost {
		return Check{
			ID:          id,
			Status:      StatusWarn,
			Message:     fmt.Sprintf("Password hashing cost %d is below the recommended %d.", cost, crypto.DefaultCost),
			Remediation: "Raise auth.bcrypt_cost.",
			Details:     map[string]any{"cost": cost},
		}
	}
	return Check{ID: id, Status: StatusPass, Message: fmt.Sprintf("Password hashing cost is %d.", cost)}
}

func (s *AuditService) checkCORS() Check {
	const id = "cors_origins"
	if s.cfg == nil {
		return configMissing(id)
	}

	origins := s.cfg.Server.CORSOrigins
	for _, origin := range origins {
		if strings.TrimSpace(origin) == "*" {
			return Check{
				ID:          id,
				Status:      StatusWarn,
				Message:     "Any origin may call the API.",
				Remediation: "List the admin frontend origins in server.cors_origins.",
			}
		}
	}
	if len(origins) == 0 {
		return Check{
			ID:          id,
			Status:      StatusWarn,
			Message:     "No CORS origins configured; every origin is allowed.",
			Remediation: "List the admin frontend origins in server.cors_origins.",
		}
	}
	return Check{ID: id, Status: StatusPass, Message: "CORS restricted.", Details: map[string]any{"origins": origins}}
}

func (s *AuditService) checkSMTPTransport() Check {
	const id = "smtp_transport"
	if s.cfg == nil {
		return configMissing(id)
	}

	smtp := s.cfg.Email.SMTP
	switch {
	case !smtp.Enabled:
		return Check{ID: id, Status: StatusPass, Message: "SMTP disabled; welcome emails are skipped."}
	case !smtp.UseTLS && smtp.Username != "":
		return Check{
			ID:          id,
			Status:      StatusFail,
			Message:     "SMTP credentials are sent without TLS.",
			Remediation: "Enable email.smtp.use_tls.",
		}
	case !smtp.UseTLS:
		return Check{
			ID:          id,
			Status:      StatusWarn,
			Message:     "SMTP connection is not encrypted.",
			Remediation: "Enable email.smtp.use_tls.",
		}
	}
	return Check{ID: id, Status: StatusPass, Message: "SMTP uses TLS."}
}

func configMissing(id string) Check {
	return Check{
		ID:          id,
		Status:      StatusWarn,
		Message:     "Configuration not loaded.",
		Remediation: "Load configuration before running the security audit.",
	}
}
