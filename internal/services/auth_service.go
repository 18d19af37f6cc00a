package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/charlesng35/shopadmin/internal/auth"
	"github.com/charlesng35/shopadmin/internal/models"
	appErrors "github.com/charlesng35/shopadmin/pkg/errors"
	"github.com/charlesng35/shopadmin/pkg/logger"
	"github.com/charlesng35/shopadmin/pkg/mail"
	"github.com/charlesng35/shopadmin/pkg/metrics"
	"github.com/charlesng35/shopadmin/pkg/validator"
)

// LoginInput holds submitted credentials.
type LoginInput struct {
	Email    string `json:"email" mapstructure:"email" validate:"required,email"`
	Password string `json:"password" mapstructure:"password" validate:"required,min=6"`
}

// LoginResult is returned on successful authentication.
type LoginResult struct {
	User      *models.User `json:"user"`
	Token     string       `json:"token"`
	ExpiresIn int64        `json:"expires_in"`
}

// BootstrapAdmin describes the administrator created on first start.
type BootstrapAdmin struct {
	Username string
	Email    string
	Password string
}

// AuthOptions configures AuthService.
type AuthOptions struct {
	AppName string
	Mailer  mail.Mailer
	Logger  *zap.Logger
}

// AuthService registers accounts and issues access tokens.
type AuthService struct {
	users   *UserService
	jwt     *auth.JWTService
	mailer  mail.Mailer
	appName string
	log     *zap.Logger
}

// NewAuthService constructs an AuthService.
func NewAuthService(users *UserService, jwt *auth.JWTService, opts AuthOptions) (*AuthService, error) {
	if users == nil {
		return nil, errors.New("auth service: user service is required")
	}
	if jwt == nil {
		return nil, errors.New("auth service: jwt service is required")
	}

	log := opts.Logger
	if log == nil {
		log = logger.WithModule("services.auth")
	}
	appName := strings.TrimSpace(opts.AppName)
	if appName == "" {
		appName = "ShopAdmin"
	}
	return &AuthService{
		users:   users,
		jwt:     jwt,
		mailer:  opts.Mailer,
		appName: appName,
		log:     log,
	}, nil
}

// Register creates a regular account and sends a welcome email. Email failures are logged.
func (s *AuthService) Register(ctx context.Context, in CreateUserInput) (*models.User, error) {
	ctx = ensureContext(ctx)
	in.Role = models.RoleUser

	user, err := s.users.Create(ctx, in)
	if err != nil {
		return nil, err
	}

	s.sendWelcome(ctx, user)
	return user, nil
}

// Login verifies credentials and issues an access token. Unknown emails and wrong passwords
// are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	ctx = ensureContext(ctx)

	if err := validator.ValidateStruct(in); err != nil {
		return nil, validator.AsAppError(err)
	}

	user, err := s.users.FindByEmail(ctx, in.Email)
	if appErrors.IsNotFound(err) {
		metrics.AuthAttempts.WithLabelValues("unknown_user").Inc()
		return nil, appErrors.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if !s.users.hasher.Verify(user.Password, in.Password) {
		metrics.AuthAttempts.WithLabelValues("invalid_password").Inc()
		s.log.Info("login rejected", zap.String("user_id", user.ID))
		return nil, appErrors.ErrInvalidCredentials
	}

	token, err := s.jwt.GenerateAccessToken(user.ID, user.Role)
	if err != nil {
		return nil, fmt.Errorf("auth service: issue token: %w", err)
	}

	metrics.AuthAttempts.WithLabelValues("success").Inc()
	return &LoginResult{
		User:      sanitize(user),
		Token:     token,
		ExpiresIn: int64(s.jwt.TTL().Seconds()),
	}, nil
}

// EnsureAdmin creates the bootstrap administrator unless an account with its email exists.
func (s *AuthService) EnsureAdmin(ctx context.Context, admin BootstrapAdmin) (bool, error) {
	ctx = ensureContext(ctx)
	if strings.TrimSpace(admin.Email) == "" || admin.Password == "" {
		return false, nil
	}

	_, err := s.users.FindByEmail(ctx, admin.Email)
	if err == nil {
		return false, nil
	}
	if !appErrors.IsNotFound(err) {
		return false, err
	}

	username := strings.TrimSpace(admin.Username)
	if username == "" {
		username = "admin"
	}
	user, err := s.users.Create(ctx, CreateUserInput{
		Username: username,
		Name:     "Administrator",
		Email:    admin.Email,
		Password: admin.Password,
		Role:     models.RoleAdmin,
	})
	if err != nil {
		return false, fmt.Errorf("auth service: bootstrap admin: %w", err)
	}

	s.log.Info("bootstrap administrator created", zap.String("user_id", user.ID), zap.String("email", user.Email))
	return true, nil
}

func (s *AuthService) sendWelcome(ctx context.Context, user *models.User) {
	if s.mailer == nil {
		return
	}

	msg, err := mail.WelcomeMessage(mail.WelcomeData{
		AppName:  s.appName,
		Name:     user.Name,
		Username: user.Username,
		Email:    user.Email,
	})
	if err != nil {
		s.log.Warn("render welcome email failed", zap.String("user_id", user.ID), zap.Error(err))
		return
	}

	if err := s.mailer.Send(ctx, msg); err != nil {
		if errors.Is(err, mail.ErrSMTPDisabled) {
			s.log.Debug("welcome email skipped, smtp disabled", zap.String("user_id", user.ID))
			return
		}
		s.log.Warn("send welcome email failed", zap.String("user_id", user.ID), zap.Error(err))
	}
}
