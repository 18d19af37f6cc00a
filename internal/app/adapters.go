package app

import (
	"strings"

	"github.com/charlesng35/shopadmin/internal/auth"
	"github.com/charlesng35/shopadmin/internal/database"
	"github.com/charlesng35/shopadmin/internal/services"
	"github.com/charlesng35/shopadmin/pkg/mail"
)

// JWTServiceConfig converts AuthConfig into the parameters expected by the JWT service.
func (c AuthConfig) JWTServiceConfig() auth.JWTConfig {
	ttl := c.JWT.TTL
	if ttl <= 0 {
		ttl = auth.DefaultAccessTokenTTL
	}

	return auth.JWTConfig{
		Secret:         c.JWT.Secret,
		Issuer:         c.JWT.Issuer,
		AccessTokenTTL: ttl,
	}
}

// BootstrapAdminInput converts the bootstrap administrator settings.
func (c AuthConfig) BootstrapAdminInput() services.BootstrapAdmin {
	return services.BootstrapAdmin{
		Username: strings.TrimSpace(c.BootstrapAdmin.Username),
		Email:    strings.TrimSpace(c.BootstrapAdmin.Email),
		Password: c.BootstrapAdmin.Password,
	}
}

// SMTPSettings converts EmailConfig to the mail package representation.
func (c EmailConfig) SMTPSettings() mail.SMTPSettings {
	return mail.SMTPSettings{
		Enabled:  c.SMTP.Enabled,
		Host:     c.SMTP.Host,
		Port:     c.SMTP.Port,
		Username: c.SMTP.Username,
		Password: c.SMTP.Password,
		From:     c.SMTP.From,
		UseTLS:   c.SMTP.UseTLS,
		Timeout:  c.SMTP.Timeout,
	}
}

// ConnectionConfig converts DatabaseConfig into database.Open parameters, picking the host
// settings that match the selected driver.
func (c DatabaseConfig) ConnectionConfig() database.Config {
	cfg := database.Config{
		Driver:          c.Driver,
		Path:            c.Path,
		DSN:             c.DSN,
		MaxOpenConns:    c.MaxOpenConns,
		MaxIdleConns:    c.MaxIdleConns,
		ConnMaxLifetime: c.ConnMaxLifetime,
	}

	var host DBAuthConfig
	switch strings.ToLower(strings.TrimSpace(c.Driver)) {
	case "postgres", "postgresql", "pg":
		host = c.Postgres
	case "mysql", "mariadb":
		host = c.MySQL
	default:
		return cfg
	}

	cfg.Host = host.Host
	cfg.Port = host.Port
	cfg.Name = host.Database
	cfg.User = host.Username
	cfg.Password = host.Password
	cfg.Options = host.Options
	return cfg
}

// ServiceSettings converts the cache and media sections into entity service settings.
func (c *Config) ServiceSettings() services.Settings {
	return services.Settings{
		CacheTTL:            c.Cache.TTL,
		SweepFilteredLists:  c.Cache.SweepFilteredLists,
		DefaultAvatar:       strings.TrimSpace(c.Media.DefaultAvatar),
		DefaultProductImage: strings.TrimSpace(c.Media.DefaultProductImage),
		AvatarDir:           strings.Trim(c.Media.AvatarDir, "/ "),
		ProductDir:          strings.Trim(c.Media.ProductDir, "/ "),
	}
}
