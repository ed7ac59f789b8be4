package accounts

// SimpleConfig is a plain-struct Config implementation for wiring the
// subsystem without a configuration framework.
type SimpleConfig struct {
	SigningKey              string
	Issuer                  string
	MaxFailedLogins         int
	SessionTokenExpiration  int
	RegistrationGracePeriod string
	AutoUnblockWindow       string
	ActivationURL           string
	PasswordResetURL        string
	EmailConfirmURL         string
	DefaultLanguage         string
}

var _ Config = (*SimpleConfig)(nil)

func (c *SimpleConfig) GetSigningKey() string {
	return c.SigningKey
}

func (c *SimpleConfig) GetIssuer() string {
	return c.Issuer
}

func (c *SimpleConfig) GetMaxFailedLogins() int {
	if c.MaxFailedLogins <= 0 {
		return 3
	}
	return c.MaxFailedLogins
}

// GetSessionTokenExpiration returns the session credential lifetime in hours.
func (c *SimpleConfig) GetSessionTokenExpiration() int {
	if c.SessionTokenExpiration <= 0 {
		return 24
	}
	return c.SessionTokenExpiration
}

func (c *SimpleConfig) GetRegistrationGracePeriod() string {
	if c.RegistrationGracePeriod == "" {
		return "24h"
	}
	return c.RegistrationGracePeriod
}

func (c *SimpleConfig) GetAutoUnblockWindow() string {
	if c.AutoUnblockWindow == "" {
		return "2h"
	}
	return c.AutoUnblockWindow
}

func (c *SimpleConfig) GetActivationURL() string {
	return c.ActivationURL
}

func (c *SimpleConfig) GetPasswordResetURL() string {
	return c.PasswordResetURL
}

func (c *SimpleConfig) GetEmailConfirmURL() string {
	return c.EmailConfirmURL
}

func (c *SimpleConfig) GetDefaultLanguage() string {
	if c.DefaultLanguage == "" {
		return "en"
	}
	return c.DefaultLanguage
}
