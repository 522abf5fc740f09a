package config

// AuthType enumerates supported authentication methods (stringly for YAML compatibility).
type AuthType string

const (
	AuthTypeNone  AuthType = "none"
	AuthTypeToken AuthType = "token"
	AuthTypeBasic AuthType = "basic"
)

// AuthConfig represents HTTP(S) authentication for the publishing remote.
// Token auth sends the personal access token as the basic-auth password.
type AuthConfig struct {
	Type     AuthType `yaml:"type"` // token|basic|none
	Username string   `yaml:"username,omitempty"`
	Password string   `yaml:"password,omitempty"`
	Token    string   `yaml:"token,omitempty"`
}

// IsZero reports whether no auth method specified.
func (a *AuthConfig) IsZero() bool { return a == nil || a.Type == "" || a.Type == AuthTypeNone }

// Credentials returns the username/password pair sent to the remote.
func (a *AuthConfig) Credentials() (username, password string) {
	if a.IsZero() {
		return "", ""
	}
	switch a.Type {
	case AuthTypeToken:
		username = a.Username
		if username == "" {
			username = "token"
		}
		return username, a.Token
	default:
		return a.Username, a.Password
	}
}
