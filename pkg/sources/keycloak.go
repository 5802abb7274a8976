package sources

// Custom Keycloak attributes that link an account to other systems.
const (
	AttributeRampUserID       = "rampUserId"
	AttributeWorkspaceAccount = "googleWorkspaceAccount"
)

// KeycloakUser is an identity provider account.
type KeycloakUser struct {
	ID         string              `json:"id" yaml:"id"`
	Username   string              `json:"username" yaml:"username"`
	FirstName  string              `json:"firstName" yaml:"first_name"`
	LastName   string              `json:"lastName" yaml:"last_name"`
	Email      string              `json:"email" yaml:"email"`
	Enabled    bool                `json:"enabled" yaml:"enabled"`
	Attributes map[string][]string `json:"attributes,omitempty" yaml:"attributes,omitempty"`
}

// Attribute returns a single-valued custom attribute. Attributes that are
// missing or carry more than one value are treated as unset.
func (u *KeycloakUser) Attribute(name string) (string, bool) {
	values, ok := u.Attributes[name]
	if !ok || len(values) != 1 {
		return "", false
	}
	return values[0], true
}

// RampUserID returns the linked Ramp user ID.
func (u *KeycloakUser) RampUserID() (string, bool) {
	return u.Attribute(AttributeRampUserID)
}

// WorkspaceAccount returns the linked Google Workspace primary email.
func (u *KeycloakUser) WorkspaceAccount() (string, bool) {
	return u.Attribute(AttributeWorkspaceAccount)
}
