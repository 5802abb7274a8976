package sources

// WorkspaceUser is a Google Workspace account.
type WorkspaceUser struct {
	ID           string `json:"id" yaml:"id"`
	PrimaryEmail string `json:"primary_email" yaml:"primary_email"`
	GivenName    string `json:"given_name" yaml:"given_name"`
	FamilyName   string `json:"family_name" yaml:"family_name"`
	Suspended    bool   `json:"suspended" yaml:"suspended"`
}

// Organization is one entry of a Workspace user's organizations.
type Organization struct {
	Title      string `json:"title,omitempty" yaml:"title,omitempty"`
	Department string `json:"department,omitempty" yaml:"department,omitempty"`
	Primary    bool   `json:"primary" yaml:"primary"`
}

// Relation is one entry of a Workspace user's relations.
type Relation struct {
	Value string `json:"value" yaml:"value"`
	Type  string `json:"type" yaml:"type"`
}

// RelationManager is the relation type naming a user's manager.
const RelationManager = "manager"

// Phone is one entry of a Workspace user's phones.
type Phone struct {
	Value string `json:"value" yaml:"value"`
	Type  string `json:"type" yaml:"type"`
}

// PhoneMobile is the phone type used for numbers copied from Ramp.
const PhoneMobile = "mobile"

// WorkspaceProfile is the organizational part of a Workspace user that
// orgsync owns. Organizations and Relations are always written, so empty
// slices clear them. Phones are only written when non-nil.
type WorkspaceProfile struct {
	Organizations []Organization `json:"organizations" yaml:"organizations"`
	Relations     []Relation     `json:"relations" yaml:"relations"`
	Phones        []Phone        `json:"phones,omitempty" yaml:"phones,omitempty"`
}
