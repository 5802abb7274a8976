package sources

// HubSpotUser is a CRM seat.
type HubSpotUser struct {
	ID    int64  `json:"id" yaml:"id"`
	Email string `json:"email" yaml:"email"`
}
