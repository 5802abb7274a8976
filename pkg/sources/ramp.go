package sources

// RampStatusActive is the status of a Ramp user that can spend.
const RampStatusActive = "USER_ACTIVE"

// RampUser is an expense platform user.
type RampUser struct {
	ID        string  `json:"id" yaml:"id"`
	FirstName string  `json:"first_name" yaml:"first_name"`
	LastName  string  `json:"last_name" yaml:"last_name"`
	Email     string  `json:"email" yaml:"email"`
	Phone     *string `json:"phone,omitempty" yaml:"phone,omitempty"`
	Status    string  `json:"status" yaml:"status"`
	ManagerID *string `json:"manager_id,omitempty" yaml:"manager_id,omitempty"`
}

// Active reports whether the Ramp status is USER_ACTIVE.
func (u *RampUser) Active() bool {
	return u.Status == RampStatusActive
}
