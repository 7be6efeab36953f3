package models

// User is the local projection of a person who creates or edits
// transactions. Identity and credentials live in the auth subsystem; this
// row only feeds the creator and actor snapshots.
type User struct {
	Base
	Email     string `gorm:"uniqueIndex;not null" json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	IsActive  bool   `gorm:"default:true" json:"is_active"`
}

// Snapshot captures the user as it is right now.
func (u *User) Snapshot() map[string]any {
	return map[string]any{
		"id":         u.ID,
		"email":      u.Email,
		"first_name": u.FirstName,
		"last_name":  u.LastName,
	}
}
