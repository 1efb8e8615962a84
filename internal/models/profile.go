package models

import "time"

// Profile represents a student identity in the system. Authentication itself
// is handled upstream; this record only carries the attributes the client
// displays next to messages and membership lists.
type Profile struct {
	ID           string    `json:"id" db:"id"`
	FullName     string    `json:"full_name" db:"full_name"`
	USN          string    `json:"usn" db:"usn"`
	Branch       string    `json:"branch" db:"branch"`
	Semester     int       `json:"semester" db:"semester"`
	MotherTongue string    `json:"mother_tongue" db:"mother_tongue"`
	AvatarURL    string    `json:"avatar_url" db:"avatar_url"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// DisplayName returns the best display name for the profile.
func (p *Profile) DisplayName() string {
	if p.FullName != "" {
		return p.FullName
	}
	return p.USN
}
