package model

import "github.com/google/uuid"

// Principal is the authenticated caller resolved from the access token.
type Principal struct {
	Profile Profile
}

func (p Principal) ID() uuid.UUID {
	return p.Profile.ID
}
