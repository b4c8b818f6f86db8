package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ProfileRole string

const (
	ProfileRoleClient     ProfileRole = "client"
	ProfileRoleContractor ProfileRole = "contractor"
)

type Profile struct {
	ID         uuid.UUID       `json:"id"`
	FirstName  string          `json:"first_name"`
	LastName   string          `json:"last_name"`
	Profession string          `json:"profession"`
	Balance    decimal.Decimal `json:"balance"`
	Role       ProfileRole     `json:"role"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

func (p Profile) IsClient() bool {
	return p.Role == ProfileRoleClient
}

func (p Profile) IsContractor() bool {
	return p.Role == ProfileRoleContractor
}

// FullName joins first and last name with a single space.
func (p Profile) FullName() string {
	return FullName(p.FirstName, p.LastName)
}

func FullName(first, last string) string {
	switch {
	case first == "":
		return last
	case last == "":
		return first
	default:
		return first + " " + last
	}
}
