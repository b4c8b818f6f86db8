package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ReportMode string

const (
	ReportModeProfession ReportMode = "PROFESSION"
	ReportModeClients    ReportMode = "CLIENTS"
)

type ProfessionTotal struct {
	Profession string          `json:"profession"`
	TotalPaid  decimal.Decimal `json:"total_paid"`
}

type ClientTotal struct {
	ID        uuid.UUID       `json:"id"`
	FullName  string          `json:"full_name"`
	TotalPaid decimal.Decimal `json:"paid"`
}

type ReportWindow struct {
	Start time.Time
	End   time.Time
}

// EarningsReport is the data behind a spreadsheet export.
type EarningsReport struct {
	Mode        ReportMode
	Window      ReportWindow
	GeneratedAt time.Time
	Professions []ProfessionTotal
	Clients     []ClientTotal
}
