package service

import (
	"github.com/google/uuid"

	"github.com/nurpe/jobpay/internal/model"
)

// AuthorizeParty reports whether profile is the client or the contractor of contract.
func AuthorizeParty(profile model.Profile, contract model.Contract) bool {
	if profile.ID == uuid.Nil {
		return false
	}
	return profile.ID == contract.ClientID || profile.ID == contract.ContractorID
}

// AuthorizeClient reports whether profile is the client of contract.
func AuthorizeClient(profile model.Profile, contract model.Contract) bool {
	if profile.ID == uuid.Nil {
		return false
	}
	return profile.ID == contract.ClientID
}

// AuthorizeAdmin admits every profile while no admin list is configured.
func AuthorizeAdmin(profile model.Profile, adminIDs []uuid.UUID) bool {
	if profile.ID == uuid.Nil {
		return false
	}
	if len(adminIDs) == 0 {
		return true
	}
	for _, id := range adminIDs {
		if id == profile.ID {
			return true
		}
	}
	return false
}
