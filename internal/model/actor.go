package model

import "github.com/google/uuid"

type Role string

const (
	RoleConsultant  Role = "CONSULTANT"
	RoleBeneficiary Role = "BENEFICIARY"
	RoleAdmin       Role = "ADMIN"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleConsultant, RoleBeneficiary, RoleAdmin:
		return true
	}
	return false
}

// Actor is the authenticated caller, as asserted by the upstream identity
// service. The engine trusts it: authorization decisions already happened at
// the gateway, only organization scoping is enforced here.
type Actor struct {
	ID             uuid.UUID `json:"id"`
	Role           Role      `json:"role"`
	OrganizationID uuid.UUID `json:"organization_id"`
}
