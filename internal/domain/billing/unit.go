package billing

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/condo/backend/internal/domain/shared"
)

// Unit represents a condominium unit (apartment, office, parking lot).
// Billing reads it for its attributes; ownership and directory management
// live outside this context.
type Unit struct {
	shared.BaseEntity
	Number            string          `json:"number"`
	OwnerUserID       *uuid.UUID      `json:"owner_user_id"`
	AreaM2            decimal.Decimal `json:"area_m2"`
	AliquotPercentage decimal.Decimal `json:"aliquot_percentage"`
	Floor             int             `json:"floor"`
	ParkingSpaces     int             `json:"parking_spaces"`
	IsActive          bool            `json:"is_active"`
}

// AttributeEnv returns the unit attributes as an evaluation environment
// for formula expressions.
func (u *Unit) AttributeEnv() map[string]decimal.Decimal {
	return map[string]decimal.Decimal{
		"area_m2":            u.AreaM2,
		"aliquot_percentage": u.AliquotPercentage,
		"floor":              decimal.NewFromInt(int64(u.Floor)),
		"parking_spaces":     decimal.NewFromInt(int64(u.ParkingSpaces)),
	}
}
