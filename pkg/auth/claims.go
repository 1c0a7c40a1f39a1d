package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/mdelarosa/tallypos-backend/pkg/enums"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID   uuid.UUID
	DeviceID uuid.UUID
	PlanTier enums.PlanTier
	JTI      string
}

// AccessTokenClaims represents the typed JWT issued to clients.
type AccessTokenClaims struct {
	UserID   uuid.UUID      `json:"user_id"`
	DeviceID uuid.UUID      `json:"device_id"`
	PlanTier enums.PlanTier `json:"plan_tier"`
	jwt.RegisteredClaims
}
