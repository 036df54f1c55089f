package models

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Roles carried by bearer tokens. Importing a study requires an elevated role.
const (
	RoleViewer   = "viewer"
	RoleImporter = "importer"
	RoleAdmin    = "admin"
)

// JWTClaims represents custom JWT claims
type JWTClaims struct {
	UserID uuid.UUID `json:"user_id"`
	Role   string    `json:"role"`
	jwt.RegisteredClaims
}

// UserContext is the authenticated caller extracted from a token
type UserContext struct {
	UserID uuid.UUID
	Role   string
}

// CanImport reports whether the caller holds a role allowed to import studies
func (u UserContext) CanImport() bool {
	return u.Role == RoleImporter || u.Role == RoleAdmin
}
