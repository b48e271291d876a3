package domain

import (
	"strings"
	"time"
)

// UserRole controls how much of a user's record a responder is meant to see.
type UserRole string

const (
	UserRoleEmergency UserRole = "EMERGENCY"
	UserRoleFull      UserRole = "FULL"
)

// ParseUserRole normalizes role input. Empty input defaults to EMERGENCY.
func ParseUserRole(raw string) (UserRole, bool) {
	switch UserRole(strings.ToUpper(strings.TrimSpace(raw))) {
	case "", UserRoleEmergency:
		return UserRoleEmergency, true
	case UserRoleFull:
		return UserRoleFull, true
	default:
		return "", false
	}
}

// User is the person a QR code identifies. Records are immutable once created.
type User struct {
	ID        string
	Name      string
	BloodType string
	Phone     string
	Role      UserRole
	CreatedAt time.Time
}
