package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestQRToken_IsExpired(t *testing.T) {
	exp := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	tok := &QRToken{ExpiresAt: exp}

	assert.False(t, tok.IsExpired(exp.Add(-time.Nanosecond)))
	assert.True(t, tok.IsExpired(exp))
	assert.True(t, tok.IsExpired(exp.Add(time.Hour)))
}

func TestParseUserRole(t *testing.T) {
	tests := []struct {
		in   string
		want UserRole
		ok   bool
	}{
		{"", UserRoleEmergency, true},
		{"emergency", UserRoleEmergency, true},
		{" FULL ", UserRoleFull, true},
		{"admin", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseUserRole(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestSnapshotOf(t *testing.T) {
	created := time.Now()
	u := &User{ID: "u1", Name: "Ada", BloodType: "O+", Phone: "555", Role: UserRoleFull, CreatedAt: created}

	s := SnapshotOf(u)

	assert.Equal(t, UserSnapshot{ID: "u1", Name: "Ada", BloodType: "O+", Phone: "555", Role: UserRoleFull, CreatedAt: created}, s)
}
