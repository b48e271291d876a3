package dto

import (
	"time"

	"github.com/spec-kit/qrpass-service/internal/domain"
	"github.com/spec-kit/qrpass-service/internal/service"
)

// CreateUserRequest payload for new users.
type CreateUserRequest struct {
	Name      string `json:"name"`
	BloodType string `json:"blood_type"`
	Phone     string `json:"phone"`
	Role      string `json:"role"`
}

// UserResponse is the public shape of a user.
type UserResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	BloodType string    `json:"blood_type"`
	Phone     string    `json:"phone"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// UserDetailResponse adds the user's current QR token, if any.
type UserDetailResponse struct {
	UserResponse
	QRToken *QRTokenResponse `json:"qr_token"`
}

// NewUserResponse maps a domain user.
func NewUserResponse(u domain.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Name:      u.Name,
		BloodType: u.BloodType,
		Phone:     u.Phone,
		Role:      string(u.Role),
		CreatedAt: u.CreatedAt,
	}
}

// NewUserResponses maps a list of users.
func NewUserResponses(users []domain.User) []UserResponse {
	out := make([]UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, NewUserResponse(u))
	}
	return out
}

// NewUserDetailResponse maps a user together with their token.
func NewUserDetailResponse(u *service.UserWithToken) UserDetailResponse {
	resp := UserDetailResponse{UserResponse: NewUserResponse(u.User)}
	if u.Token != nil {
		token := NewQRTokenResponse(*u.Token)
		resp.QRToken = &token
	}
	return resp
}
