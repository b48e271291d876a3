package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/qrpass-service/internal/api/dto"
	"github.com/spec-kit/qrpass-service/internal/domain"
)

// OperatorAuthenticator checks operator credentials.
type OperatorAuthenticator interface {
	LoginOperator(username, password string) (domain.AccessToken, error)
}

// AuthHandler exposes operator login.
type AuthHandler struct {
	auth OperatorAuthenticator
}

// NewAuthHandler constructs handler.
func NewAuthHandler(auth OperatorAuthenticator) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// Login handles POST /auth/operator/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.OperatorLoginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}

	token, err := h.auth.LoginOperator(req.Username, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"data": fiber.Map{
			"auth": dto.AuthResponse{Token: token.Token, ExpiresAt: token.ExpiresAt},
		},
	})
}
