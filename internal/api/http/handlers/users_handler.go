package handlers

import (
	"context"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/qrpass-service/internal/api/dto"
	"github.com/spec-kit/qrpass-service/internal/domain"
	"github.com/spec-kit/qrpass-service/internal/service"
)

// UserService is the subset of service.UserService used over HTTP.
type UserService interface {
	Create(ctx context.Context, input service.CreateUserInput) (*domain.User, error)
	GetWithToken(ctx context.Context, id string) (*service.UserWithToken, error)
	List(ctx context.Context) ([]domain.User, error)
}

// UsersHandler exposes user management endpoints.
type UsersHandler struct {
	users UserService
}

// NewUsersHandler constructs handler.
func NewUsersHandler(users UserService) *UsersHandler {
	return &UsersHandler{users: users}
}

// Create handles POST /api/users.
func (h *UsersHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}

	user, err := h.users.Create(c.UserContext(), service.CreateUserInput{
		Name:      req.Name,
		BloodType: req.BloodType,
		Phone:     req.Phone,
		Role:      req.Role,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewUserResponse(*user)})
}

// Get handles GET /api/users/:id.
func (h *UsersHandler) Get(c *fiber.Ctx) error {
	user, err := h.users.GetWithToken(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewUserDetailResponse(user)})
}

// List handles GET /api/users.
func (h *UsersHandler) List(c *fiber.Ctx) error {
	users, err := h.users.List(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewUserResponses(users)})
}
