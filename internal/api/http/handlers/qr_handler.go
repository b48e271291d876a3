package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/qrpass-service/internal/api/dto"
	"github.com/spec-kit/qrpass-service/internal/service"
)

// QRService is the subset of service.QRService used over HTTP.
type QRService interface {
	Issue(ctx context.Context, userID string, expiresAt time.Time) (*service.IssuedQR, error)
	Verify(ctx context.Context, blob string) (*service.VerifyResult, error)
	Scan(ctx context.Context, tokenID string) (*service.ScanResult, error)
	Details(ctx context.Context, tokenID string) (*service.TokenDetails, error)
	Image(ctx context.Context, tokenID string) ([]byte, error)
	Revoke(ctx context.Context, tokenID string) error
}

// QRHandler exposes token issuance and redemption endpoints.
type QRHandler struct {
	qr QRService
}

// NewQRHandler constructs handler.
func NewQRHandler(qr QRService) *QRHandler {
	return &QRHandler{qr: qr}
}

// Generate handles POST /api/qr/generate.
func (h *QRHandler) Generate(c *fiber.Ctx) error {
	var req dto.GenerateQRRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}

	var expiresAt time.Time
	if req.ExpiresAt != nil {
		expiresAt = *req.ExpiresAt
	}

	issued, err := h.qr.Issue(c.UserContext(), req.UserID, expiresAt)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewGenerateQRResponse(issued)})
}

// Verify handles POST /api/qr/verify.
func (h *QRHandler) Verify(c *fiber.Ctx) error {
	var req dto.VerifyQRRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}

	result, err := h.qr.Verify(c.UserContext(), req.EncryptedPayload)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewVerifyQRResponse(result)})
}

// Scan handles GET /api/qr/scan/:tokenId.
func (h *QRHandler) Scan(c *fiber.Ctx) error {
	result, err := h.qr.Scan(c.UserContext(), c.Params("tokenId"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewScanQRResponse(result)})
}

// Details handles GET /api/qr/:tokenId.
func (h *QRHandler) Details(c *fiber.Ctx) error {
	details, err := h.qr.Details(c.UserContext(), c.Params("tokenId"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewQRDetailsResponse(details)})
}

// Download handles GET /api/qr/download/:tokenId.
func (h *QRHandler) Download(c *fiber.Ctx) error {
	tokenID := c.Params("tokenId")
	png, err := h.qr.Image(c.UserContext(), tokenID)
	if err != nil {
		return err
	}

	c.Set(fiber.HeaderContentType, "image/png")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="qr-%s.png"`, tokenID))
	return c.Send(png)
}

// Revoke handles POST /api/qr/:tokenId/revoke.
func (h *QRHandler) Revoke(c *fiber.Ctx) error {
	tokenID := c.Params("tokenId")
	if err := h.qr.Revoke(c.UserContext(), tokenID); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"token_id": tokenID, "active": false}})
}
