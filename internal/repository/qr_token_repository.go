package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/qrpass-service/internal/domain"
)

// QRTokenRepository persists the per-user QR token record.
type QRTokenRepository interface {
	// Upsert replaces the user's token and returns the superseded tokenId, or "" if none.
	Upsert(ctx context.Context, token *domain.QRToken) (string, error)
	GetByTokenID(ctx context.Context, tokenID string) (*domain.QRToken, error)
	GetByUserID(ctx context.Context, userID string) (*domain.QRToken, error)
	// MarkRedeemed flips redeemed to true. It reports false if the token was already redeemed.
	MarkRedeemed(ctx context.Context, tokenID string) (bool, error)
	Deactivate(ctx context.Context, tokenID string) error
	Purge(ctx context.Context, expiredBefore time.Time, includeRedeemed bool) (int64, error)
}

type qrTokenRepository struct {
	db DBTX
}

// NewQRTokenRepository returns a Postgres-backed implementation.
func NewQRTokenRepository(db DBTX) QRTokenRepository {
	return &qrTokenRepository{db: db}
}

const qrTokenColumns = `id, token_id, user_id, encrypted_payload, integrity_hash, expires_at, active, redeemed, issued_at, updated_at`

func (r *qrTokenRepository) Upsert(ctx context.Context, token *domain.QRToken) (string, error) {
	const query = `
        WITH prev AS (
            SELECT token_id FROM qr_tokens WHERE user_id=$1
        )
        INSERT INTO qr_tokens (user_id, token_id, encrypted_payload, integrity_hash, expires_at, active, redeemed)
        VALUES ($1, $2, $3, $4, $5, TRUE, FALSE)
        ON CONFLICT (user_id) DO UPDATE SET
            token_id=EXCLUDED.token_id,
            encrypted_payload=EXCLUDED.encrypted_payload,
            integrity_hash=EXCLUDED.integrity_hash,
            expires_at=EXCLUDED.expires_at,
            active=TRUE,
            redeemed=FALSE,
            issued_at=NOW(),
            updated_at=NOW()
        RETURNING id, issued_at, updated_at, COALESCE((SELECT token_id FROM prev), '')`

	var previous string
	if err := r.db.QueryRow(ctx, query,
		token.UserID,
		token.TokenID,
		token.EncryptedPayload,
		token.IntegrityHash,
		token.ExpiresAt,
	).Scan(&token.ID, &token.IssuedAt, &token.UpdatedAt, &previous); err != nil {
		return "", err
	}
	token.Active = true
	token.Redeemed = false
	return previous, nil
}

func (r *qrTokenRepository) GetByTokenID(ctx context.Context, tokenID string) (*domain.QRToken, error) {
	query := `SELECT ` + qrTokenColumns + ` FROM qr_tokens WHERE token_id=$1`
	return r.fetchSingle(ctx, query, tokenID)
}

func (r *qrTokenRepository) GetByUserID(ctx context.Context, userID string) (*domain.QRToken, error) {
	query := `SELECT ` + qrTokenColumns + ` FROM qr_tokens WHERE user_id=$1`
	return r.fetchSingle(ctx, query, userID)
}

func (r *qrTokenRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.QRToken, error) {
	var token domain.QRToken
	if err := r.db.QueryRow(ctx, query, arg).Scan(
		&token.ID,
		&token.TokenID,
		&token.UserID,
		&token.EncryptedPayload,
		&token.IntegrityHash,
		&token.ExpiresAt,
		&token.Active,
		&token.Redeemed,
		&token.IssuedAt,
		&token.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &token, nil
}

func (r *qrTokenRepository) MarkRedeemed(ctx context.Context, tokenID string) (bool, error) {
	const query = `
        UPDATE qr_tokens SET redeemed=TRUE, updated_at=NOW()
        WHERE token_id=$1 AND redeemed=FALSE`

	cmd, err := r.db.Exec(ctx, query, tokenID)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *qrTokenRepository) Deactivate(ctx context.Context, tokenID string) error {
	const query = `
        UPDATE qr_tokens SET active=FALSE, updated_at=NOW()
        WHERE token_id=$1`

	cmd, err := r.db.Exec(ctx, query, tokenID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *qrTokenRepository) Purge(ctx context.Context, expiredBefore time.Time, includeRedeemed bool) (int64, error) {
	const query = `
        DELETE FROM qr_tokens
        WHERE expires_at < $1 OR ($2 AND redeemed)`

	cmd, err := r.db.Exec(ctx, query, expiredBefore, includeRedeemed)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}
