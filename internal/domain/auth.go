package domain

import "time"

// SubjectType identifies who an access token was issued to.
type SubjectType string

const (
	// SubjectTypeOperator is staff allowed to manage users and issue QR codes.
	SubjectTypeOperator SubjectType = "OPERATOR"
)

// AccessToken describes an issued operator token.
type AccessToken struct {
	Token     string
	SubjectID string
	Subject   SubjectType
	ExpiresAt time.Time
}
