package domain

import "time"

// SubjectType differentiates marketplace users vs arbiter tokens.
type SubjectType string

const (
	SubjectTypeUser    SubjectType = "USER"
	SubjectTypeArbiter SubjectType = "ARBITER"
)

// Token represents issued authentication tokens (JWT or opaque) metadata.
type Token struct {
	ID        string
	SubjectID string
	Subject   SubjectType
	Role      *ArbiterRole
	ExpiresAt time.Time
	IssuedAt  time.Time
}
