package domain

import "time"

// ArbiterRole enumerates privileged operator roles.
type ArbiterRole string

const (
	ArbiterRoleArbiter ArbiterRole = "ARBITER"
	ArbiterRoleAdmin   ArbiterRole = "ADMIN"
)

// Arbiter models an operator who adjudicates escalated disputes.
type Arbiter struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         ArbiterRole
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
