package models

import (
	"strings"

	"github.com/google/uuid"
)

type Role string

const (
	RoleStudent Role = "student"
	RoleAdmin   Role = "admin"
)

type Student struct {
	ID                 int64  `db:"id" json:"id"`
	Matric             string `db:"matric" json:"matric" validate:"required,max=50"`
	Name               string `db:"name" json:"name" validate:"required,max=100"`
	Level              string `db:"level" json:"level" validate:"max=10"`
	Department         string `db:"department" json:"department" validate:"max=255"`
	HouseID            *int64 `db:"house_id" json:"house_id,omitempty"`
	Role               Role   `db:"role" json:"role" validate:"required,oneof=student admin"`
	PasswordHash       string `db:"password_hash" json:"-"`
	AssignmentComplete bool   `db:"assignment_complete" json:"assignment_complete"`
	AssignedAt         *int64 `db:"assigned_at" json:"assigned_at,omitempty"`
	RegisteredAt       int64  `db:"registered_at" json:"registered_at"`
}

// Validate checks field constraints and the house invariants:
// a completed assignment references a house, an admin references none.
func (s *Student) Validate() error {
	if err := check(s); err != nil {
		return err
	}
	if s.Role == RoleStudent && s.AssignmentComplete && s.HouseID == nil {
		return NewValidationError("house", "students must belong to a house after assignment")
	}
	if s.Role == RoleAdmin && s.HouseID != nil {
		return NewValidationError("house", "admin users must not have a house")
	}
	return nil
}

func (s *Student) IsAdmin() bool {
	return s.Role == RoleAdmin
}

// NormalizeMatric upper-cases and trims a matric code so lookups are case-insensitive.
func NormalizeMatric(matric string) string {
	return strings.ToUpper(strings.TrimSpace(matric))
}

// GenerateMatric returns a surrogate matric code for students registering without one.
func GenerateMatric() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "GEN_" + strings.ToUpper(id[:12])
}

// Registration is the self-service sign-up payload.
type Registration struct {
	Name       string `json:"name" validate:"required,max=100"`
	Level      string `json:"level" validate:"max=10"`
	Department string `json:"department" validate:"max=255"`
	Matric     string `json:"matric" validate:"max=50"`
}

func (r *Registration) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	r.Department = strings.TrimSpace(r.Department)
	r.Matric = NormalizeMatric(r.Matric)
	return check(r)
}
