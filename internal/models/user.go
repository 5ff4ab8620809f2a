package models

import (
	"slices"
	"time"
)

type UserRole string

const (
	UserRoleUser    UserRole = "user"
	UserRoleAnalyst UserRole = "analyst"
	UserRoleAdmin   UserRole = "admin"
)

// Roles lists every assignable role in display order.
var Roles = []UserRole{UserRoleUser, UserRoleAnalyst, UserRoleAdmin}

func (r UserRole) Valid() bool {
	return slices.Contains(Roles, r)
}

// Domain tags the record category an analyst may edit.
type Domain string

const (
	DomainCybersecurity Domain = "cybersecurity"
	DomainDataScience   Domain = "data_science"
	DomainITOperations  Domain = "it_operations"
)

var Domains = []Domain{DomainCybersecurity, DomainDataScience, DomainITOperations}

func (d Domain) Valid() bool {
	return slices.Contains(Domains, d)
}

// Label is the human-facing domain name used in prompts.
func (d Domain) Label() string {
	switch d {
	case DomainCybersecurity:
		return "Cyber Security"
	case DomainDataScience:
		return "Data Science"
	case DomainITOperations:
		return "IT Operations"
	}
	return "General"
}

type Credential struct {
	Username     string
	PasswordHash []byte
	Role         UserRole
	Domain       Domain
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
