package auth

import (
	"fmt"
	"time"
)

// AccountStatus is the lifecycle state of an account
type AccountStatus string

const (
	StatusActive   AccountStatus = "active"
	StatusInactive AccountStatus = "inactive"
)

// Valid reports whether s is a known status
func (s AccountStatus) Valid() bool {
	return s == StatusActive || s == StatusInactive
}

// RoleName is the closed set of roles an account can hold
type RoleName string

const (
	RoleAdmin RoleName = "admin" // Full access, including the security log
	RoleUser  RoleName = "user"  // Regular staff account
)

// Capability is a single permission granted by a role
type Capability string

const (
	CapabilityReadSecurityLog Capability = "security_log:read"
	CapabilityManageAccounts  Capability = "accounts:manage"
	CapabilityViewSession     Capability = "session:view"
)

var roleCapabilities = map[RoleName][]Capability{
	RoleAdmin: {
		CapabilityReadSecurityLog,
		CapabilityManageAccounts,
		CapabilityViewSession,
	},
	RoleUser: {
		CapabilityViewSession,
	},
}

// ParseRoleName converts a stored role name into a RoleName.
// Names outside the closed set are rejected.
func ParseRoleName(name string) (RoleName, error) {
	r := RoleName(name)
	if _, ok := roleCapabilities[r]; !ok {
		return "", fmt.Errorf("unknown role %q", name)
	}
	return r, nil
}

// Can reports whether the role grants the capability
func (r RoleName) Can(c Capability) bool {
	for _, granted := range roleCapabilities[r] {
		if granted == c {
			return true
		}
	}
	return false
}

// Capabilities returns a copy of the capabilities granted to the role
func (r RoleName) Capabilities() []Capability {
	caps := roleCapabilities[r]
	out := make([]Capability, len(caps))
	copy(out, caps)
	return out
}

// Role is a persisted role row
type Role struct {
	ID       int64    `json:"id"`
	Name     RoleName `json:"name"`
	IsSystem bool     `json:"is_system"`
}

// Employee is the profile data associated with an account, if any
type Employee struct {
	ID       int64  `json:"id"`
	FullName string `json:"full_name"`
	Position string `json:"position,omitempty"`
}

// Account is an identity record. PasswordHash is never serialized.
type Account struct {
	ID           int64         `json:"id"`
	Email        string        `json:"email"`
	PasswordHash string        `json:"-"`
	Status       AccountStatus `json:"status"`
	Role         Role          `json:"role"`
	Employee     *Employee     `json:"employee,omitempty"`
	LastLoginAt  *time.Time    `json:"last_login_at,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// IsActive reports whether the account may hold a session
func (a *Account) IsActive() bool {
	return a != nil && a.Status == StatusActive
}

// Principal is the resolved identity attached to an authenticated request
type Principal struct {
	AccountID int64         `json:"account_id"`
	Email     string        `json:"email"`
	Role      RoleName      `json:"role"`
	Status    AccountStatus `json:"status"`
}

// NewPrincipal builds a principal from an account row
func NewPrincipal(a *Account) *Principal {
	return &Principal{
		AccountID: a.ID,
		Email:     a.Email,
		Role:      a.Role.Name,
		Status:    a.Status,
	}
}

// Can reports whether the principal's role grants the capability
func (p *Principal) Can(c Capability) bool {
	return p != nil && p.Role.Can(c)
}
