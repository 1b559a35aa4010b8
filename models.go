package accounts

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// AccountStatus is the lifecycle state of an account
type AccountStatus string

const (
	StatusUnverified AccountStatus = "unverified"
	StatusActive     AccountStatus = "active"
	StatusLocked     AccountStatus = "locked"
	StatusDeleted    AccountStatus = "deleted"
)

// IsValid checks the status against the known lifecycle states
func (s AccountStatus) IsValid() bool {
	switch s {
	case StatusUnverified, StatusActive, StatusLocked, StatusDeleted:
		return true
	default:
		return false
	}
}

// Account is the account model
type Account struct {
	bun.BaseModel               `bun:"table:accounts,alias:acc"`
	ID                          uuid.UUID     `bun:"id,pk,nullzero,type:uuid" json:"id"`
	Email                       string        `bun:"email,notnull,unique" json:"email"`
	PasswordHash                string        `bun:"password_hash,notnull" json:"-"`
	Nickname                    string        `bun:"nickname,unique" json:"nickname,omitempty"`
	FirstName                   string        `bun:"first_name" json:"first_name,omitempty"`
	LastName                    string        `bun:"last_name" json:"last_name,omitempty"`
	Bio                         string        `bun:"bio" json:"bio,omitempty"`
	ProfilePictureURL           string        `bun:"profile_picture_url" json:"profile_picture_url,omitempty"`
	LinkedInProfileURL          string        `bun:"linkedin_profile_url" json:"linkedin_profile_url,omitempty"`
	GitHubProfileURL            string        `bun:"github_profile_url" json:"github_profile_url,omitempty"`
	Role                        UserRole      `bun:"role,notnull" json:"role"`
	IsProfessional              bool          `bun:"is_professional,notnull" json:"is_professional"`
	ProfessionalStatusUpdatedAt *time.Time    `bun:"professional_status_updated_at,nullzero" json:"professional_status_updated_at,omitempty"`
	Status                      AccountStatus `bun:"status,notnull" json:"status"`
	EmailVerified               bool          `bun:"email_verified,notnull" json:"email_verified"`
	FailedLoginAttempts         int           `bun:"failed_login_attempts,notnull" json:"failed_login_attempts"`
	LockedAt                    *time.Time    `bun:"locked_at,nullzero" json:"locked_at,omitempty"`
	LastLoginAt                 *time.Time    `bun:"last_login_at,nullzero" json:"last_login_at,omitempty"`
	CreatedAt                   *time.Time    `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt                   *time.Time    `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// EnsureStatus normalizes an empty status to the initial state
func (a *Account) EnsureStatus() {
	if a == nil {
		return
	}
	if a.Status == "" {
		a.Status = StatusUnverified
	}
}

func (a *Account) IsActive() bool {
	return a != nil && a.Status == StatusActive
}

func (a *Account) IsLocked() bool {
	return a != nil && a.Status == StatusLocked
}

func (a *Account) IsUnverified() bool {
	return a != nil && a.Status == StatusUnverified
}

func (a *Account) IsDeleted() bool {
	return a != nil && a.Status == StatusDeleted
}

// LockCooldownElapsed reports whether a locked account may retry at now
func (a *Account) LockCooldownElapsed(now time.Time, cooldown time.Duration) bool {
	if a == nil || !a.IsLocked() {
		return false
	}
	if a.LockedAt == nil {
		return true
	}
	return !now.Before(a.LockedAt.Add(cooldown))
}

// NewAccount builds an unverified account, rejecting roles outside the
// enumeration
func NewAccount(email, passwordHash string, role UserRole) (*Account, error) {
	if role == "" {
		role = RoleAnonymous
	}
	if !role.IsValid() {
		return nil, invalidRoleError()
	}
	return &Account{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: passwordHash,
		Role:         role,
		Status:       StatusUnverified,
	}, nil
}
