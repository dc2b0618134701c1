// Package domain provides defenitions of all entities.
package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrGroupNotFound indicates that the group is not found.
	ErrGroupNotFound = errors.New("group not found")
	// ErrGroupDeleted indicates that the group is deleted and can't be changed.
	ErrGroupDeleted = errors.New("group is deleted")
	// ErrGroupNotDeleted indicates a recovery attempt on a live group.
	ErrGroupNotDeleted = errors.New("group is not deleted")
	// ErrRecoveryExpired indicates that the recovery deadline has passed.
	ErrRecoveryExpired = errors.New("group recovery window has expired")
	// ErrInviteCodeNotFound indicates that no group uses the invite code.
	ErrInviteCodeNotFound = errors.New("invite code not found")
	// ErrInviteCodeTaken indicates an invite code collision.
	ErrInviteCodeTaken = errors.New("invite code already exists")
	// ErrMemberNotFound indicates that the member is not found in the group.
	ErrMemberNotFound = errors.New("member not found")
	// ErrMemberLeft indicates that the member has left the group.
	ErrMemberLeft = errors.New("member has left the group")
)

// Member roles.
const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// Group holds expense sharing group data.
type Group struct {
	ID           uuid.UUID  `json:"id"`
	Name         string     `json:"name"`
	Currency     string     `json:"currency"`
	InviteCode   string     `json:"invite_code"`
	CreatedAt    time.Time  `json:"created_at"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty"`
	RecoverUntil *time.Time `json:"recover_until,omitempty"`
}

// IsDeleted reports whether the group is soft-deleted.
func (g Group) IsDeleted() bool {
	return g.DeletedAt != nil
}

// CanRecover reports whether a deleted group can still be recovered at now.
func (g Group) CanRecover(now time.Time) bool {
	return g.DeletedAt != nil && g.RecoverUntil != nil && !now.After(*g.RecoverUntil)
}

// Member holds group membership data. Members are never hard-deleted while
// expenses reference them; leaving sets LeftAt.
type Member struct {
	ID          uuid.UUID  `json:"id"`
	GroupID     uuid.UUID  `json:"group_id"`
	DisplayName string     `json:"display_name"`
	Role        string     `json:"role"`
	JoinedAt    time.Time  `json:"joined_at"`
	LeftAt      *time.Time `json:"left_at,omitempty"`
}

// Active reports whether the member is still in the group.
func (m Member) Active() bool {
	return m.LeftAt == nil
}

// CreateGroupParams is the input data to create a group together with its first admin.
type CreateGroupParams struct {
	ID         uuid.UUID
	Name       string
	Currency   string
	InviteCode string
	AdminID    uuid.UUID
	AdminName  string
}

// CreateMemberParams is the input data to add a member to a group.
type CreateMemberParams struct {
	ID          uuid.UUID
	GroupID     uuid.UUID
	DisplayName string
	Role        string
}
