package helpers

import (
	"time"

	"github.com/google/uuid"

	"github.com/go-petr/splitfx/internal/domain"
	"github.com/go-petr/splitfx/pkg/randompkg"
)

// RandomGroup returns a random live group.
func RandomGroup() domain.Group {
	return domain.Group{
		ID:         uuid.New(),
		Name:       randompkg.Name(),
		Currency:   randompkg.Currency(),
		InviteCode: randompkg.InviteCode(),
		CreatedAt:  time.Now().Truncate(time.Second).UTC(),
	}
}

// RandomMember returns a random active member of the group.
func RandomMember(groupID uuid.UUID, role string) domain.Member {
	return domain.Member{
		ID:          uuid.New(),
		GroupID:     groupID,
		DisplayName: randompkg.Name(),
		Role:        role,
		JoinedAt:    time.Now().Truncate(time.Second).UTC(),
	}
}
