package services

import (
	"context"
	"fmt"
	"sort"

	"alert-service/internal/models"
)

// Resolver computes who must be notified about an entity's alerts: every
// staff user plus every user scoped to the entity.
type Resolver struct {
	users UserDirectory
}

func NewResolver(users UserDirectory) *Resolver {
	return &Resolver{users: users}
}

// ResolveRecipients returns the recipients keyed by user ID. When a user shows
// up in both sources the first descriptor seen (staff) is kept.
func (r *Resolver) ResolveRecipients(ctx context.Context, entityID int64) (map[int64]models.Recipient, error) {
	staff, err := r.users.FindStaffUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load staff users: %w", err)
	}
	scoped, err := r.users.FindUsersByEntity(ctx, entityID)
	if err != nil {
		return nil, fmt.Errorf("failed to load users of entity %d: %w", entityID, err)
	}

	out := make(map[int64]models.Recipient, len(staff)+len(scoped))
	for _, list := range [][]models.Recipient{staff, scoped} {
		for _, u := range list {
			if _, seen := out[u.ID]; !seen {
				out[u.ID] = u
			}
		}
	}
	return out, nil
}

// sortedIDs returns the recipient IDs in ascending order.
func sortedIDs(recipients map[int64]models.Recipient) []int64 {
	ids := make([]int64, 0, len(recipients))
	for id := range recipients {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
