// Package authz is the pure permission table. It holds no storage; callers
// pass in the actor's role and, where relevant, volunteer group.
package authz

import (
	"fmt"

	"festival-bot/internal/models"
)

type Action int

const (
	ActionViewOwnStatus Action = iota
	ActionViewMap
	ActionViewEvent
	ActionToggleCondition
	ActionSearchParticipants
	ActionViewLeaderboard
	ActionManageVolunteers
)

// Can decides whether the role may perform the action at all. Group scoping
// for condition toggles is resolved separately by ConditionFor.
func Can(role models.Role, action Action) error {
	allowed := false
	switch action {
	case ActionViewEvent:
		allowed = true
	case ActionViewOwnStatus, ActionViewMap:
		// Volunteers and organizers have no personal contest progress.
		allowed = role == models.RoleParticipant
	case ActionToggleCondition, ActionSearchParticipants:
		allowed = role == models.RoleVolunteer || role == models.RoleOrganizer
	case ActionViewLeaderboard, ActionManageVolunteers:
		allowed = role == models.RoleOrganizer
	}
	if !allowed {
		return models.ErrPermissionDenied
	}
	return nil
}

// ConditionFor resolves which condition a toggle targets. A volunteer is
// bound to the condition of their assigned group; an organizer has no
// personal group and must name one explicitly.
func ConditionFor(role models.Role, ownGroup models.Group, hasOwnGroup bool, explicit models.Group, hasExplicit bool) (models.Condition, error) {
	switch role {
	case models.RoleVolunteer:
		if !hasOwnGroup {
			return 0, models.ErrGroupNotAssigned
		}
		return models.GroupToCondition[ownGroup], nil
	case models.RoleOrganizer:
		if !hasExplicit {
			return 0, fmt.Errorf("%w: требуется группа", models.ErrInvalidArgument)
		}
		cond, ok := models.GroupToCondition[explicit]
		if !ok {
			return 0, fmt.Errorf("%w: неизвестная группа %q", models.ErrInvalidArgument, explicit)
		}
		return cond, nil
	}
	return 0, models.ErrPermissionDenied
}
