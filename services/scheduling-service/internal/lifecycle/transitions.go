// Package lifecycle holds the appointment status state machine.
package lifecycle

import (
	"errors"
	"fmt"

	"github.com/md-rashed-zaman/slotkeeper/services/scheduling-service/internal/model"
)

var ErrInvalidTransition = errors.New("invalid status transition")

// CanTransition reports whether role may move an appointment from one status
// to another. Clients may only cancel pending appointments; operators may
// confirm, cancel or complete anything not yet terminal.
func CanTransition(role model.Role, from, to model.Status) bool {
	switch role {
	case model.RoleClient:
		return from == model.StatusPending && to == model.StatusCancelled
	case model.RoleOperator:
		switch from {
		case model.StatusPending:
			return to == model.StatusConfirmed || to == model.StatusCancelled || to == model.StatusCompleted
		case model.StatusConfirmed:
			return to == model.StatusCancelled || to == model.StatusCompleted
		}
	}
	return false
}

// Allowed lists the targets role may choose from the given status.
func Allowed(role model.Role, from model.Status) []model.Status {
	var out []model.Status
	for _, to := range []model.Status{model.StatusPending, model.StatusConfirmed, model.StatusCancelled, model.StatusCompleted} {
		if CanTransition(role, from, to) {
			out = append(out, to)
		}
	}
	return out
}

// Apply returns appt with its status set to target. Nothing else changes.
func Apply(appt model.Appointment, role model.Role, target model.Status) (model.Appointment, error) {
	if !CanTransition(role, appt.Status, target) {
		return appt, fmt.Errorf("%w: %s cannot move %s to %s", ErrInvalidTransition, role, appt.Status, target)
	}
	appt.Status = target
	return appt, nil
}
