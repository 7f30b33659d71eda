package model

import "time"

type Appointment struct {
	ID         string
	ClientID   string
	OperatorID string
	StartTime  time.Time
	EndTime    time.Time
	Status     Status
	Notes      string
	// Version increments on every status change.
	Version   int
	CreatedAt time.Time
	UpdatedAt time.Time
}
