package booking

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/md-rashed-zaman/slotkeeper/services/scheduling-service/internal/model"
)

func (s *Service) ListWindows(ctx context.Context, operatorID string) ([]model.AvailabilityWindow, error) {
	var out []model.AvailabilityWindow
	err := s.store.View(ctx, func(tx Tx) error {
		list, err := tx.ListWindows(ctx, operatorID)
		out = list
		return err
	})
	return out, err
}

// CreateWindow validates and stores a new recurring window. Invalid windows
// are rejected with model.ErrInvalidWindow and never persisted.
func (s *Service) CreateWindow(ctx context.Context, w model.AvailabilityWindow) (model.AvailabilityWindow, error) {
	w.OperatorID = strings.TrimSpace(w.OperatorID)
	if err := w.Validate(); err != nil {
		return model.AvailabilityWindow{}, err
	}
	now := s.now()
	w.ID = uuid.NewString()
	w.CreatedAt, w.UpdatedAt = now, now

	if err := s.update(ctx, "create_window", func(tx Tx) error {
		return tx.InsertWindow(ctx, w)
	}); err != nil {
		return model.AvailabilityWindow{}, err
	}
	s.invalidate(ctx, w.OperatorID)
	s.logger.Info("availability window created",
		"operator_id", w.OperatorID,
		"window_id", w.ID,
		"weekday", w.DayOfWeek.String(),
		"start", model.FormatClock(w.StartMinute),
		"end", model.FormatClock(w.EndMinute),
	)
	return w, nil
}

func (s *Service) UpdateWindow(ctx context.Context, w model.AvailabilityWindow) (model.AvailabilityWindow, error) {
	w.OperatorID = strings.TrimSpace(w.OperatorID)
	if w.ID == "" {
		return model.AvailabilityWindow{}, fmt.Errorf("%w: window id is required", ErrInvalidRequest)
	}
	if err := w.Validate(); err != nil {
		return model.AvailabilityWindow{}, err
	}

	var saved model.AvailabilityWindow
	err := s.update(ctx, "update_window", func(tx Tx) error {
		current, err := tx.GetWindow(ctx, w.OperatorID, w.ID)
		if err != nil {
			return err
		}
		next := w
		next.CreatedAt = current.CreatedAt
		next.UpdatedAt = s.now()
		if err := tx.UpdateWindow(ctx, next); err != nil {
			return err
		}
		saved = next
		return nil
	})
	if err != nil {
		return model.AvailabilityWindow{}, err
	}
	s.invalidate(ctx, w.OperatorID)
	s.logger.Info("availability window updated", "operator_id", w.OperatorID, "window_id", w.ID)
	return saved, nil
}

func (s *Service) DeleteWindow(ctx context.Context, operatorID, windowID string) error {
	if err := s.update(ctx, "delete_window", func(tx Tx) error {
		return tx.DeleteWindow(ctx, operatorID, windowID)
	}); err != nil {
		return err
	}
	s.invalidate(ctx, operatorID)
	s.logger.Info("availability window deleted", "operator_id", operatorID, "window_id", windowID)
	return nil
}

// ListExceptions returns exceptions dated on or after from and before to.
func (s *Service) ListExceptions(ctx context.Context, operatorID string, from, to time.Time) ([]model.ExceptionDay, error) {
	from, to = model.StartOfDay(from, s.loc), model.StartOfDay(to, s.loc)
	if !from.Before(to) {
		return nil, fmt.Errorf("%w: from must be before to", ErrInvalidRequest)
	}
	var out []model.ExceptionDay
	err := s.store.View(ctx, func(tx Tx) error {
		list, err := tx.ListExceptions(ctx, operatorID, from, to)
		out = list
		return err
	})
	return out, err
}

// PutException creates or replaces the exception for e's date. Dates before
// the operator's current day are frozen.
func (s *Service) PutException(ctx context.Context, e model.ExceptionDay) (model.ExceptionDay, error) {
	e.OperatorID = strings.TrimSpace(e.OperatorID)
	e.Reason = strings.TrimSpace(e.Reason)
	if !e.Date.IsZero() {
		e.Date = model.StartOfDay(e.Date, s.loc)
	}
	if err := e.Validate(); err != nil {
		return model.ExceptionDay{}, err
	}
	now := s.now()
	if e.Date.Before(model.StartOfDay(now, s.loc)) {
		return model.ExceptionDay{}, fmt.Errorf("%w: %s", ErrExceptionLocked, model.DateKey(e.Date))
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	e.CreatedAt, e.UpdatedAt = now, now

	var saved model.ExceptionDay
	err := s.update(ctx, "put_exception", func(tx Tx) error {
		stored, err := tx.UpsertException(ctx, e)
		saved = stored
		return err
	})
	if err != nil {
		return model.ExceptionDay{}, err
	}
	s.invalidate(ctx, e.OperatorID)
	s.logger.Info("exception day saved",
		"operator_id", e.OperatorID,
		"date", model.DateKey(e.Date),
		"is_available", e.IsAvailable,
	)
	return saved, nil
}

func (s *Service) DeleteException(ctx context.Context, operatorID string, date time.Time) error {
	date = model.StartOfDay(date, s.loc)
	if date.Before(model.StartOfDay(s.now(), s.loc)) {
		return fmt.Errorf("%w: %s", ErrExceptionLocked, model.DateKey(date))
	}
	if err := s.update(ctx, "delete_exception", func(tx Tx) error {
		return tx.DeleteException(ctx, operatorID, date)
	}); err != nil {
		return err
	}
	s.invalidate(ctx, operatorID)
	s.logger.Info("exception day deleted", "operator_id", operatorID, "date", model.DateKey(date))
	return nil
}
