package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/md-rashed-zaman/slotkeeper/services/scheduling-service/internal/model"
)

func (h *SchedulingHandler) ListWindows(w http.ResponseWriter, r *http.Request) {
	operatorID, ok := ownCalendar(w, r)
	if !ok {
		return
	}
	windows, err := h.svc.ListWindows(r.Context(), operatorID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	items := make([]windowItem, 0, len(windows))
	for _, win := range windows {
		items = append(items, toWindowItem(win))
	}
	writeJSON(w, http.StatusOK, map[string]any{"windows": items})
}

func (h *SchedulingHandler) CreateWindow(w http.ResponseWriter, r *http.Request) {
	operatorID, ok := ownCalendar(w, r)
	if !ok {
		return
	}
	win, ok := decodeWindow(w, r)
	if !ok {
		return
	}
	win.OperatorID = operatorID

	saved, err := h.svc.CreateWindow(r.Context(), win)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, toWindowItem(saved))
}

func (h *SchedulingHandler) UpdateWindow(w http.ResponseWriter, r *http.Request) {
	operatorID, ok := ownCalendar(w, r)
	if !ok {
		return
	}
	win, ok := decodeWindow(w, r)
	if !ok {
		return
	}
	win.OperatorID = operatorID
	win.ID = chi.URLParam(r, "windowID")

	saved, err := h.svc.UpdateWindow(r.Context(), win)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toWindowItem(saved))
}

func (h *SchedulingHandler) DeleteWindow(w http.ResponseWriter, r *http.Request) {
	operatorID, ok := ownCalendar(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteWindow(r.Context(), operatorID, chi.URLParam(r, "windowID")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SchedulingHandler) ListExceptions(w http.ResponseWriter, r *http.Request) {
	operatorID, ok := ownCalendar(w, r)
	if !ok {
		return
	}
	loc := h.svc.Location()
	from := model.StartOfDay(h.svc.Now(), loc)
	to := from.AddDate(0, 0, 30)

	var err error
	if raw := strings.TrimSpace(r.URL.Query().Get("from")); raw != "" {
		if from, err = model.ParseDate(raw, loc); err != nil {
			http.Error(w, "invalid from", http.StatusBadRequest)
			return
		}
		to = from.AddDate(0, 0, 30)
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("to")); raw != "" {
		if to, err = model.ParseDate(raw, loc); err != nil {
			http.Error(w, "invalid to", http.StatusBadRequest)
			return
		}
	}

	list, err := h.svc.ListExceptions(r.Context(), operatorID, from, to)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	items := make([]exceptionItem, 0, len(list))
	for _, e := range list {
		items = append(items, toExceptionItem(e))
	}
	writeJSON(w, http.StatusOK, map[string]any{"exceptions": items})
}

func (h *SchedulingHandler) PutException(w http.ResponseWriter, r *http.Request) {
	operatorID, ok := ownCalendar(w, r)
	if !ok {
		return
	}
	date, err := model.ParseDate(chi.URLParam(r, "date"), h.svc.Location())
	if err != nil {
		http.Error(w, "invalid date", http.StatusBadRequest)
		return
	}

	var req exceptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	e := model.ExceptionDay{
		OperatorID:  operatorID,
		Date:        date,
		IsAvailable: req.IsAvailable,
		Reason:      req.Reason,
	}
	if req.StartTime != "" || req.EndTime != "" {
		start, err1 := model.ParseClock(req.StartTime)
		end, err2 := model.ParseClock(req.EndTime)
		if err1 != nil || err2 != nil {
			http.Error(w, "start_time and end_time must both be HH:MM", http.StatusBadRequest)
			return
		}
		e.StartMinute, e.EndMinute = &start, &end
	}

	saved, err := h.svc.PutException(r.Context(), e)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toExceptionItem(saved))
}

func (h *SchedulingHandler) DeleteException(w http.ResponseWriter, r *http.Request) {
	operatorID, ok := ownCalendar(w, r)
	if !ok {
		return
	}
	date, err := model.ParseDate(chi.URLParam(r, "date"), h.svc.Location())
	if err != nil {
		http.Error(w, "invalid date", http.StatusBadRequest)
		return
	}
	if err := h.svc.DeleteException(r.Context(), operatorID, date); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func decodeWindow(w http.ResponseWriter, r *http.Request) (model.AvailabilityWindow, bool) {
	var req windowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return model.AvailabilityWindow{}, false
	}
	start, err1 := model.ParseClock(req.StartTime)
	end, err2 := model.ParseClock(req.EndTime)
	if err1 != nil || err2 != nil {
		http.Error(w, "start_time and end_time must be HH:MM", http.StatusBadRequest)
		return model.AvailabilityWindow{}, false
	}
	return model.AvailabilityWindow{
		DayOfWeek:   time.Weekday(req.DayOfWeek),
		StartMinute: start,
		EndMinute:   end,
	}, true
}
