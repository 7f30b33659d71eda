// Package handlers exposes the scheduling service over HTTP.
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/md-rashed-zaman/slotkeeper/libs/httpx"
	"github.com/md-rashed-zaman/slotkeeper/services/scheduling-service/internal/booking"
	"github.com/md-rashed-zaman/slotkeeper/services/scheduling-service/internal/model"
)

type SchedulingHandler struct {
	svc      *booking.Service
	logger   *slog.Logger
	identity httpx.Middleware
}

// NewSchedulingHandler serves svc. identity must attach a booking.Actor to
// the request context (HeaderIdentity or JWTIdentity).
func NewSchedulingHandler(svc *booking.Service, logger *slog.Logger, identity httpx.Middleware) *SchedulingHandler {
	if identity == nil {
		identity = HeaderIdentity()
	}
	return &SchedulingHandler{svc: svc, logger: logger, identity: identity}
}

func (h *SchedulingHandler) Routes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(h.identity)

		r.Get("/operators/{operatorID}/slots", h.Slots)

		r.Post("/appointments", h.CreateAppointment)
		r.Get("/appointments", h.ListAppointments)
		r.Get("/appointments/{appointmentID}", h.GetAppointment)
		r.Patch("/appointments/{appointmentID}/status", h.ChangeStatus)

		r.Group(func(r chi.Router) {
			r.Use(requireOperator)
			r.Get("/operators/{operatorID}/windows", h.ListWindows)
			r.Post("/operators/{operatorID}/windows", h.CreateWindow)
			r.Put("/operators/{operatorID}/windows/{windowID}", h.UpdateWindow)
			r.Delete("/operators/{operatorID}/windows/{windowID}", h.DeleteWindow)
			r.Get("/operators/{operatorID}/exceptions", h.ListExceptions)
			r.Put("/operators/{operatorID}/exceptions/{date}", h.PutException)
			r.Delete("/operators/{operatorID}/exceptions/{date}", h.DeleteException)
		})
	})
}

func (h *SchedulingHandler) Slots(w http.ResponseWriter, r *http.Request) {
	actor, _ := IdentityFrom(r.Context())
	operatorID := chi.URLParam(r, "operatorID")

	rawDate := strings.TrimSpace(r.URL.Query().Get("date"))
	if rawDate == "" {
		http.Error(w, "date required (YYYY-MM-DD)", http.StatusBadRequest)
		return
	}
	day, err := model.ParseDate(rawDate, h.svc.Location())
	if err != nil {
		http.Error(w, "invalid date", http.StatusBadRequest)
		return
	}

	slots, err := h.svc.GetAvailableSlots(r.Context(), operatorID, day, actor.Role)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	duration := h.svc.SlotDuration()
	items := make([]slotItem, 0, len(slots))
	for _, s := range slots {
		items = append(items, slotItem{
			StartTime: s.Format(time.RFC3339),
			EndTime:   s.Add(duration).Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, slotsResponse{
		OperatorID:  operatorID,
		Date:        model.DateKey(day),
		SlotMinutes: int(duration / time.Minute),
		Slots:       items,
	})
}

func (h *SchedulingHandler) CreateAppointment(w http.ResponseWriter, r *http.Request) {
	actor, _ := IdentityFrom(r.Context())

	var req createAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	start, err := time.Parse(time.RFC3339, strings.TrimSpace(req.StartTime))
	if err != nil {
		http.Error(w, "invalid start_time", http.StatusBadRequest)
		return
	}

	var appt model.Appointment
	switch actor.Role {
	case model.RoleClient:
		if strings.TrimSpace(req.Status) != "" || strings.TrimSpace(req.ClientID) != "" {
			http.Error(w, "status and client_id are set by the operator only", http.StatusBadRequest)
			return
		}
		appt, err = h.svc.CreateAppointment(r.Context(), actor.ID, req.OperatorID, start, req.Notes)
	case model.RoleOperator:
		operatorID := strings.TrimSpace(req.OperatorID)
		if operatorID == "" {
			operatorID = actor.ID
		}
		if operatorID != actor.ID {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		var status model.Status
		if raw := strings.TrimSpace(req.Status); raw != "" {
			if status, err = model.ParseStatus(raw); err != nil {
				http.Error(w, "invalid status", http.StatusBadRequest)
				return
			}
		}
		appt, err = h.svc.ScheduleAppointment(r.Context(), operatorID, req.ClientID, start, req.Notes, status)
	default:
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAppointmentItem(appt))
}

func (h *SchedulingHandler) GetAppointment(w http.ResponseWriter, r *http.Request) {
	actor, _ := IdentityFrom(r.Context())
	appt, err := h.svc.GetAppointment(r.Context(), chi.URLParam(r, "appointmentID"), actor)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentItem(appt))
}

func (h *SchedulingHandler) ListAppointments(w http.ResponseWriter, r *http.Request) {
	actor, _ := IdentityFrom(r.Context())
	q := r.URL.Query()

	f := booking.AppointmentFilter{OperatorID: strings.TrimSpace(q.Get("operator_id"))}
	var err error
	if raw := strings.TrimSpace(q.Get("from")); raw != "" {
		if f.From, err = time.Parse(time.RFC3339, raw); err != nil {
			http.Error(w, "invalid from", http.StatusBadRequest)
			return
		}
	}
	if raw := strings.TrimSpace(q.Get("to")); raw != "" {
		if f.To, err = time.Parse(time.RFC3339, raw); err != nil {
			http.Error(w, "invalid to", http.StatusBadRequest)
			return
		}
	}
	if raw := strings.TrimSpace(q.Get("status")); raw != "" {
		if f.Status, err = model.ParseStatus(raw); err != nil {
			http.Error(w, "invalid status", http.StatusBadRequest)
			return
		}
	}

	appts, err := h.svc.ListAppointments(r.Context(), actor, f)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	items := make([]appointmentItem, 0, len(appts))
	for _, a := range appts {
		items = append(items, toAppointmentItem(a))
	}
	writeJSON(w, http.StatusOK, map[string]any{"appointments": items})
}

func (h *SchedulingHandler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	actor, _ := IdentityFrom(r.Context())

	var req changeStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	target, err := model.ParseStatus(req.Status)
	if err != nil {
		http.Error(w, "invalid status", http.StatusBadRequest)
		return
	}

	appt, err := h.svc.ChangeAppointmentStatus(r.Context(), chi.URLParam(r, "appointmentID"), actor, target)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentItem(appt))
}

// ownCalendar returns the path operator id when it belongs to the caller.
func ownCalendar(w http.ResponseWriter, r *http.Request) (string, bool) {
	actor, _ := IdentityFrom(r.Context())
	operatorID := chi.URLParam(r, "operatorID")
	if operatorID != actor.ID {
		http.Error(w, "forbidden", http.StatusForbidden)
		return "", false
	}
	return operatorID, true
}
