package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/skillpath/scheduling/internal/model"
	"github.com/skillpath/scheduling/internal/service"
)

type AvailabilityHandler struct {
	availability *service.AvailabilityService
	resolver     *service.SlotResolver
	logger       *zap.Logger
}

func NewAvailabilityHandler(availability *service.AvailabilityService, resolver *service.SlotResolver, logger *zap.Logger) *AvailabilityHandler {
	return &AvailabilityHandler{
		availability: availability,
		resolver:     resolver,
		logger:       logger,
	}
}

func (h *AvailabilityHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/consultants/{consultantId}/availability", h.CreateSlot).Methods(http.MethodPost)
	router.HandleFunc("/consultants/{consultantId}/availability", h.ListSlots).Methods(http.MethodGet)
	router.HandleFunc("/consultants/{consultantId}/availability/{id}", h.GetSlot).Methods(http.MethodGet)
	router.HandleFunc("/consultants/{consultantId}/availability/{id}", h.UpdateSlot).Methods(http.MethodPut)
	router.HandleFunc("/consultants/{consultantId}/availability/{id}", h.DeleteSlot).Methods(http.MethodDelete)
	router.HandleFunc("/consultants/{consultantId}/resolved-slots", h.ResolveSlots).Methods(http.MethodGet)
}

// slotRequest is the wire form of an availability slot; dates travel as
// YYYY-MM-DD strings and wall-clock times as HH:MM.
type slotRequest struct {
	DayOfWeek             *int            `json:"day_of_week"`
	DateSpecific          *string         `json:"date_specific"`
	StartTime             model.TimeOfDay `json:"start_time"`
	EndTime               model.TimeOfDay `json:"end_time"`
	Timezone              string          `json:"timezone"`
	DurationMinutes       int             `json:"duration_minutes"`
	MaxConcurrentBookings int             `json:"max_concurrent_bookings"`
	IsRecurring           bool            `json:"is_recurring"`
	RecurringUntil        *string         `json:"recurring_until"`
	IsAvailable           *bool           `json:"is_available"`
}

func (req *slotRequest) toModel(consultantID uuid.UUID) (*model.AvailabilitySlot, error) {
	slot := &model.AvailabilitySlot{
		ConsultantID:          consultantID,
		DayOfWeek:             req.DayOfWeek,
		StartTime:             req.StartTime,
		EndTime:               req.EndTime,
		Timezone:              req.Timezone,
		DurationMinutes:       req.DurationMinutes,
		MaxConcurrentBookings: req.MaxConcurrentBookings,
		IsRecurring:           req.IsRecurring,
		IsAvailable:           true,
	}
	if req.IsAvailable != nil {
		slot.IsAvailable = *req.IsAvailable
	}
	if req.DateSpecific != nil {
		date, err := model.ParseDate(*req.DateSpecific)
		if err != nil {
			return nil, &model.ValidationError{Field: "date_specific", Reason: "must be a YYYY-MM-DD date"}
		}
		slot.DateSpecific = &date
	}
	if req.RecurringUntil != nil {
		until, err := model.ParseDate(*req.RecurringUntil)
		if err != nil {
			return nil, &model.ValidationError{Field: "recurring_until", Reason: "must be a YYYY-MM-DD date"}
		}
		slot.RecurringUntil = &until
	}
	return slot, nil
}

func (h *AvailabilityHandler) CreateSlot(w http.ResponseWriter, r *http.Request) {
	consultantID, err := pathUUID(r, "consultantId")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var req slotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, &model.ValidationError{Field: "body", Reason: "is not valid JSON"})
		return
	}

	slot, err := req.toModel(consultantID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	created, err := h.availability.Create(r.Context(), actorFrom(r), slot)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *AvailabilityHandler) GetSlot(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	slot, err := h.availability.Get(r.Context(), actorFrom(r), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, slot)
}

func (h *AvailabilityHandler) ListSlots(w http.ResponseWriter, r *http.Request) {
	consultantID, err := pathUUID(r, "consultantId")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	filter, err := slotFilterFromQuery(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	slots, total, err := h.availability.List(r.Context(), actorFrom(r), consultantID, filter)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeList(w, slots, total)
}

func (h *AvailabilityHandler) UpdateSlot(w http.ResponseWriter, r *http.Request) {
	consultantID, err := pathUUID(r, "consultantId")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var req slotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, &model.ValidationError{Field: "body", Reason: "is not valid JSON"})
		return
	}

	patch, err := req.toModel(consultantID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	updated, err := h.availability.Update(r.Context(), actorFrom(r), id, patch)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *AvailabilityHandler) DeleteSlot(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	if err := h.availability.Delete(r.Context(), actorFrom(r), id); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "availability slot deleted"})
}

func (h *AvailabilityHandler) ResolveSlots(w http.ResponseWriter, r *http.Request) {
	consultantID, err := pathUUID(r, "consultantId")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	from, err := requiredDate(r, "date_from")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	to, err := requiredDate(r, "date_to")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	instances, err := h.resolver.Resolve(r.Context(), actorFrom(r).OrganizationID, consultantID, from, to)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeList(w, instances, int64(len(instances)))
}

func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(mux.Vars(r)[name])
	if err != nil {
		return uuid.Nil, &model.ValidationError{Field: name, Reason: "must be a UUID"}
	}
	return id, nil
}

func requiredDate(r *http.Request, name string) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, &model.ValidationError{Field: name, Reason: "is required"}
	}
	date, err := model.ParseDate(raw)
	if err != nil {
		return time.Time{}, &model.ValidationError{Field: name, Reason: "must be a YYYY-MM-DD date"}
	}
	return date, nil
}

func optionalDate(r *http.Request, name string) (*time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	date, err := model.ParseDate(raw)
	if err != nil {
		return nil, &model.ValidationError{Field: name, Reason: "must be a YYYY-MM-DD date"}
	}
	return &date, nil
}

func slotFilterFromQuery(r *http.Request) (service.SlotFilter, error) {
	var filter service.SlotFilter
	if raw := r.URL.Query().Get("day_of_week"); raw != "" {
		day, err := strconv.Atoi(raw)
		if err != nil {
			return filter, &model.ValidationError{Field: "day_of_week", Reason: "must be an integer"}
		}
		filter.DayOfWeek = &day
	}
	var err error
	if filter.DateFrom, err = optionalDate(r, "date_from"); err != nil {
		return filter, err
	}
	if filter.DateTo, err = optionalDate(r, "date_to"); err != nil {
		return filter, err
	}
	filter.Limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	filter.Offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	return filter, nil
}
