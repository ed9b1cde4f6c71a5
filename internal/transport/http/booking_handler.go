package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/skillpath/scheduling/internal/model"
	"github.com/skillpath/scheduling/internal/service"
)

type BookingHandler struct {
	engine *service.BookingEngine
	logger *zap.Logger
}

func NewBookingHandler(engine *service.BookingEngine, logger *zap.Logger) *BookingHandler {
	return &BookingHandler{engine: engine, logger: logger}
}

func (h *BookingHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/bookings", h.CreateBooking).Methods(http.MethodPost)
	router.HandleFunc("/bookings/{id}", h.GetBooking).Methods(http.MethodGet)
	router.HandleFunc("/bookings/bilan/{bilanId}", h.ListByBilan).Methods(http.MethodGet)
	router.HandleFunc("/bookings/beneficiary/{beneficiaryId}", h.ListByBeneficiary).Methods(http.MethodGet)
	router.HandleFunc("/bookings/consultant/{consultantId}", h.ListByConsultant).Methods(http.MethodGet)
	router.HandleFunc("/bookings/{id}/confirm", h.ConfirmBooking).Methods(http.MethodPut)
	router.HandleFunc("/bookings/{id}/complete", h.CompleteBooking).Methods(http.MethodPut)
	router.HandleFunc("/bookings/{id}/cancel", h.CancelBooking).Methods(http.MethodPut)
}

type createBookingRequest struct {
	BilanID            string          `json:"bilan_id"`
	ConsultantID       string          `json:"consultant_id"`
	BeneficiaryID      string          `json:"beneficiary_id"`
	AvailabilitySlotID string          `json:"availability_slot_id"`
	ScheduledDate      string          `json:"scheduled_date"`
	StartTime          model.TimeOfDay `json:"scheduled_start_time"`
	EndTime            model.TimeOfDay `json:"scheduled_end_time"`
	SessionType        string          `json:"session_type"`
	MeetingFormat      string          `json:"meeting_format"`
	MeetingLocation    string          `json:"meeting_location"`
	MeetingLink        string          `json:"meeting_link"`
	Notes              string          `json:"notes"`
}

func (h *BookingHandler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req createBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, &model.ValidationError{Field: "body", Reason: "is not valid JSON"})
		return
	}

	engineReq := &service.CreateBookingRequest{
		StartTime:       req.StartTime,
		EndTime:         req.EndTime,
		SessionType:     model.SessionType(req.SessionType),
		MeetingFormat:   model.MeetingFormat(req.MeetingFormat),
		MeetingLocation: req.MeetingLocation,
		MeetingLink:     req.MeetingLink,
		Notes:           req.Notes,
	}

	var err error
	if engineReq.BilanID, err = parseUUIDField(req.BilanID, "bilan_id"); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if engineReq.ConsultantID, err = parseUUIDField(req.ConsultantID, "consultant_id"); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if engineReq.BeneficiaryID, err = parseUUIDField(req.BeneficiaryID, "beneficiary_id"); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if engineReq.AvailabilitySlotID, err = parseUUIDField(req.AvailabilitySlotID, "availability_slot_id"); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if engineReq.ScheduledDate, err = model.ParseDate(req.ScheduledDate); err != nil {
		writeError(w, h.logger, &model.ValidationError{Field: "scheduled_date", Reason: "must be a YYYY-MM-DD date"})
		return
	}

	booking, err := h.engine.CreateBooking(r.Context(), actorFrom(r), engineReq)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, booking)
}

func (h *BookingHandler) GetBooking(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	booking, err := h.engine.Get(r.Context(), actorFrom(r), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (h *BookingHandler) ConfirmBooking(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	booking, err := h.engine.Confirm(r.Context(), actorFrom(r), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

type completeBookingRequest struct {
	Attended bool   `json:"attended"`
	Rating   *int   `json:"rating"`
	Feedback string `json:"feedback"`
}

func (h *BookingHandler) CompleteBooking(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var req completeBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, &model.ValidationError{Field: "body", Reason: "is not valid JSON"})
		return
	}

	booking, err := h.engine.Complete(r.Context(), actorFrom(r), id, req.Attended, req.Rating, req.Feedback)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

type cancelBookingRequest struct {
	Reason string `json:"reason"`
}

func (h *BookingHandler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var req cancelBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, &model.ValidationError{Field: "body", Reason: "is not valid JSON"})
		return
	}

	booking, err := h.engine.Cancel(r.Context(), actorFrom(r), id, req.Reason)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (h *BookingHandler) ListByBilan(w http.ResponseWriter, r *http.Request) {
	h.listScoped(w, r, "bilanId", h.engine.ListByBilan)
}

func (h *BookingHandler) ListByBeneficiary(w http.ResponseWriter, r *http.Request) {
	h.listScoped(w, r, "beneficiaryId", h.engine.ListByBeneficiary)
}

func (h *BookingHandler) ListByConsultant(w http.ResponseWriter, r *http.Request) {
	h.listScoped(w, r, "consultantId", h.engine.ListByConsultant)
}

type listFunc func(ctx context.Context, actor model.Actor, id uuid.UUID, filter service.BookingFilter) ([]*model.SessionBooking, int64, error)

func (h *BookingHandler) listScoped(w http.ResponseWriter, r *http.Request, pathVar string, list listFunc) {
	id, err := pathUUID(r, pathVar)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	filter, err := bookingFilterFromQuery(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	bookings, total, err := list(r.Context(), actorFrom(r), id, filter)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeList(w, bookings, total)
}

func bookingFilterFromQuery(r *http.Request) (service.BookingFilter, error) {
	var filter service.BookingFilter
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := model.BookingStatus(raw)
		filter.Status = &status
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

func parseUUIDField(raw, field string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, &model.ValidationError{Field: field, Reason: "must be a UUID"}
	}
	return id, nil
}
