package hub

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/aquamarinepk/aqm"
	"github.com/aquamarinepk/aqm/telemetry"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/venueops/opssync/internal/ticket"
	"github.com/venueops/opssync/pkg/enums/deliverystatus"
)

const MaxBodyBytes = 1 << 20

type Handler struct {
	service *Service
	logger  aqm.Logger
	config  *aqm.Config
	tlm     *telemetry.HTTP
}

func NewHandler(service *Service, config *aqm.Config, logger aqm.Logger) *Handler {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	return &Handler{
		service: service,
		logger:  logger,
		config:  config,
		tlm:     telemetry.NewHTTP(),
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/snapshot", h.GetSnapshot)
	r.Get("/snapshot/{locationID}", h.GetScopedSnapshot)
	r.Route("/deliveries", func(r chi.Router) {
		r.Get("/", h.ListDeliveries)
		r.Post("/", h.CreateDelivery)
		r.Get("/{id}", h.GetDelivery)
		r.Patch("/{id}/advance", h.AdvanceDelivery)
	})
	r.Route("/emergencies", func(r chi.Router) {
		r.Get("/", h.ListEmergencies)
		r.Post("/", h.CreateEmergency)
		r.Get("/{id}", h.GetEmergency)
		r.Patch("/{id}/acknowledge", h.AcknowledgeEmergency)
		r.Patch("/{id}/resolve", h.ResolveEmergency)
	})
}

func (h *Handler) log(r *http.Request) aqm.Logger {
	return h.logger.With("request_id", aqm.RequestIDFrom(r.Context()))
}

func (h *Handler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.GetSnapshot")
	defer finish()
	log := h.log(r)

	snap, err := h.service.Snapshot(r.Context(), nil)
	if err != nil {
		log.Errorf("cannot build snapshot: %v", err)
		respondTaxonomyError(w, err)
		return
	}

	aqm.Respond(w, http.StatusOK, snap, nil)
}

func (h *Handler) GetScopedSnapshot(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.GetScopedSnapshot")
	defer finish()
	log := h.log(r)

	locationID, err := uuid.Parse(chi.URLParam(r, "locationID"))
	if err != nil {
		aqm.RespondError(w, http.StatusBadRequest, "Invalid location ID")
		return
	}

	snap, err := h.service.Snapshot(r.Context(), &locationID)
	if err != nil {
		log.Errorf("cannot build scoped snapshot: %v", err)
		respondTaxonomyError(w, err)
		return
	}

	aqm.Respond(w, http.StatusOK, snap, nil)
}

func (h *Handler) ListDeliveries(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ListDeliveries")
	defer finish()
	log := h.log(r)
	ctx := r.Context()

	filter := ticket.DeliveryFilter{}

	if standIDStr := r.URL.Query().Get("stand"); standIDStr != "" {
		standID, err := uuid.Parse(standIDStr)
		if err != nil {
			aqm.RespondError(w, http.StatusBadRequest, "Invalid stand ID")
			return
		}
		filter.StandID = &standID
	}

	if status := r.URL.Query().Get("status"); status != "" {
		if deliverystatus.ByName(status) == nil {
			aqm.RespondError(w, http.StatusBadRequest, "Unknown delivery status")
			return
		}
		filter.Status = &status
	}

	deliveries, err := h.service.deliveries.List(ctx, filter)
	if err != nil {
		log.Errorf("cannot list deliveries: %v", err)
		aqm.RespondError(w, http.StatusInternalServerError, "Could not list deliveries")
		return
	}

	aqm.Respond(w, http.StatusOK, map[string]interface{}{
		"deliveries": deliveries,
	}, nil)
}

func (h *Handler) GetDelivery(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.GetDelivery")
	defer finish()
	log := h.log(r)

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		aqm.RespondError(w, http.StatusBadRequest, "Invalid delivery ID")
		return
	}

	d, err := h.service.deliveries.FindByID(r.Context(), id)
	if err != nil {
		log.Errorf("cannot find delivery: %v", err)
		respondTaxonomyError(w, err)
		return
	}

	aqm.Respond(w, http.StatusOK, d, nil)
}

type createDeliveryRequest struct {
	StandID     string `json:"stand_id"`
	RequesterID string `json:"requester_id"`
	Department  string `json:"department"`
	Priority    string `json:"priority,omitempty"`
	Description string `json:"description,omitempty"`
}

func (h *Handler) CreateDelivery(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.CreateDelivery")
	defer finish()
	log := h.log(r)

	var req createDeliveryRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	standID, err := uuid.Parse(req.StandID)
	if err != nil {
		aqm.RespondError(w, http.StatusBadRequest, "Invalid stand ID")
		return
	}
	requesterID, err := uuid.Parse(req.RequesterID)
	if err != nil {
		aqm.RespondError(w, http.StatusBadRequest, "Invalid requester ID")
		return
	}

	d, err := h.service.CreateDelivery(r.Context(), CreateDeliveryInput{
		StandID:     standID,
		RequesterID: requesterID,
		Department:  req.Department,
		Priority:    ticket.Priority(req.Priority),
		Description: req.Description,
	})
	if err != nil {
		log.Errorf("cannot create delivery: %v", err)
		respondTaxonomyError(w, err)
		return
	}

	aqm.Respond(w, http.StatusCreated, d, nil)
}

type advanceDeliveryRequest struct {
	NextStatus string `json:"next_status"`
	ActorID    string `json:"actor_id"`
	ETAMinutes *int   `json:"eta_minutes,omitempty"`
}

func (h *Handler) AdvanceDelivery(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.AdvanceDelivery")
	defer finish()
	log := h.log(r)

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		aqm.RespondError(w, http.StatusBadRequest, "Invalid delivery ID")
		return
	}

	var req advanceDeliveryRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	next := deliverystatus.ByName(req.NextStatus)
	if next == nil {
		aqm.RespondError(w, http.StatusBadRequest, "Unknown delivery status")
		return
	}
	actorID, err := uuid.Parse(req.ActorID)
	if err != nil {
		aqm.RespondError(w, http.StatusBadRequest, "Invalid actor ID")
		return
	}

	d, err := h.service.AdvanceDelivery(r.Context(), id, *next, actorID, req.ETAMinutes)
	if err != nil {
		log.Infof("advance delivery rejected: %v", err)
		respondTaxonomyError(w, err)
		return
	}

	aqm.Respond(w, http.StatusOK, d, nil)
}

func (h *Handler) ListEmergencies(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ListEmergencies")
	defer finish()
	log := h.log(r)

	filter := ticket.EmergencyFilter{
		ActiveOnly: r.URL.Query().Get("active") == "true",
	}

	alerts, err := h.service.emergencies.List(r.Context(), filter)
	if err != nil {
		log.Errorf("cannot list emergencies: %v", err)
		aqm.RespondError(w, http.StatusInternalServerError, "Could not list emergencies")
		return
	}

	aqm.Respond(w, http.StatusOK, map[string]interface{}{
		"emergencies": alerts,
	}, nil)
}

func (h *Handler) GetEmergency(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.GetEmergency")
	defer finish()
	log := h.log(r)

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		aqm.RespondError(w, http.StatusBadRequest, "Invalid alert ID")
		return
	}

	a, err := h.service.emergencies.FindByID(r.Context(), id)
	if err != nil {
		log.Errorf("cannot find emergency: %v", err)
		respondTaxonomyError(w, err)
		return
	}

	aqm.Respond(w, http.StatusOK, a, nil)
}

type createEmergencyRequest struct {
	AlertType   string `json:"alert_type"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	StandID     string `json:"stand_id,omitempty"`
	ReporterID  string `json:"reporter_id"`
}

func (h *Handler) CreateEmergency(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.CreateEmergency")
	defer finish()
	log := h.log(r)

	var req createEmergencyRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	reporterID, err := uuid.Parse(req.ReporterID)
	if err != nil {
		aqm.RespondError(w, http.StatusBadRequest, "Invalid reporter ID")
		return
	}

	var standID *uuid.UUID
	if req.StandID != "" {
		id, err := uuid.Parse(req.StandID)
		if err != nil {
			aqm.RespondError(w, http.StatusBadRequest, "Invalid stand ID")
			return
		}
		standID = &id
	}

	a, err := h.service.CreateEmergency(r.Context(), CreateEmergencyInput{
		AlertType:   req.AlertType,
		Title:       req.Title,
		Description: req.Description,
		StandID:     standID,
		ReporterID:  reporterID,
	})
	if err != nil {
		log.Errorf("cannot create emergency: %v", err)
		respondTaxonomyError(w, err)
		return
	}

	aqm.Respond(w, http.StatusCreated, a, nil)
}

type actorRequest struct {
	ActorID string `json:"actor_id"`
}

func (h *Handler) AcknowledgeEmergency(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.AcknowledgeEmergency")
	defer finish()
	log := h.log(r)

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		aqm.RespondError(w, http.StatusBadRequest, "Invalid alert ID")
		return
	}

	var req actorRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	actorID, err := uuid.Parse(req.ActorID)
	if err != nil {
		aqm.RespondError(w, http.StatusBadRequest, "Invalid actor ID")
		return
	}

	a, err := h.service.AcknowledgeEmergency(r.Context(), id, actorID)
	if err != nil {
		log.Infof("acknowledge emergency rejected: %v", err)
		respondTaxonomyError(w, err)
		return
	}

	aqm.Respond(w, http.StatusOK, a, nil)
}

type resolveRequest struct {
	ActorID string `json:"actor_id"`
	Notes   string `json:"notes,omitempty"`
}

func (h *Handler) ResolveEmergency(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ResolveEmergency")
	defer finish()
	log := h.log(r)

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		aqm.RespondError(w, http.StatusBadRequest, "Invalid alert ID")
		return
	}

	var req resolveRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	actorID, err := uuid.Parse(req.ActorID)
	if err != nil {
		aqm.RespondError(w, http.StatusBadRequest, "Invalid actor ID")
		return
	}

	a, err := h.service.ResolveEmergency(r.Context(), id, actorID, req.Notes)
	if err != nil {
		log.Infof("resolve emergency rejected: %v", err)
		respondTaxonomyError(w, err)
		return
	}

	aqm.Respond(w, http.StatusOK, a, nil)
}

func (h *Handler) decodeBody(w http.ResponseWriter, r *http.Request, out interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		aqm.RespondError(w, http.StatusBadRequest, "Could not read request body")
		return false
	}
	if err := json.Unmarshal(body, out); err != nil {
		aqm.RespondError(w, http.StatusBadRequest, "Invalid JSON payload")
		return false
	}
	return true
}

// respondTaxonomyError carries the wire code in the error envelope so
// consoles can map the rejection back onto the same sentinel they would
// have produced locally.
func respondTaxonomyError(w http.ResponseWriter, err error) {
	code := ticket.ErrCode(err)
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, ticket.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ticket.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, ticket.ErrInvalidTransition),
		errors.Is(err, ticket.ErrAlreadyAcknowledged),
		errors.Is(err, ticket.ErrNotAcknowledged):
		status = http.StatusConflict
	case errors.Is(err, ticket.ErrMalformedMessage):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, ticket.ErrUnavailable):
		status = http.StatusServiceUnavailable
	}

	if code == "" {
		code = "internal"
	}
	aqm.RespondError(w, status, code)
}
