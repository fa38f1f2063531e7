package console

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/aquamarinepk/aqm"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/venueops/opssync/internal/ticket"
	"github.com/venueops/opssync/pkg/enums/deliverystatus"
)

const MaxBodyBytes = 1 << 20

// Handler exposes one session's read view and command surface to local
// dashboard renderers. Rendering itself happens elsewhere; this is the thin
// HTTP skin over the session.
type Handler struct {
	session *Session
	logger  aqm.Logger
}

func NewHandler(session *Session, logger aqm.Logger) *Handler {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	return &Handler{
		session: session,
		logger:  logger,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/view", h.GetView)
	r.Get("/summary", h.GetSummary)
	r.Get("/activity", h.GetActivity)
	r.Post("/refresh", h.Refresh)
	r.Route("/deliveries", func(r chi.Router) {
		r.Patch("/{id}/acknowledge", h.AcknowledgeDelivery)
		r.Patch("/{id}/advance", h.AdvanceDelivery)
	})
	r.Route("/emergencies", func(r chi.Router) {
		r.Patch("/{id}/acknowledge", h.AcknowledgeEmergency)
		r.Patch("/{id}/resolve", h.ResolveEmergency)
	})
}

func (h *Handler) log(r *http.Request) aqm.Logger {
	return h.logger.With("request_id", aqm.RequestIDFrom(r.Context()))
}

func (h *Handler) GetView(w http.ResponseWriter, r *http.Request) {
	aqm.Respond(w, http.StatusOK, h.session.Store().View(), nil)
}

func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	aqm.Respond(w, http.StatusOK, h.session.Store().Summary(), nil)
}

func (h *Handler) GetActivity(w http.ResponseWriter, r *http.Request) {
	aqm.Respond(w, http.StatusOK, map[string]interface{}{
		"recent_activity": h.session.Store().RecentActivity(),
	}, nil)
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.session.Refresh(r.Context()); err != nil {
		h.log(r).Errorf("cannot refresh snapshot: %v", err)
		respondCommandError(w, err)
		return
	}
	aqm.Respond(w, http.StatusOK, h.session.Store().Summary(), nil)
}

type advanceRequest struct {
	NextStatus string `json:"next_status"`
	ActorID    string `json:"actor_id"`
	ETAMinutes *int   `json:"eta_minutes,omitempty"`
}

func (h *Handler) AcknowledgeDelivery(w http.ResponseWriter, r *http.Request) {
	log := h.log(r)

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		aqm.RespondError(w, http.StatusBadRequest, "Invalid delivery ID")
		return
	}

	var req actorPayload
	if !decodeBody(w, r, &req) {
		return
	}
	actorID, err := uuid.Parse(req.ActorID)
	if err != nil {
		aqm.RespondError(w, http.StatusBadRequest, "Invalid actor ID")
		return
	}

	if err := h.session.Commands().AcknowledgeDelivery(r.Context(), id, actorID); err != nil {
		log.Infof("acknowledge delivery rejected: %v", err)
		respondCommandError(w, err)
		return
	}

	// Accepted, not applied: the view updates when the confirming upsert
	// arrives through the live channel.
	aqm.Respond(w, http.StatusAccepted, map[string]interface{}{"id": id}, nil)
}

func (h *Handler) AdvanceDelivery(w http.ResponseWriter, r *http.Request) {
	log := h.log(r)

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		aqm.RespondError(w, http.StatusBadRequest, "Invalid delivery ID")
		return
	}

	var req advanceRequest
	if !decodeBody(w, r, &req) {
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

	if err := h.session.Commands().AdvanceDeliveryStatus(r.Context(), id, *next, actorID, req.ETAMinutes); err != nil {
		log.Infof("advance delivery rejected: %v", err)
		respondCommandError(w, err)
		return
	}

	aqm.Respond(w, http.StatusAccepted, map[string]interface{}{"id": id}, nil)
}

func (h *Handler) AcknowledgeEmergency(w http.ResponseWriter, r *http.Request) {
	log := h.log(r)

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		aqm.RespondError(w, http.StatusBadRequest, "Invalid alert ID")
		return
	}

	var req actorPayload
	if !decodeBody(w, r, &req) {
		return
	}
	actorID, err := uuid.Parse(req.ActorID)
	if err != nil {
		aqm.RespondError(w, http.StatusBadRequest, "Invalid actor ID")
		return
	}

	if err := h.session.Commands().AcknowledgeEmergency(r.Context(), id, actorID); err != nil {
		log.Infof("acknowledge emergency rejected: %v", err)
		respondCommandError(w, err)
		return
	}

	aqm.Respond(w, http.StatusAccepted, map[string]interface{}{"id": id}, nil)
}

func (h *Handler) ResolveEmergency(w http.ResponseWriter, r *http.Request) {
	log := h.log(r)

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		aqm.RespondError(w, http.StatusBadRequest, "Invalid alert ID")
		return
	}

	var req resolvePayload
	if !decodeBody(w, r, &req) {
		return
	}
	actorID, err := uuid.Parse(req.ActorID)
	if err != nil {
		aqm.RespondError(w, http.StatusBadRequest, "Invalid actor ID")
		return
	}

	if err := h.session.Commands().ResolveEmergency(r.Context(), id, actorID, req.Notes); err != nil {
		log.Infof("resolve emergency rejected: %v", err)
		respondCommandError(w, err)
		return
	}

	aqm.Respond(w, http.StatusAccepted, map[string]interface{}{"id": id}, nil)
}

func decodeBody(w http.ResponseWriter, r *http.Request, out interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		aqm.RespondError(w, http.StatusBadRequest, "Could not read request body")
		return false
	}
	if err := json.Unmarshal(body, out); err != nil {
		aqm.RespondError(w, http.StatusBadRequest, "Could not parse request body")
		return false
	}
	return true
}

// respondCommandError relays a taxonomy error with its wire code so remote
// callers can re-map it, mirroring the hub's own envelope.
func respondCommandError(w http.ResponseWriter, err error) {
	code := ticket.ErrCode(err)
	status := http.StatusBadGateway

	switch {
	case errors.Is(err, ticket.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ticket.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, ticket.ErrInvalidTransition),
		errors.Is(err, ticket.ErrAlreadyAcknowledged),
		errors.Is(err, ticket.ErrNotAcknowledged):
		status = http.StatusConflict
	case errors.Is(err, ticket.ErrUnavailable):
		status = http.StatusServiceUnavailable
	}

	if code == "" {
		code = "internal"
	}
	aqm.RespondError(w, status, code)
}
