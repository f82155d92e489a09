package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/elecmate/winback-service/internal/campaign"
	"github.com/elecmate/winback-service/internal/logger"
)

const maxStackLen = 2048

// WinbackHandler handles the campaign action endpoint.
type WinbackHandler struct {
	service  CampaignService
	validate *validator.Validate
	log      *logger.Logger
}

// NewWinbackHandler creates a new WinbackHandler.
func NewWinbackHandler(service CampaignService) *WinbackHandler {
	return &WinbackHandler{
		service:  service,
		validate: validator.New(),
		log:      logger.Get(),
	}
}

// actionRequest is the single-endpoint request body. The action field selects
// the operation; the remaining fields are action-specific.
type actionRequest struct {
	Action        string   `json:"action" validate:"required,oneof=get_eligible get_stats send_single send_bulk get_sent_history send_test send_manual reset_sent"`
	UserID        string   `json:"userId,omitempty" validate:"omitempty,uuid"`
	UserIDs       []string `json:"userIds,omitempty" validate:"omitempty,dive,uuid"`
	TestEmail     string   `json:"testEmail,omitempty" validate:"omitempty,email"`
	ManualEmail   string   `json:"manualEmail,omitempty" validate:"omitempty,email"`
	RecipientName string   `json:"recipientName,omitempty"`
	EmailVersion  string   `json:"email_version,omitempty" validate:"omitempty,oneof=v1 v2 v3"`
}

// Dispatch executes one administrative campaign action to completion.
// POST /api/v1/winback
func (h *WinbackHandler) Dispatch(w http.ResponseWriter, r *http.Request) {
	var req actionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, fmt.Errorf("invalid request payload: %w", err))
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		h.writeError(w, err)
		return
	}

	version, err := campaign.ParseVersion(req.EmailVersion)
	if err != nil {
		h.writeError(w, err)
		return
	}

	admin, _ := AdminFromContext(r.Context())
	ctx := r.Context()

	switch req.Action {
	case "get_eligible":
		users, err := h.service.GetEligible(ctx)
		if err != nil {
			h.writeError(w, err)
			return
		}
		h.writeJSON(w, map[string]any{"users": users, "count": len(users)})

	case "get_stats":
		stats, err := h.service.GetStats(ctx)
		if err != nil {
			h.writeError(w, err)
			return
		}
		h.writeJSON(w, stats)

	case "send_single":
		userID, err := uuid.Parse(req.UserID)
		if err != nil || req.UserID == "" {
			h.writeError(w, errors.New("userId is required"))
			return
		}
		result, err := h.service.SendSingle(ctx, userID, version, admin.ID)
		if err != nil {
			h.writeError(w, err)
			return
		}
		h.writeJSON(w, map[string]any{"success": true, "email": result.Email, "message_id": result.MessageID})

	case "send_bulk":
		if len(req.UserIDs) == 0 {
			h.writeError(w, errors.New("userIds is required"))
			return
		}
		ids := make([]uuid.UUID, 0, len(req.UserIDs))
		for _, raw := range req.UserIDs {
			id, err := uuid.Parse(raw)
			if err != nil {
				h.writeError(w, fmt.Errorf("invalid user id: %q", raw))
				return
			}
			ids = append(ids, id)
		}
		result, err := h.service.SendBulk(ctx, ids, version, admin.ID)
		if err != nil {
			h.writeError(w, err)
			return
		}
		h.writeJSON(w, result)

	case "send_test":
		if req.TestEmail == "" {
			h.writeError(w, errors.New("testEmail is required"))
			return
		}
		result, err := h.service.SendTest(ctx, req.TestEmail, req.RecipientName, version)
		if err != nil {
			h.writeError(w, err)
			return
		}
		h.writeJSON(w, map[string]any{"success": true, "email": result.Email, "message_id": result.MessageID})

	case "send_manual":
		if req.ManualEmail == "" {
			h.writeError(w, errors.New("manualEmail is required"))
			return
		}
		result, err := h.service.SendManual(ctx, req.ManualEmail, req.RecipientName, version, admin.ID)
		if err != nil {
			h.writeError(w, err)
			return
		}
		h.writeJSON(w, map[string]any{"success": true, "email": result.Email, "message_id": result.MessageID})

	case "reset_sent":
		count, err := h.service.ResetSent(ctx)
		if err != nil {
			h.writeError(w, err)
			return
		}
		h.writeJSON(w, map[string]any{"success": true, "reset": count})

	case "get_sent_history":
		history, err := h.service.History(ctx)
		if err != nil {
			h.writeError(w, err)
			return
		}
		h.writeJSON(w, map[string]any{"history": history, "count": len(history)})

	default:
		// unreachable: the validator rejects unknown actions
		h.writeError(w, fmt.Errorf("unknown action: %s", req.Action))
	}
}

func (h *WinbackHandler) writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		_ = err // Client disconnected
	}
}

// writeError returns the single top-level error body every failed action
// produces, with a truncated stack for operator debugging.
func (h *WinbackHandler) writeError(w http.ResponseWriter, err error) {
	stack := string(debug.Stack())
	if len(stack) > maxStackLen {
		stack = stack[:maxStackLen]
	}

	h.log.Error().Err(err).Msg("winback action failed")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	if encErr := json.NewEncoder(w).Encode(map[string]string{
		"error": err.Error(),
		"stack": stack,
	}); encErr != nil {
		_ = encErr // Client disconnected
	}
}
