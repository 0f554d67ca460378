package api

import (
	"errors"
	"net/http"

	engine "github.com/langboard/engine"
	"github.com/langboard/engine/id"
	"github.com/langboard/engine/webhook"
)

type webhookSettingRequest struct {
	URL string `json:"url"`
}

// webhookSettingResponse carries the signing secret, which is otherwise
// never serialised. Returned only on create and rotate.
type webhookSettingResponse struct {
	*webhook.Setting
	Secret string `json:"secret"`
}

func (h *Handler) createWebhookSetting(w http.ResponseWriter, r *http.Request) {
	var req webhookSettingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s, createErr := h.engine.Webhooks().Create(r.Context(), req.URL)
	if createErr != nil {
		writeError(w, http.StatusBadRequest, createErr.Error())
		return
	}

	writeJSON(w, http.StatusCreated, webhookSettingResponse{Setting: s, Secret: s.Secret})
}

func (h *Handler) listWebhookSettings(w http.ResponseWriter, r *http.Request) {
	opts := webhook.ListOpts{
		Offset: queryInt(r, "offset", 0),
		Limit:  queryInt(r, "limit", 50),
	}

	settings, listErr := h.engine.Webhooks().List(r.Context(), opts)
	if listErr != nil {
		writeError(w, http.StatusInternalServerError, listErr.Error())
		return
	}

	writeJSON(w, http.StatusOK, settings)
}

func (h *Handler) updateWebhookSetting(w http.ResponseWriter, r *http.Request) {
	settingID, err := id.ParseWebhookID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid webhook setting ID")
		return
	}

	var req webhookSettingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s, updateErr := h.engine.Webhooks().UpdateURL(r.Context(), settingID, req.URL)
	if updateErr != nil {
		if errors.Is(updateErr, engine.ErrWebhookNotFound) {
			writeError(w, http.StatusNotFound, "webhook setting not found")
			return
		}
		writeError(w, http.StatusBadRequest, updateErr.Error())
		return
	}

	writeJSON(w, http.StatusOK, s)
}

func (h *Handler) rotateWebhookSecret(w http.ResponseWriter, r *http.Request) {
	settingID, err := id.ParseWebhookID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid webhook setting ID")
		return
	}

	s, rotateErr := h.engine.Webhooks().RotateSecret(r.Context(), settingID)
	if rotateErr != nil {
		if errors.Is(rotateErr, engine.ErrWebhookNotFound) {
			writeError(w, http.StatusNotFound, "webhook setting not found")
			return
		}
		writeError(w, http.StatusInternalServerError, rotateErr.Error())
		return
	}

	writeJSON(w, http.StatusOK, webhookSettingResponse{Setting: s, Secret: s.Secret})
}

func (h *Handler) deleteWebhookSetting(w http.ResponseWriter, r *http.Request) {
	settingID, err := id.ParseWebhookID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid webhook setting ID")
		return
	}

	if deleteErr := h.engine.Webhooks().Delete(r.Context(), settingID); deleteErr != nil {
		if errors.Is(deleteErr, engine.ErrWebhookNotFound) {
			writeError(w, http.StatusNotFound, "webhook setting not found")
			return
		}
		writeError(w, http.StatusInternalServerError, deleteErr.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) webhookSchema(w http.ResponseWriter, r *http.Request) {
	doc, err := webhook.BuildOpenAPI("Langboard Webhooks", "1.0")
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(doc) //nolint:errcheck // best effort
}
