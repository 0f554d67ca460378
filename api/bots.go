package api

import (
	"errors"
	"net/http"

	engine "github.com/langboard/engine"
	"github.com/langboard/engine/bot"
	"github.com/langboard/engine/id"
)

type botRequest struct {
	ProjectID   string `json:"project_id"`
	Name        string `json:"name"`
	Platform    string `json:"platform"`
	RunningType string `json:"running_type"`
	Prompt      string `json:"prompt,omitempty"`
	APIURL      string `json:"api_url,omitempty"`
	APIKey      string `json:"api_key,omitempty"`
	Value       string `json:"value,omitempty"`
	AllowAllIPs bool   `json:"allow_all_ips,omitempty"`
	RateLimit   int    `json:"rate_limit,omitempty"`
}

func (req botRequest) input(projectID id.ID) bot.Input {
	return bot.Input{
		ProjectID:   projectID,
		Name:        req.Name,
		Platform:    bot.Platform(req.Platform),
		RunningType: bot.RunningType(req.RunningType),
		Prompt:      req.Prompt,
		APIURL:      req.APIURL,
		APIKey:      req.APIKey,
		Value:       req.Value,
		AllowAllIPs: req.AllowAllIPs,
		RateLimit:   req.RateLimit,
	}
}

func (h *Handler) createBot(w http.ResponseWriter, r *http.Request) {
	var req botRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	projectID, err := id.Parse(req.ProjectID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid project ID")
		return
	}

	b, createErr := h.engine.Bots().Create(r.Context(), req.input(projectID))
	if createErr != nil {
		writeError(w, http.StatusBadRequest, createErr.Error())
		return
	}

	writeJSON(w, http.StatusCreated, b)
}

func (h *Handler) listBots(w http.ResponseWriter, r *http.Request) {
	projectID, err := id.Parse(queryParam(r, "project_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "project_id query parameter is required")
		return
	}

	opts := bot.ListOpts{
		Offset: queryInt(r, "offset", 0),
		Limit:  queryInt(r, "limit", 50),
	}

	bots, listErr := h.engine.Bots().List(r.Context(), projectID, opts)
	if listErr != nil {
		writeError(w, http.StatusInternalServerError, listErr.Error())
		return
	}

	writeJSON(w, http.StatusOK, bots)
}

func (h *Handler) getBot(w http.ResponseWriter, r *http.Request) {
	botID, err := id.ParseBotID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid bot ID")
		return
	}

	b, getErr := h.engine.Bots().Get(r.Context(), botID)
	if getErr != nil {
		if errors.Is(getErr, engine.ErrBotNotFound) {
			writeError(w, http.StatusNotFound, "bot not found")
			return
		}
		writeError(w, http.StatusInternalServerError, getErr.Error())
		return
	}

	writeJSON(w, http.StatusOK, b)
}

func (h *Handler) updateBot(w http.ResponseWriter, r *http.Request) {
	botID, err := id.ParseBotID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid bot ID")
		return
	}

	var req botRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	b, updateErr := h.engine.Bots().Update(r.Context(), botID, req.input(id.Nil))
	if updateErr != nil {
		if errors.Is(updateErr, engine.ErrBotNotFound) {
			writeError(w, http.StatusNotFound, "bot not found")
			return
		}
		writeError(w, http.StatusBadRequest, updateErr.Error())
		return
	}

	writeJSON(w, http.StatusOK, b)
}

func (h *Handler) deleteBot(w http.ResponseWriter, r *http.Request) {
	botID, err := id.ParseBotID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid bot ID")
		return
	}

	if deleteErr := h.engine.Bots().Delete(r.Context(), botID); deleteErr != nil {
		if errors.Is(deleteErr, engine.ErrBotNotFound) {
			writeError(w, http.StatusNotFound, "bot not found")
			return
		}
		writeError(w, http.StatusInternalServerError, deleteErr.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) enableBot(w http.ResponseWriter, r *http.Request) {
	h.setBotEnabled(w, r, true)
}

func (h *Handler) disableBot(w http.ResponseWriter, r *http.Request) {
	h.setBotEnabled(w, r, false)
}

func (h *Handler) setBotEnabled(w http.ResponseWriter, r *http.Request, enabled bool) {
	botID, err := id.ParseBotID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid bot ID")
		return
	}

	if setErr := h.engine.Bots().SetEnabled(r.Context(), botID, enabled); setErr != nil {
		if errors.Is(setErr, engine.ErrBotNotFound) {
			writeError(w, http.StatusNotFound, "bot not found")
			return
		}
		writeError(w, http.StatusInternalServerError, setErr.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listBotLogs(w http.ResponseWriter, r *http.Request) {
	botID, err := id.ParseBotID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid bot ID")
		return
	}

	opts := bot.LogListOpts{
		Offset: queryInt(r, "offset", 0),
		Limit:  queryInt(r, "limit", 50),
	}
	if v := queryParam(r, "type"); v != "" {
		lt := bot.LogType(v)
		opts.Type = &lt
	}

	logs, listErr := h.engine.Bots().Logs(r.Context(), botID, opts)
	if listErr != nil {
		writeError(w, http.StatusInternalServerError, listErr.Error())
		return
	}

	writeJSON(w, http.StatusOK, logs)
}
