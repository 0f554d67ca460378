package api

import (
	"errors"
	"net/http"

	engine "github.com/langboard/engine"
	"github.com/langboard/engine/id"
	"github.com/langboard/engine/scope"
	"github.com/langboard/engine/trigger"
)

type createScopeRequest struct {
	BotID       string   `json:"bot_id"`
	SubjectKind string   `json:"subject_kind"`
	SubjectID   string   `json:"subject_id"`
	ProjectID   string   `json:"project_id"`
	Conditions  []string `json:"conditions"`
}

type toggleConditionsRequest struct {
	Conditions []string `json:"conditions"`
}

func conditionsOf(names []string) []trigger.Condition {
	out := make([]trigger.Condition, len(names))
	for i, n := range names {
		out[i] = trigger.Condition(n)
	}
	return out
}

func (h *Handler) createScope(w http.ResponseWriter, r *http.Request) {
	var req createScopeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	botID, err := id.ParseBotID(req.BotID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid bot ID")
		return
	}
	subjectID, err := id.Parse(req.SubjectID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid subject ID")
		return
	}
	projectID, err := id.Parse(req.ProjectID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid project ID")
		return
	}

	s, createErr := h.engine.Scopes().Create(r.Context(), scope.Input{
		BotID:       botID,
		SubjectKind: trigger.SubjectKind(req.SubjectKind),
		SubjectID:   subjectID,
		ProjectID:   projectID,
		Conditions:  conditionsOf(req.Conditions),
	})
	if createErr != nil {
		writeError(w, http.StatusBadRequest, createErr.Error())
		return
	}

	writeJSON(w, http.StatusCreated, s)
}

func (h *Handler) listScopes(w http.ResponseWriter, r *http.Request) {
	projectID, err := id.Parse(queryParam(r, "project_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "project_id query parameter is required")
		return
	}

	opts := scope.ListOpts{
		Offset: queryInt(r, "offset", 0),
		Limit:  queryInt(r, "limit", 50),
	}
	if v := queryParam(r, "bot_id"); v != "" {
		botID, parseErr := id.ParseBotID(v)
		if parseErr != nil {
			writeError(w, http.StatusBadRequest, "invalid bot ID")
			return
		}
		opts.BotID = &botID
	}

	scopes, listErr := h.engine.Scopes().List(r.Context(), projectID, opts)
	if listErr != nil {
		writeError(w, http.StatusInternalServerError, listErr.Error())
		return
	}

	writeJSON(w, http.StatusOK, scopes)
}

func (h *Handler) getScope(w http.ResponseWriter, r *http.Request) {
	scopeID, err := id.ParseScopeID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid scope ID")
		return
	}

	s, getErr := h.engine.Scopes().Get(r.Context(), scopeID)
	if getErr != nil {
		if errors.Is(getErr, engine.ErrScopeNotFound) {
			writeError(w, http.StatusNotFound, "scope not found")
			return
		}
		writeError(w, http.StatusInternalServerError, getErr.Error())
		return
	}

	writeJSON(w, http.StatusOK, s)
}

func (h *Handler) toggleScopeConditions(w http.ResponseWriter, r *http.Request) {
	scopeID, err := id.ParseScopeID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid scope ID")
		return
	}

	var req toggleConditionsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s, toggleErr := h.engine.Scopes().ToggleConditions(r.Context(), scopeID, conditionsOf(req.Conditions))
	if toggleErr != nil {
		if errors.Is(toggleErr, engine.ErrScopeNotFound) {
			writeError(w, http.StatusNotFound, "scope not found")
			return
		}
		writeError(w, http.StatusBadRequest, toggleErr.Error())
		return
	}

	writeJSON(w, http.StatusOK, s)
}

func (h *Handler) deleteScope(w http.ResponseWriter, r *http.Request) {
	scopeID, err := id.ParseScopeID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid scope ID")
		return
	}

	if deleteErr := h.engine.Scopes().Delete(r.Context(), scopeID); deleteErr != nil {
		if errors.Is(deleteErr, engine.ErrScopeNotFound) {
			writeError(w, http.StatusNotFound, "scope not found")
			return
		}
		writeError(w, http.StatusInternalServerError, deleteErr.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
