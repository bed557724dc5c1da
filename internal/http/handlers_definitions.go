package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"rata/internal/core"
	"rata/internal/services"
)

type definitionPayload struct {
	Owner       string `json:"owner"`
	Kind        string `json:"kind"`
	Name        string `json:"name"`
	Amount      string `json:"amount"`
	Category    string `json:"category"`
	Frequency   string `json:"frequency"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
	IsActive    *bool  `json:"is_active"`
	AutoExecute *bool  `json:"auto_execute"`
}

type definitionUpdatePayload struct {
	Kind        *string `json:"kind"`
	Name        *string `json:"name"`
	Amount      *string `json:"amount"`
	Category    *string `json:"category"`
	Frequency   *string `json:"frequency"`
	StartDate   *string `json:"start_date"`
	EndDate     *string `json:"end_date"`
	IsActive    *bool   `json:"is_active"`
	AutoExecute *bool   `json:"auto_execute"`
}

type definitionResponse struct {
	ID               int64     `json:"id"`
	Owner            string    `json:"owner"`
	Kind             string    `json:"kind"`
	Name             string    `json:"name"`
	AmountCents      int64     `json:"amount_cents"`
	Amount           string    `json:"amount"`
	Category         string    `json:"category"`
	Frequency        string    `json:"frequency"`
	StartDate        string    `json:"start_date"`
	EndDate          string    `json:"end_date,omitempty"`
	NextOccurrence   string    `json:"next_occurrence"`
	IsActive         bool      `json:"is_active"`
	AutoExecute      bool      `json:"auto_execute"`
	LastExecutedDate string    `json:"last_executed_date,omitempty"`
	Version          int64     `json:"version"`
	CreatedAt        time.Time `json:"created_at"`
}

type entryResponse struct {
	ID           int64  `json:"id"`
	Kind         string `json:"kind"`
	AmountCents  int64  `json:"amount_cents"`
	Amount       string `json:"amount"`
	Category     string `json:"category"`
	Description  string `json:"description"`
	Date         string `json:"date"`
	DefinitionID int64  `json:"definition_id"`
}

func toDefinitionResponse(d core.Definition) definitionResponse {
	return definitionResponse{
		ID:               d.ID,
		Owner:            d.Owner,
		Kind:             string(d.Kind),
		Name:             d.Name,
		AmountCents:      d.Amount.Cents,
		Amount:           core.FormatCents(d.Amount.Cents),
		Category:         d.Category,
		Frequency:        string(d.Frequency),
		StartDate:        d.StartDate.String(),
		EndDate:          d.EndDate.String(),
		NextOccurrence:   d.NextOccurrence.String(),
		IsActive:         d.IsActive,
		AutoExecute:      d.AutoExecute,
		LastExecutedDate: d.LastExecutedDate.String(),
		Version:          d.Version,
		CreatedAt:        d.CreatedAt,
	}
}

func toDefinitionResponses(defs []core.Definition) []definitionResponse {
	out := make([]definitionResponse, len(defs))
	for i, d := range defs {
		out[i] = toDefinitionResponse(d)
	}
	return out
}

func (s *Server) handleDefinitions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listDefinitions(w, r)
	case http.MethodPost:
		s.createDefinition(w, r)
	case http.MethodPut:
		s.updateDefinition(w, r)
	case http.MethodDelete:
		s.deleteDefinition(w, r)
	default:
		w.Header().Set("Allow", "GET, POST, PUT, DELETE")
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) listDefinitions(w http.ResponseWriter, r *http.Request) {
	defs, err := s.definitions.List(r.Context(), s.ownerOrDefault(r))
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to list definitions", "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDefinitionResponses(defs))
}

func (s *Server) createDefinition(w http.ResponseWriter, r *http.Request) {
	var payload definitionPayload
	if err := decodeJSON(r, &payload); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	cents, err := core.ParseDecimalToCents(payload.Amount)
	if err != nil {
		writeError(w, err)
		return
	}

	startDate, err := core.ParseDate(payload.StartDate)
	if err != nil {
		writeError(w, fmt.Errorf("start date: %w", err))
		return
	}

	var endDate core.Date
	if payload.EndDate != "" {
		endDate, err = core.ParseDate(payload.EndDate)
		if err != nil {
			writeError(w, fmt.Errorf("end date: %w", err))
			return
		}
	}

	owner := sanitizeInput(payload.Owner)
	if owner == "" {
		owner = s.defaultOwner
	}

	d := core.Definition{
		Owner:       owner,
		Kind:        core.Kind(payload.Kind),
		Name:        sanitizeInput(payload.Name),
		Amount:      core.Money{Cents: cents},
		Category:    sanitizeInput(payload.Category),
		Frequency:   core.Frequency(payload.Frequency),
		StartDate:   startDate,
		EndDate:     endDate,
		IsActive:    true,
		AutoExecute: true,
	}
	if payload.IsActive != nil {
		d.IsActive = *payload.IsActive
	}
	if payload.AutoExecute != nil {
		d.AutoExecute = *payload.AutoExecute
	}

	created, err := s.definitions.Create(r.Context(), d)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to create definition", "error", err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toDefinitionResponse(created))
}

func (s *Server) updateDefinition(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	var payload definitionUpdatePayload
	if err := decodeJSON(r, &payload); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	upd, err := payload.toUpdate()
	if err != nil {
		writeError(w, err)
		return
	}

	updated, err := s.definitions.Update(r.Context(), id, upd)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to update definition", "error", err, "id", id)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toDefinitionResponse(updated))
}

func (p definitionUpdatePayload) toUpdate() (services.DefinitionUpdate, error) {
	var upd services.DefinitionUpdate

	if p.Kind != nil {
		kind := core.Kind(*p.Kind)
		upd.Kind = &kind
	}
	if p.Name != nil {
		name := sanitizeInput(*p.Name)
		upd.Name = &name
	}
	if p.Amount != nil {
		cents, err := core.ParseDecimalToCents(*p.Amount)
		if err != nil {
			return services.DefinitionUpdate{}, err
		}
		upd.Amount = &core.Money{Cents: cents}
	}
	if p.Category != nil {
		category := sanitizeInput(*p.Category)
		upd.Category = &category
	}
	if p.Frequency != nil {
		frequency := core.Frequency(*p.Frequency)
		upd.Frequency = &frequency
	}
	if p.StartDate != nil {
		start, err := core.ParseDate(*p.StartDate)
		if err != nil {
			return services.DefinitionUpdate{}, fmt.Errorf("start date: %w", err)
		}
		upd.StartDate = &start
	}
	if p.EndDate != nil {
		// Empty string clears the end date.
		end := core.Date{}
		if *p.EndDate != "" {
			var err error
			end, err = core.ParseDate(*p.EndDate)
			if err != nil {
				return services.DefinitionUpdate{}, fmt.Errorf("end date: %w", err)
			}
		}
		upd.EndDate = &end
	}
	upd.IsActive = p.IsActive
	upd.AutoExecute = p.AutoExecute

	return upd, nil
}

func (s *Server) deleteDefinition(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	if err := s.definitions.Delete(r.Context(), id); err != nil {
		slog.ErrorContext(r.Context(), "Failed to delete definition", "error", err, "id", id)
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleToggleDefinition(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	id, err := parseID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	toggled, err := s.definitions.ToggleActive(r.Context(), id)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to toggle definition", "error", err, "id", id)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toDefinitionResponse(toggled))
}

func (s *Server) handleExecuteDefinition(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	id, err := parseID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	entry, err := s.executor.Execute(r.Context(), id)
	if err != nil {
		slog.ErrorContext(r.Context(), "Manual execution failed", "error", err, "id", id)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, entryResponse{
		ID:           entry.ID,
		Kind:         string(entry.Kind),
		AmountCents:  entry.Amount.Cents,
		Amount:       core.FormatCents(entry.Amount.Cents),
		Category:     entry.Category,
		Description:  entry.Description,
		Date:         entry.Date.String(),
		DefinitionID: entry.DefinitionID,
	})
}

func (s *Server) handleUpcomingDefinitions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	defs, err := s.definitions.ListUpcoming(r.Context(), s.ownerOrDefault(r), parseWithinDays(r))
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to list upcoming definitions", "error", err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toDefinitionResponses(defs))
}
