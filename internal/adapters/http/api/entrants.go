package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/okian/arena/internal/domain/model"
	"github.com/okian/arena/pkg/logger"
)

// entrantRequest mirrors the OpenAPI schema for POST /entrants.
type entrantRequest struct {
	Name   string  `json:"name"`
	Weight int     `json:"weight"`
	Height int     `json:"height"`
	Reach  float64 `json:"reach"`
	Age    int     `json:"age"`
}

func (s *Server) handleAddEntrant(w http.ResponseWriter, r *http.Request) {
	const op = "api.add_entrant"
	var req entrantRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeFailure(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	e, err := s.deps.AddEntrant(r.Context(), model.Attributes{
		Name:   req.Name,
		Weight: req.Weight,
		Height: req.Height,
		Reach:  req.Reach,
		Age:    req.Age,
	})
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	s.log.Info(r.Context(), "entrant added", logger.Int64("id", e.ID), logger.String("name", e.Name))
	writeJSON(w, http.StatusCreated, toEntrantResponse(e))
}

func (s *Server) handleListEntrants(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_entrants"
	includeDeleted, err := boolParam(r, "include_deleted")
	if err != nil {
		writeFailure(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	list, err := s.deps.ListEntrants(r.Context(), includeDeleted)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	out := make([]entrantResponse, 0, len(list))
	for _, e := range list {
		out = append(out, toEntrantResponse(e))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetEntrant(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_entrant"
	id, err := idParam(r)
	if err != nil {
		writeFailure(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	e, err := s.deps.GetEntrant(r.Context(), id)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, toEntrantResponse(e))
}

func (s *Server) handleGetEntrantByName(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_entrant_by_name"
	name, err := nameParam(r)
	if err != nil {
		writeFailure(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	e, err := s.deps.GetEntrantByName(r.Context(), name)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, toEntrantResponse(e))
}

func (s *Server) handleDeleteEntrant(w http.ResponseWriter, r *http.Request) {
	const op = "api.delete_entrant"
	id, err := idParam(r)
	if err != nil {
		writeFailure(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := s.deps.DeleteEntrant(r.Context(), id); err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	s.log.Info(r.Context(), "entrant deleted", logger.Int64("id", id))
	w.WriteHeader(http.StatusNoContent)
}

// nameParam returns {name} decoded. chi routes on RawPath when the request
// escapes a reserved character, and then the segment arrives still escaped.
func nameParam(r *http.Request) (string, error) {
	raw := chi.URLParam(r, "name")
	if r.URL.RawPath == "" {
		return raw, nil
	}
	name, err := url.PathUnescape(raw)
	if err != nil {
		return "", fmt.Errorf("invalid name %q: %w", raw, err)
	}
	return name, nil
}

func idParam(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}

func boolParam(r *http.Request, name string) (bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q", name, raw)
	}
	return v, nil
}
