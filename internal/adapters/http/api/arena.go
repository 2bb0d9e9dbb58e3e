package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/okian/arena/internal/domain/model"
	"github.com/okian/arena/pkg/logger"
)

// IdempotencyKeyHeader deduplicates POST /arena/fight.
const IdempotencyKeyHeader = "Idempotency-Key"

// enterRequest names the entrant by id or by name, not both.
type enterRequest struct {
	ID   *int64  `json:"id"`
	Name *string `json:"name"`
}

type arenaResponse struct {
	State    string            `json:"state"`
	Entrants []entrantResponse `json:"entrants"`
}

type fightResponse struct {
	WinnerID            int64   `json:"winner_id"`
	LoserID             int64   `json:"loser_id"`
	WinnerSkill         float64 `json:"winner_skill"`
	LoserSkill          float64 `json:"loser_skill"`
	WinnerProbability   float64 `json:"winner_probability"`
	FirstID             int64   `json:"first_id"`
	FirstWinProbability float64 `json:"first_win_probability"`
	Roll                float64 `json:"roll"`
	Replayed            bool    `json:"replayed"`
}

func (s *Server) handleGetArena(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_arena"
	list, state, err := s.deps.ArenaOccupants(r.Context())
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	out := arenaResponse{State: string(state), Entrants: make([]entrantResponse, 0, len(list))}
	for _, e := range list {
		out.Entrants = append(out.Entrants, toEntrantResponse(e))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleEnterArena(w http.ResponseWriter, r *http.Request) {
	const op = "api.enter_arena"
	var req enterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	if (req.ID == nil) == (req.Name == nil) {
		writeFailure(w, WrapKind(op, ErrBadRequest, errors.New("exactly one of id or name is required")))
		return
	}

	var id int64
	if req.ID != nil {
		id = *req.ID
	} else {
		e, err := s.deps.GetEntrantByName(r.Context(), *req.Name)
		if err != nil {
			writeFailure(w, Wrap(op, err))
			return
		}
		id = e.ID
	}
	if err := s.deps.EnterArena(r.Context(), id); err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	e, err := s.deps.GetEntrant(r.Context(), id)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, toEntrantResponse(e))
}

func (s *Server) handleClearArena(w http.ResponseWriter, r *http.Request) {
	s.deps.ClearArena(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleFight(w http.ResponseWriter, r *http.Request) {
	const op = "api.fight"
	key := r.Header.Get(IdempotencyKeyHeader)
	res, replayed, err := s.deps.Fight(r.Context(), key)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	if !replayed {
		s.log.Info(r.Context(), "contest resolved",
			logger.Int64("winner_id", res.WinnerID),
			logger.Int64("loser_id", res.LoserID),
			logger.Float64("roll", res.Roll),
		)
	}
	writeJSON(w, http.StatusOK, toFightResponse(res, replayed))
}

func toFightResponse(res model.ContestResult, replayed bool) fightResponse {
	return fightResponse{
		WinnerID:            res.WinnerID,
		LoserID:             res.LoserID,
		WinnerSkill:         res.WinnerSkill,
		LoserSkill:          res.LoserSkill,
		WinnerProbability:   res.WinnerProbability,
		FirstID:             res.FirstID,
		FirstWinProbability: res.FirstWinProbability,
		Roll:                res.Roll,
		Replayed:            replayed,
	}
}
