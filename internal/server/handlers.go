package server

import (
	"encoding/json"
	"net/http"

	"github.com/cluegrid/cluegrid/internal/daily"
	"github.com/cluegrid/cluegrid/internal/model"
)

const playerTokenHeader = "X-Player-Token"

// playerToken extracts the caller's token, writing a 400 when absent.
func playerToken(w http.ResponseWriter, r *http.Request) (string, bool) {
	token := r.Header.Get(playerTokenHeader)
	if token == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing " + playerTokenHeader + " header"})
		return "", false
	}
	return token, true
}

// challengeDate resolves the requested date, defaulting to today in Eastern
// time.
func (s *Server) challengeDate(r *http.Request) string {
	if date := r.URL.Query().Get("date"); date != "" {
		return date
	}
	return s.daily.Today()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGetDaily(w http.ResponseWriter, r *http.Request) {
	token, ok := playerToken(w, r)
	if !ok {
		return
	}

	payload, err := s.daily.Payload(r.Context(), s.challengeDate(r), token)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

type submitAnswerRequest struct {
	Stage    string `json:"stage"`
	Index    int    `json:"index"`
	Response string `json:"response"`
	Skipped  bool   `json:"skipped"`
	Wager    *int   `json:"wager,omitempty"`
}

func (s *Server) handleSubmitAnswer(w http.ResponseWriter, r *http.Request) {
	token, ok := playerToken(w, r)
	if !ok {
		return
	}

	var req submitAnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	result, err := s.daily.Submit(r.Context(), daily.SubmitRequest{
		ChallengeDate: s.challengeDate(r),
		PlayerToken:   token,
		Stage:         model.Stage(req.Stage),
		Index:         req.Index,
		Response:      req.Response,
		Skipped:       req.Skipped,
		Wager:         req.Wager,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type lockWagerRequest struct {
	Wager int `json:"wager"`
}

func (s *Server) handleLockWager(w http.ResponseWriter, r *http.Request) {
	token, ok := playerToken(w, r)
	if !ok {
		return
	}

	var req lockWagerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	progress, err := s.daily.LockFinalWager(r.Context(), s.challengeDate(r), token, req.Wager)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"final_wager": progress.FinalWager,
		"score":       progress.CurrentScore,
	})
}

type submitFinalRequest struct {
	Response string `json:"response"`
}

func (s *Server) handleSubmitFinal(w http.ResponseWriter, r *http.Request) {
	token, ok := playerToken(w, r)
	if !ok {
		return
	}

	var req submitFinalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	result, err := s.daily.SubmitFinal(r.Context(), s.challengeDate(r), token, req.Response)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	token, ok := playerToken(w, r)
	if !ok {
		return
	}

	if err := s.daily.Reset(r.Context(), s.challengeDate(r), token); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

type appealRequest struct {
	Stage         string `json:"stage"`
	Index         int    `json:"index"`
	Justification string `json:"justification"`
}

func (s *Server) handleAppeal(w http.ResponseWriter, r *http.Request) {
	token, ok := playerToken(w, r)
	if !ok {
		return
	}

	var req appealRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	result, err := s.daily.Appeal(r.Context(), daily.AppealRequest{
		ChallengeDate: s.challengeDate(r),
		PlayerToken:   token,
		Stage:         model.Stage(req.Stage),
		Index:         req.Index,
		Justification: req.Justification,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
