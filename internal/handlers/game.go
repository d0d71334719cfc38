// internal/handlers/game.go
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/pokerbank/internal/auth"
	"github.com/jason-s-yu/pokerbank/internal/game"
	"github.com/jason-s-yu/pokerbank/internal/models"
	"github.com/jason-s-yu/pokerbank/internal/store"
)

const createAttempts = 5

// CreateGameRequest is the body of POST /games.
type CreateGameRequest struct {
	Host         string `json:"host"`
	InitialMoney *int64 `json:"initialMoney,omitempty"`
}

// CreateGameResponse carries the new game's code, the host token that authorizes DELETE, and the
// stored snapshot.
type CreateGameResponse struct {
	GameCode  string           `json:"gameCode"`
	HostToken string           `json:"hostToken"`
	State     models.GameState `json:"state"`
}

// gameCode reads and validates the {code} path parameter, writing a 400 when it is malformed.
func gameCode(w http.ResponseWriter, r *http.Request) (string, bool) {
	code := game.NormalizeGameCode(chi.URLParam(r, "code"))
	if !game.ValidGameCode(code) {
		writeError(w, http.StatusBadRequest, "invalid game code")
		return "", false
	}
	return code, true
}

// storeError maps store failures onto HTTP status codes.
func (s *APIServer) storeError(w http.ResponseWriter, code string, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "game not found")
	case errors.Is(err, store.ErrConflict):
		writeError(w, http.StatusPreconditionFailed, "snapshot version has changed")
	case errors.Is(err, store.ErrUnavailable):
		s.Logger.WithField("game", code).Warnf("state store unavailable: %v", err)
		writeError(w, http.StatusServiceUnavailable, "state store unavailable")
	default:
		s.Logger.WithField("game", code).Errorf("state store error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *APIServer) handleCreateGame(w http.ResponseWriter, r *http.Request) {
	var req CreateGameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Host = strings.TrimSpace(req.Host)
	if req.Host == "" {
		writeError(w, http.StatusBadRequest, "host name is required")
		return
	}
	money := s.InitialMoney
	if req.InitialMoney != nil {
		money = *req.InitialMoney
	}
	if money < 0 {
		writeError(w, http.StatusBadRequest, "initial money must not be negative")
		return
	}

	var state models.GameState
	var err error
	for attempt := 0; attempt < createAttempts; attempt++ {
		state = game.NewGame(game.NewGameCode(), req.Host, money, models.Millis(s.now()))
		err = s.create(r, state)
		if !errors.Is(err, store.ErrConflict) {
			break
		}
	}
	if err != nil {
		s.storeError(w, state.GameCode, err)
		return
	}

	token, err := auth.CreateHostToken(state.GameCode)
	if err != nil {
		s.Logger.Errorf("failed to sign host token: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to create host token")
		return
	}
	s.Logger.WithFields(logrus.Fields{"game": state.GameCode, "host": req.Host}).Info("game created")
	w.Header().Set("ETag", strconv.FormatInt(state.LastStateUpdate, 10))
	writeJSON(w, http.StatusCreated, CreateGameResponse{GameCode: state.GameCode, HostToken: token, State: state})
}

// create stores a brand new snapshot, failing with store.ErrConflict if the code is taken.
func (s *APIServer) create(r *http.Request, state models.GameState) error {
	if vs, ok := s.Store.(store.VersionedStore); ok {
		return vs.PutIfVersion(r.Context(), state, 0)
	}
	if _, err := s.Store.Get(r.Context(), state.GameCode); err == nil {
		return store.ErrConflict
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}
	return s.Store.Put(r.Context(), state)
}

func (s *APIServer) handleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	code, ok := gameCode(w, r)
	if !ok {
		return
	}
	state, err := s.Store.Get(r.Context(), code)
	if err != nil {
		s.storeError(w, code, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("ETag", strconv.FormatInt(state.LastStateUpdate, 10))
	writeJSON(w, http.StatusOK, state)
}

// handlePutSnapshot replaces the stored document. "If-Match: <version>" makes the write a
// compare-and-swap against that version and "If-None-Match: *" only creates.
func (s *APIServer) handlePutSnapshot(w http.ResponseWriter, r *http.Request) {
	code, ok := gameCode(w, r)
	if !ok {
		return
	}
	var state models.GameState
	if err := json.NewDecoder(r.Body).Decode(&state); err != nil {
		writeError(w, http.StatusBadRequest, "invalid snapshot")
		return
	}
	if state.GameCode != code {
		writeError(w, http.StatusBadRequest, "snapshot game code does not match the URL")
		return
	}

	expected, conditional, err := precondition(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if conditional {
		vs, ok := s.Store.(store.VersionedStore)
		if !ok {
			writeError(w, http.StatusNotImplemented, "conditional writes are not supported by this store")
			return
		}
		err = vs.PutIfVersion(r.Context(), state, expected)
	} else {
		err = s.Store.Put(r.Context(), state)
	}
	if err != nil {
		s.storeError(w, code, err)
		return
	}

	s.Logger.WithFields(logrus.Fields{"game": code, "version": state.LastStateUpdate}).Debug("snapshot stored")
	s.Hub.Broadcast(code, SnapshotEvent{Type: EventSnapshotUpdated, GameCode: code, Version: state.LastStateUpdate})
	w.Header().Set("ETag", strconv.FormatInt(state.LastStateUpdate, 10))
	w.WriteHeader(http.StatusNoContent)
}

// precondition parses If-Match / If-None-Match into an expected version.
func precondition(r *http.Request) (int64, bool, error) {
	if r.Header.Get("If-None-Match") == "*" {
		return 0, true, nil
	}
	v := strings.Trim(r.Header.Get("If-Match"), `" `)
	if v == "" {
		return 0, false, nil
	}
	expected, err := strconv.ParseInt(v, 10, 64)
	if err != nil || expected < 0 {
		return 0, false, errors.New("If-Match must be a snapshot version")
	}
	return expected, true, nil
}

func (s *APIServer) handleDeleteSnapshot(w http.ResponseWriter, r *http.Request) {
	code, ok := gameCode(w, r)
	if !ok {
		return
	}
	token := extractBearerToken(r.Header.Get("Authorization"))
	if token == "" {
		writeError(w, http.StatusUnauthorized, "missing host token")
		return
	}
	if err := auth.ValidateHostToken(token, code); err != nil {
		writeError(w, http.StatusForbidden, "invalid host token")
		return
	}

	if err := s.Store.Delete(r.Context(), code); err != nil {
		s.storeError(w, code, err)
		return
	}
	s.Logger.WithField("game", code).Info("game deleted")
	s.Hub.Broadcast(code, SnapshotEvent{Type: EventSnapshotDeleted, GameCode: code})
	w.WriteHeader(http.StatusNoContent)
}
