package devapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/and161185/cardtrader/internal/crypto"
	"github.com/and161185/cardtrader/internal/errs"
	"github.com/and161185/cardtrader/internal/model"
	"github.com/and161185/cardtrader/internal/validate"
)

const maxRequestBody = 1 << 20

type errorBody struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Message: msg})
}

// writeErr maps store and validation errors to statuses.
func (s *Server) writeErr(w http.ResponseWriter, err error) {
	if ae, ok := errs.As(err); ok && ae.Kind == errs.KindValidation {
		writeError(w, http.StatusBadRequest, ae.Message)
		return
	}
	switch {
	case errors.Is(err, errs.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, errs.ErrForbidden):
		writeError(w, http.StatusForbidden, "not allowed for this user")
	case errors.Is(err, errs.ErrConflict):
		writeError(w, http.StatusConflict, "trade is no longer open")
	case errors.Is(err, errs.ErrAlreadyExists):
		writeError(w, http.StatusConflict, "username or email already registered")
	default:
		s.log.Error("handler", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "malformed JSON body")
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		writeError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

// listParams reads page, rpp and the filters. Page sizes above model.MaxRPP are clamped.
func listParams(w http.ResponseWriter, r *http.Request) (model.ListParams, bool) {
	q := r.URL.Query()
	p := model.ListParams{
		Search:   strings.TrimSpace(q.Get("search")),
		Category: strings.TrimSpace(q.Get("category")),
		Status:   strings.TrimSpace(q.Get("status")),
		Sort:     strings.TrimSpace(q.Get("sort")),
	}
	for key, dst := range map[string]*int{"page": &p.Page, "rpp": &p.RPP} {
		raw := q.Get(key)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("%s must be a positive integer", key))
			return model.ListParams{}, false
		}
		*dst = n
	}
	if p.Page == 0 {
		p.Page = 1
	}
	if p.RPP == 0 {
		p.RPP = model.DefaultRPP
	}
	p.RPP = min(p.RPP, model.MaxRPP)
	if p.Status != "" && !model.TradeStatus(p.Status).Valid() {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown status %q", p.Status))
		return model.ListParams{}, false
	}
	return p, true
}

// --- auth ---

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req model.Registration
	if !decodeBody(w, r, &req) {
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if err := validate.Register(req); err != nil {
		s.writeErr(w, err)
		return
	}
	hash, err := s.cfg.Password.Hash(req.Password)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	u, err := s.store.createUser(req.Username, req.Email, hash)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	if ok, retry := s.logins.Allow(clientIP(r)); !ok {
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retry.Seconds()))))
		writeError(w, http.StatusTooManyRequests, "too many login attempts")
		return
	}

	var req model.Credentials
	if !decodeBody(w, r, &req) {
		return
	}
	if err := validate.Login(req); err != nil {
		s.writeErr(w, err)
		return
	}

	u, hash, err := s.store.userByEmail(strings.TrimSpace(req.Email))
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}
	if ok, err := crypto.Verify(req.Password, hash); err != nil || !ok {
		writeError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}

	tok, err := s.issueToken(u.ID)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, model.AuthResponse{User: u, Token: tok})
}

// logout revokes a valid bearer token; it always succeeds.
func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	if tok, err := bearerToken(r); err == nil {
		if _, err := s.userIDFromToken(tok); err == nil {
			s.store.revoke(tok)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	id, _ := UserIDFromCtx(r.Context())
	u, err := s.store.user(id)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// --- cards ---

func (s *Server) listCards(w http.ResponseWriter, r *http.Request) {
	p, ok := listParams(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.store.listCards(p))
}

func (s *Server) getCard(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	c, err := s.store.getCard(id)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) listUserCards(w http.ResponseWriter, r *http.Request) {
	p, ok := listParams(w, r)
	if !ok {
		return
	}
	uid, _ := UserIDFromCtx(r.Context())
	writeJSON(w, http.StatusOK, s.store.listUserCards(uid, p))
}

func (s *Server) addUserCard(w http.ResponseWriter, r *http.Request) {
	var req model.AddCardRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := validate.AddCard(req); err != nil {
		s.writeErr(w, err)
		return
	}
	uid, _ := UserIDFromCtx(r.Context())
	uc, err := s.store.addUserCard(uid, req)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, uc)
}

// --- trades ---

func (s *Server) listTrades(w http.ResponseWriter, r *http.Request) {
	p, ok := listParams(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.store.listTrades(0, p))
}

func (s *Server) listUserTrades(w http.ResponseWriter, r *http.Request) {
	p, ok := listParams(w, r)
	if !ok {
		return
	}
	uid, _ := UserIDFromCtx(r.Context())
	writeJSON(w, http.StatusOK, s.store.listTrades(uid, p))
}

func (s *Server) getTrade(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	t, err := s.store.getTrade(id)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) createTrade(w http.ResponseWriter, r *http.Request) {
	var req model.CreateTradeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := validate.CreateTrade(req); err != nil {
		s.writeErr(w, err)
		return
	}
	uid, _ := UserIDFromCtx(r.Context())
	t, err := s.store.createTrade(uid, req)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) deleteTrade(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	uid, _ := UserIDFromCtx(r.Context())
	if err := s.store.deleteTrade(uid, id); err != nil {
		s.writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) cancelTrade(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, true, model.TradeCancelled)
}

func (s *Server) acceptTrade(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, false, model.TradeCompleted)
}

func (s *Server) rejectTrade(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, false, model.TradeCancelled)
}

func (s *Server) transition(w http.ResponseWriter, r *http.Request, owner bool, to model.TradeStatus) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	uid, _ := UserIDFromCtx(r.Context())
	t, err := s.store.transition(uid, id, owner, to)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}
