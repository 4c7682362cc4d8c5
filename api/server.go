package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/wricardo/boardgames/game/caro"
	"github.com/wricardo/boardgames/game/line98"
	"github.com/wricardo/boardgames/game/service"
	"github.com/wricardo/boardgames/transport/websocket"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// CaroAPI is the part of the Caro gateway served over REST.
type CaroAPI interface {
	Config() caro.Config
	History(ctx context.Context, playerID int64, page service.Page) (service.PageResult[*service.CaroSession], error)
}

// Line98API is the part of the Line98 gateway served over REST.
type Line98API interface {
	Config() line98.Config
	Play(ctx context.Context, playerID int64) (*service.Line98Session, error)
	Game(ctx context.Context, playerID, id int64) (*service.Line98Session, error)
	History(ctx context.Context, playerID int64, page service.Page) (service.PageResult[*service.Line98Session], error)
}

// Options holds the collaborators of a Server. The websocket handlers are
// optional.
type Options struct {
	Caro     CaroAPI
	Line98   Line98API
	Verifier service.TokenVerifier
	CaroWS   http.HandlerFunc
	Line98WS http.HandlerFunc
}

// Server represents the REST API server
type Server struct {
	caro     CaroAPI
	line98   Line98API
	verifier service.TokenVerifier
	router   *mux.Router
}

// NewServer creates a new API server
func NewServer(opts Options) *Server {
	s := &Server{
		caro:     opts.Caro,
		line98:   opts.Line98,
		verifier: opts.Verifier,
		router:   mux.NewRouter(),
	}

	s.setupRoutes(opts)
	return s
}

// setupRoutes configures all routes
func (s *Server) setupRoutes(opts Options) {
	s.router.HandleFunc("/healthz", s.handleHealth).Methods("GET")

	// Every /api route needs a valid access token
	api := s.router.PathPrefix("/api").Subrouter()
	api.Use(s.authenticate)

	api.HandleFunc("/caro/config", s.handleCaroConfig).Methods("GET")
	api.HandleFunc("/caro/history", s.handleCaroHistory).Methods("GET")

	api.HandleFunc("/line98/config", s.handleLine98Config).Methods("GET")
	api.HandleFunc("/line98/play", s.handleLine98Play).Methods("POST")
	api.HandleFunc("/line98/history", s.handleLine98History).Methods("GET")
	api.HandleFunc("/line98/{id:[0-9]+}", s.handleLine98Game).Methods("GET")

	// WebSocket, authenticated by the gateways after the upgrade
	if opts.CaroWS != nil {
		s.router.HandleFunc("/ws/caro", opts.CaroWS)
	}
	if opts.Line98WS != nil {
		s.router.HandleFunc("/ws/line98", opts.Line98WS)
	}
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Response helpers
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondServiceError maps the service error classes to HTTP statuses
func respondServiceError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrCredentialExpired), errors.Is(err, service.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, service.ErrAlreadyPlaying),
		errors.Is(err, service.ErrConcurrencyConflict),
		errors.Is(err, service.ErrSessionFinished),
		errors.Is(err, service.ErrIllegalMove):
		status = http.StatusConflict
	}
	respondError(w, status, err.Error())
}

type identityKey struct{}

// authenticate verifies the bearer token and stores the identity in the
// request context
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := s.verifier.Verify(websocket.TokenFromRequest(r))
		if err != nil {
			if errors.Is(err, service.ErrCredentialExpired) {
				respondError(w, http.StatusUnauthorized, "token_expired")
				return
			}
			respondError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		ctx := context.WithValue(r.Context(), identityKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func identity(r *http.Request) *service.Identity {
	id, _ := r.Context().Value(identityKey{}).(*service.Identity)
	return id
}

// parsePage reads the page and size query parameters
func parsePage(r *http.Request) (service.Page, error) {
	page := service.Page{Page: 1, Size: defaultPageSize}
	query := r.URL.Query()

	if v := query.Get("page"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil || p < 1 {
			return page, errors.New("page must be a positive integer")
		}
		page.Page = p
	}
	if v := query.Get("size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxPageSize {
			return page, errors.New("size must be between 1 and 100")
		}
		page.Size = n
	}
	return page, nil
}

// Caro Handlers

func (s *Server) handleCaroConfig(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.caro.Config())
}

func (s *Server) handleCaroHistory(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	history, err := s.caro.History(r.Context(), identity(r).PlayerID, page)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, history)
}

// Line98 Handlers

func (s *Server) handleLine98Config(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.line98.Config())
}

func (s *Server) handleLine98Play(w http.ResponseWriter, r *http.Request) {
	sess, err := s.line98.Play(r.Context(), identity(r).PlayerID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int64{"matchId": sess.ID})
}

func (s *Server) handleLine98Game(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid game id")
		return
	}

	sess, err := s.line98.Game(r.Context(), identity(r).PlayerID, id)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, sess)
}

func (s *Server) handleLine98History(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	history, err := s.line98.History(r.Context(), identity(r).PlayerID, page)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, history)
}

// Health check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}
