package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rhofour/InfiniTDBackend-sub000/internal/core"
	"github.com/rhofour/InfiniTDBackend-sub000/internal/domain"
	"github.com/rhofour/InfiniTDBackend-sub000/internal/engine"
	"github.com/rhofour/InfiniTDBackend-sub000/internal/replay"
	"github.com/rhofour/InfiniTDBackend-sub000/internal/version"
	"github.com/rhofour/InfiniTDBackend-sub000/pkg/logger"
	"github.com/rhofour/InfiniTDBackend-sub000/pkg/utils"
)

type ctxKey int

const requestIDKey ctxKey = iota

// maxBodyBytes ограничивает тело запроса (поле + волна на 500 монстров помещаются с запасом).
const maxBodyBytes = 1 << 20

type Server struct {
	Battles *core.BattleService
	Port    string

	httpServer *http.Server
}

func New(battles *core.BattleService, port string) *Server {
	return &Server{
		Battles: battles,
		Port:    port,
	}
}

// Handler собирает все роуты.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", enableCORS(s.handleHealth))
	mux.HandleFunc("GET /version", enableCORS(s.handleVersion))

	mux.HandleFunc("POST /battles/{name}", enableCORS(s.handleStartBattle))
	mux.HandleFunc("DELETE /battles/{name}", enableCORS(s.handleStopBattle))
	mux.HandleFunc("GET /battles/{name}", enableCORS(s.handleJoinBattle))
	mux.HandleFunc("POST /recorded", enableCORS(s.handleRecordedBattle))
	mux.HandleFunc("OPTIONS /battles/{name}", enableCORS(handlePreflight))
	mux.HandleFunc("OPTIONS /recorded", enableCORS(handlePreflight))

	mux.HandleFunc("/stream", s.handleWS)

	debugHandler := NewDebugHandler(s.Battles)
	debugHandler.RegisterRoutes(mux)

	return withRequestID(mux)
}

// Run запускает HTTP сервер и блокируется до Shutdown.
func (s *Server) Run() error {
	s.httpServer = &http.Server{
		Addr:              ":" + s.Port,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Log.Infof("InfiniTD battle server running on :%s", s.Port)
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func enableCORS(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Разрешаем запросы с фронтенда
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")

		next(w, r)
	}
}

func handlePreflight(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

// withRequestID помечает каждый запрос ID для логов.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := utils.GenerateID()
		w.Header().Set("X-Request-ID", id)
		ctx := context.WithValue(r.Context(), requestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requestLog - логгер с request_id текущего запроса.
func requestLog(r *http.Request) *logrus.Entry {
	id, _ := r.Context().Value(requestIDKey).(string)
	return logger.WithComponent("http").WithFields(logrus.Fields{
		"request_id": id,
		"method":     r.Method,
		"path":       r.URL.Path,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, version.Info())
}

// startRequest - тело POST /battles/{name}. Защитник берется из пути.
type startRequest struct {
	Attacker     string              `json:"attacker"`
	Battleground domain.Battleground `json:"battleground"`
	Wave         domain.Wave         `json:"wave"`
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func (s *Server) handleStartBattle(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	log := requestLog(r).WithField("battle", name)

	var body startRequest
	if err := decodeBody(w, r, &body); err != nil {
		log.WithError(err).Warn("Bad start request")
		http.Error(w, "invalid JSON body: "+err.Error(), http.StatusBadRequest)
		return
	}

	req := core.BattleRequest{
		Attacker:     body.Attacker,
		Defender:     name,
		Battleground: body.Battleground,
		Wave:         body.Wave,
	}
	if req.Attacker == "" {
		req.Attacker = name // битва со своей же волной
	}

	if err := s.Battles.StartBattle(r.Context(), req); err != nil {
		writeError(w, log, err)
		return
	}
	log.WithField("attacker", req.Attacker).Info("Battle started")
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleStopBattle(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	log := requestLog(r).WithField("battle", name)

	if err := s.Battles.StopBattle(name); err != nil {
		writeError(w, log, err)
		return
	}
	log.Info("Battle stopped")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleJoinBattle(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Battles.Join(r.PathValue("name")))
}

func (s *Server) handleRecordedBattle(w http.ResponseWriter, r *http.Request) {
	log := requestLog(r)

	var req core.BattleRequest
	if err := decodeBody(w, r, &req); err != nil {
		log.WithError(err).Warn("Bad recorded battle request")
		http.Error(w, "invalid JSON body: "+err.Error(), http.StatusBadRequest)
		return
	}
	log = log.WithFields(logrus.Fields{"attacker": req.Attacker, "defender": req.Defender})

	battle, err := s.Battles.GetOrComputeBattle(r.Context(), req)
	if err != nil {
		writeError(w, log, err)
		return
	}
	writeJSON(w, battle)
}

// statusFor переводит ошибки сервисов в HTTP-коды.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, replay.ErrUnknownBattle):
		return http.StatusNotFound
	case engine.IsInputError(err), engine.IsInvariantViolation(err),
		errors.Is(err, core.ErrAlreadyInBattle), errors.Is(err, core.ErrNotInBattle):
		return http.StatusConflict
	case errors.Is(err, engine.ErrPoolClosed), errors.Is(err, replay.ErrCoordinatorClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, log *logrus.Entry, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		log.WithError(err).Error("Request failed")
	} else {
		log.WithError(err).Warn("Request rejected")
	}
	http.Error(w, err.Error(), code)
}
