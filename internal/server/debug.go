package server

import (
	"encoding/json"
	"net/http"

	"github.com/rhofour/InfiniTDBackend-sub000/internal/core"
	"github.com/rhofour/InfiniTDBackend-sub000/internal/domain"
	"github.com/rhofour/InfiniTDBackend-sub000/internal/infrastructure/storage"
)

// DebugHandler предоставляет доступ к внутреннему состоянию битв
type DebugHandler struct {
	Battles *core.BattleService
}

func NewDebugHandler(s *core.BattleService) *DebugHandler {
	return &DebugHandler{Battles: s}
}

// RegisterRoutes регистрирует debug-эндпоинты
func (h *DebugHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /debug/battles", h.handleListBattles)
	mux.HandleFunc("GET /debug/results/{name}", h.handleLastResults)
	mux.HandleFunc("POST /debug/input", h.handleDumpInput)
}

// /debug/battles - все известные битвы, их статус и число подписчиков
func (h *DebugHandler) handleListBattles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.Battles.Battles())
}

// /debug/results/{name} - результаты последней доигранной битвы
func (h *DebugHandler) handleLastResults(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	res, ok := h.Battles.LastResults(name)
	if !ok {
		http.Error(w, "No finished battle for "+name, http.StatusNotFound)
		return
	}
	writeJSON(w, struct {
		Name     string               `json:"name"`
		InBattle bool                 `json:"inBattle"`
		Results  domain.BattleResults `json:"results"`
	}{name, h.Battles.InBattle(name), res})
}

// /debug/input - нормализует запрос битвы в файл входных данных для tools/battletime
func (h *DebugHandler) handleDumpInput(w http.ResponseWriter, r *http.Request) {
	var req core.BattleRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body: "+err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="battle_input.json"`)
	in := &storage.BattleInput{Battleground: req.Battleground, Wave: req.Wave}
	if err := storage.WriteInput(w, in); err != nil {
		requestLog(r).WithError(err).Warn("Failed to write battle input")
	}
}

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Content-Type", "application/json")

	// Если data == nil, возвращаем пустой массив [], а не null
	if data == nil {
		w.Write([]byte("[]"))
		return
	}

	json.NewEncoder(w).Encode(data)
}
