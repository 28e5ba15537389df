package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rhofour/InfiniTDBackend-sub000/internal/core"
	"github.com/rhofour/InfiniTDBackend-sub000/internal/domain"
	"github.com/rhofour/InfiniTDBackend-sub000/internal/engine"
	"github.com/rhofour/InfiniTDBackend-sub000/internal/gameconfig"
	"github.com/rhofour/InfiniTDBackend-sub000/internal/replay"
	"github.com/rhofour/InfiniTDBackend-sub000/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.Init()
	os.Exit(m.Run())
}

type testEnv struct {
	ts    *httptest.Server
	coord *replay.Coordinator
	svc   *core.BattleService
}

func newTestEnv(t *testing.T, opts ...replay.Option) *testEnv {
	t.Helper()
	rules, err := gameconfig.Load("../gameconfig/testdata/game_config.yaml")
	if err != nil {
		t.Fatalf("unexpected error loading rules: %v", err)
	}
	pool := engine.NewPool(rules, engine.NewConfig(), 2)
	coord := replay.NewCoordinator(opts...)
	svc := core.NewBattleService(pool, coord, nil)
	ts := httptest.NewServer(New(svc, "0").Handler())

	t.Cleanup(func() {
		ts.Close()
		_ = coord.Shutdown(context.Background())
		pool.Close()
	})
	return &testEnv{ts: ts, coord: coord, svc: svc}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, e.ts.URL+path, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func startBody(wave ...domain.ConfigID) startRequest {
	return startRequest{
		Attacker:     "alice",
		Battleground: domain.EmptyBattleground(5, 4),
		Wave:         wave,
	}
}

func TestHealthAndVersion(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/health", nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200 from /health, got %d", resp.StatusCode)
	}

	resp = env.do(t, http.MethodGet, "/version", nil)
	var info map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		t.Fatalf("decode version: %v", err)
	}
	if _, ok := info["buildId"]; !ok {
		t.Errorf("Version response has no buildId: %v", info)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("Expected X-Request-ID header")
	}
}

func TestStartBattle_RunsToCompletion(t *testing.T) {
	// Окно буфера больше всей битвы: события уходят сразу.
	env := newTestEnv(t, replay.WithBufferWindow(10*time.Second))

	resp := env.do(t, http.MethodPost, "/battles/bob", startBody(1))
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("Expected 202, got %d", resp.StatusCode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := env.coord.Wait(ctx, "bob"); err != nil {
		t.Fatalf("wait: %v", err)
	}

	// После конца битвы новый зритель видит только PENDING.
	resp = env.do(t, http.MethodGet, "/battles/bob", nil)
	var updates []replay.MetadataUpdate
	if err := json.NewDecoder(resp.Body).Decode(&updates); err != nil {
		t.Fatalf("decode join: %v", err)
	}
	if len(updates) != 1 {
		t.Fatalf("Expected a single metadata update, got %d", len(updates))
	}
	if meta := updates[0]; meta.Status != replay.StatusPending || meta.Name != "bob" || meta.AttackerName != "alice" {
		t.Errorf("Unexpected metadata after finish: %+v", meta)
	}

	if _, ok := env.svc.LastResults("bob"); !ok {
		t.Error("Expected recorded results for bob")
	}
	if env.svc.InBattle("bob") {
		t.Error("Expected bob to be out of battle")
	}
}

func TestStartBattle_Conflicts(t *testing.T) {
	env := newTestEnv(t)

	if resp := env.do(t, http.MethodPost, "/battles/bob", startBody(0)); resp.StatusCode != http.StatusAccepted {
		t.Fatalf("Expected 202, got %d", resp.StatusCode)
	}
	if resp := env.do(t, http.MethodPost, "/battles/bob", startBody(0)); resp.StatusCode != http.StatusConflict {
		t.Errorf("Expected 409 for second start, got %d", resp.StatusCode)
	}
	if resp := env.do(t, http.MethodDelete, "/battles/bob", nil); resp.StatusCode != http.StatusNoContent {
		t.Errorf("Expected 204 for stop, got %d", resp.StatusCode)
	}
	if resp := env.do(t, http.MethodDelete, "/battles/bob", nil); resp.StatusCode != http.StatusConflict {
		t.Errorf("Expected 409 for stop without battle, got %d", resp.StatusCode)
	}
}

func TestStartBattle_BadInput(t *testing.T) {
	env := newTestEnv(t)

	jagged := startBody(0)
	jagged.Battleground.Towers[2] = make([]*domain.BgTower, 2)

	tests := []struct {
		name string
		body any
		want int
	}{
		{"Malformed JSON", `{"attacker":`, http.StatusBadRequest},
		{"Unknown field", `{"attacker":"alice","gold":5}`, http.StatusBadRequest},
		{"Unknown monster", startBody(42), http.StatusConflict},
		{"Empty wave", startBody(), http.StatusConflict},
		{"Jagged battleground", jagged, http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.do(t, http.MethodPost, "/battles/bob", tt.body)
			if resp.StatusCode != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, resp.StatusCode)
			}
		})
	}

	if env.svc.InBattle("bob") {
		t.Error("Failed start must not leave bob in battle")
	}
}

func TestRecordedBattle(t *testing.T) {
	env := newTestEnv(t)

	req := core.BattleRequest{
		Attacker:     "alice",
		Defender:     "bob",
		Battleground: domain.EmptyBattleground(5, 4),
		Wave:         domain.Wave{0, 1},
	}
	resp := env.do(t, http.MethodPost, "/recorded", req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	var battle domain.Battle
	if err := json.NewDecoder(resp.Body).Decode(&battle); err != nil {
		t.Fatalf("decode battle: %v", err)
	}
	if battle.Name != "vs. alice" || battle.DefenderName != "bob" {
		t.Errorf("Unexpected battle labels: %+v", battle)
	}
	if battle.Results.MonstersDefeated[0].Sent != 1 {
		t.Errorf("Expected one monster 0 sent, got %+v", battle.Results.MonstersDefeated)
	}

	req.Defender = ""
	if resp := env.do(t, http.MethodPost, "/recorded", req); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 without defender, got %d", resp.StatusCode)
	}
}

func TestDebugRoutes(t *testing.T) {
	env := newTestEnv(t, replay.WithBufferWindow(10*time.Second))

	if resp := env.do(t, http.MethodGet, "/debug/results/bob", nil); resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 before any battle, got %d", resp.StatusCode)
	}

	env.do(t, http.MethodPost, "/battles/bob", startBody(1))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := env.coord.Wait(ctx, "bob"); err != nil {
		t.Fatalf("wait: %v", err)
	}

	resp := env.do(t, http.MethodGet, "/debug/battles", nil)
	var battles []replay.BattleInfo
	if err := json.NewDecoder(resp.Body).Decode(&battles); err != nil {
		t.Fatalf("decode battles: %v", err)
	}
	if len(battles) != 1 || battles[0].Name != "bob" || battles[0].Status != replay.StatusFinished {
		t.Errorf("Unexpected battle listing: %+v", battles)
	}

	if resp := env.do(t, http.MethodGet, "/debug/results/bob", nil); resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200 for finished battle, got %d", resp.StatusCode)
	}

	resp = env.do(t, http.MethodPost, "/debug/input", core.BattleRequest{
		Battleground: domain.EmptyBattleground(5, 4),
		Wave:         domain.Wave{1},
	})
	body := new(bytes.Buffer)
	body.ReadFrom(resp.Body)
	if !strings.Contains(body.String(), `"wave"`) {
		t.Errorf("Expected battle input dump, got %s", body.String())
	}
}

func TestStream_SubscribeAndReceive(t *testing.T) {
	env := newTestEnv(t, replay.WithBufferWindow(10*time.Second))

	url := "ws" + strings.TrimPrefix(env.ts.URL, "http") + "/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteMessage(websocket.TextMessage, []byte("+battle/bob")); err != nil {
		t.Fatalf("write: %v", err)
	}

	read := func() string {
		t.Helper()
		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		return string(msg)
	}

	// Снимок для неизвестной битвы - PENDING.
	first := read()
	if !strings.HasPrefix(first, "battle/bob:") || !strings.Contains(first, `"PENDING"`) {
		t.Fatalf("Unexpected first frame: %s", first)
	}

	if resp := env.do(t, http.MethodPost, "/battles/bob", startBody(1)); resp.StatusCode != http.StatusAccepted {
		t.Fatalf("Expected 202, got %d", resp.StatusCode)
	}

	var sawLive, sawResults bool
	for i := 0; i < 50 && !sawResults; i++ {
		frame := read()
		id, payload, ok := strings.Cut(frame, ":")
		if !ok || id != "battle/bob" {
			t.Fatalf("Malformed frame: %s", frame)
		}
		if strings.Contains(payload, `"LIVE"`) {
			sawLive = true
		}
		if strings.Contains(payload, `"monstersDefeated"`) {
			sawResults = true
		}
	}
	if !sawLive || !sawResults {
		t.Errorf("Expected LIVE and results frames (live=%v results=%v)", sawLive, sawResults)
	}
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		msg       string
		subscribe bool
		topic     string
		name      string
		ok        bool
	}{
		{"+battle/bob", true, "battle", "bob", true},
		{"-battle/bob", false, "battle", "bob", true},
		{"+battle/a/b", true, "battle", "a/b", true},
		{"+battle/", false, "", "", false},
		{"battle/bob", false, "", "", false},
		{"+", false, "", "", false},
		{"+users", false, "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			sub, topic, name, ok := parseCommand(tt.msg)
			if ok != tt.ok || (ok && (sub != tt.subscribe || topic != tt.topic || name != tt.name)) {
				t.Errorf("parseCommand(%q) = %v %q %q %v", tt.msg, sub, topic, name, ok)
			}
		})
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: x", core.ErrInvalidRequest), http.StatusBadRequest},
		{fmt.Errorf("%w: x", core.ErrAlreadyInBattle), http.StatusConflict},
		{fmt.Errorf("%w: x", core.ErrNotInBattle), http.StatusConflict},
		{engine.ErrNoPath, http.StatusConflict},
		{replay.ErrUnknownBattle, http.StatusNotFound},
		{engine.ErrPoolClosed, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
