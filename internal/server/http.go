package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"level-indicator/internal/config"
	"level-indicator/internal/indicator"
	"level-indicator/internal/levels"
	"level-indicator/internal/state"
)

type HTTPServer struct {
	cfg config.Config
	st  *state.State
	drv *indicator.Driver
	hub *hub
	log *slog.Logger
	mux *http.ServeMux
}

func NewHTTPServer(cfg config.Config, st *state.State, drv *indicator.Driver, logger *slog.Logger) *HTTPServer {
	s := &HTTPServer{
		cfg: cfg,
		st:  st,
		drv: drv,
		log: logger,
		mux: http.NewServeMux(),
	}
	s.hub = newHub(logger, s.hello)
	s.routes()
	go s.hub.run()
	return s
}

func (s *HTTPServer) Router() http.Handler { return s.mux }

// --------- WS broadcasts ----------

func (s *HTTPServer) statusPayload() map[string]any {
	return map[string]any{
		"connected":  s.st.Connected(),
		"symbol":     s.st.Symbol(),
		"currentBar": s.drv.CurrentBar(),
		"generation": s.drv.Generation(),
	}
}

func (s *HTTPServer) levelsPayload() map[string]any {
	return map[string]any{
		"symbol":     s.st.Symbol(),
		"currentBar": s.drv.CurrentBar(),
		"generation": s.drv.Generation(),
		"markers":    s.drv.Markers(),
	}
}

func (s *HTTPServer) hello() [][]byte {
	return [][]byte{
		marshalWS("status", s.statusPayload()),
		marshalWS("levels", s.levelsPayload()),
	}
}

func (s *HTTPServer) BroadcastStatus() {
	s.hub.broadcast <- marshalWS("status", s.statusPayload())
}

func (s *HTTPServer) BroadcastLevels() {
	s.hub.publishLatest(marshalWS("levels", s.levelsPayload()))
}

func (s *HTTPServer) BroadcastAlert(e levels.LevelEntry, at time.Time) {
	s.hub.broadcast <- marshalWS("alert", map[string]any{
		"symbol":  s.st.Symbol(),
		"bar":     e.Bar,
		"price":   e.Price,
		"value":   e.Value,
		"timeISO": at.UTC().Format(time.RFC3339Nano),
	})
}

func (s *HTTPServer) BroadcastError(msg string) {
	s.hub.broadcast <- marshalWS("error", map[string]string{"message": msg})
}

// --------- Routes ----------

func (s *HTTPServer) routes() {
	s.mux.HandleFunc("/ws", s.hub.serveWS)

	s.mux.HandleFunc("/api/health", s.apiHealth)
	s.mux.HandleFunc("/api/config", s.apiConfig)
	s.mux.HandleFunc("/api/settings", s.apiSettings)
	s.mux.HandleFunc("/api/levels", s.apiLevels)
	s.mux.HandleFunc("/api/headline", s.apiHeadline)
}

func (s *HTTPServer) apiHealth(w http.ResponseWriter, r *http.Request) {
	var rss uint64
	if p, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if mem, err := p.MemoryInfo(); err == nil {
			rss = mem.RSS
		}
	}
	writeJSON(w, map[string]any{
		"ok":         true,
		"connected":  s.st.Connected(),
		"barsSeen":   s.st.BarsSeen(),
		"currentBar": s.drv.CurrentBar(),
		"stats":      s.drv.Stats(),
		"coalesced":  s.hub.coalesced.Load(),
		"rssBytes":   rss,
	})
}

func (s *HTTPServer) apiConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"symbol":           s.st.Symbol(),
		"settings":         s.drv.Settings(),
		"generation":       s.drv.Generation(),
		"replayIntervalMs": s.cfg.ReplayIntervalMs,
		"alertCooldownSec": s.cfg.AlertCooldownSeconds,
	})
}

// POST /api/settings with any subset of the settings fields. Every accepted
// change resets the indicator and replays the bar history.
func (s *HTTPServer) apiSettings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST required", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		LookbackBars      *int    `json:"lookbackBars"`
		BarsToUse         *int    `json:"barsToUse"`
		PricesLevels      *int    `json:"pricesLevels"`
		TopItems          *int    `json:"topItems"`
		ExcludeRecentBars *int    `json:"excludeRecentBars"`
		ClusterType       *string `json:"clusterType"`
		DrawMode          *string `json:"drawMode"`
		LineLength        *int    `json:"lineLength"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}

	next := s.drv.Settings()
	setInt := func(dst *int, v *int) {
		if v != nil {
			*dst = *v
		}
	}
	setInt(&next.LookbackBars, req.LookbackBars)
	setInt(&next.BarsToUse, req.BarsToUse)
	setInt(&next.ChunkSize, req.PricesLevels)
	setInt(&next.TopItems, req.TopItems)
	setInt(&next.ExcludeRecentBars, req.ExcludeRecentBars)
	setInt(&next.LineLength, req.LineLength)
	if req.ClusterType != nil {
		kind, err := levels.ParseClusterType(*req.ClusterType)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		next.ClusterType = kind
	}
	if req.DrawMode != nil {
		mode, err := indicator.ParseDrawMode(*req.DrawMode)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		next.DrawMode = mode
	}

	if err := s.drv.Reconfigure(next); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, levels.ErrInvalidConfiguration) {
			status = http.StatusBadRequest
		}
		http.Error(w, err.Error(), status)
		return
	}
	s.st.ResetAlerts()
	s.log.Info("settings changed", slog.String("generation", s.drv.Generation()))
	s.BroadcastLevels()
	writeJSON(w, map[string]any{"ok": true, "settings": s.drv.Settings(), "generation": s.drv.Generation()})
}

func (s *HTTPServer) apiLevels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.levelsPayload())
}

// GET /api/headline?bar=N
func (s *HTTPServer) apiHeadline(w http.ResponseWriter, r *http.Request) {
	bar, err := strconv.Atoi(r.URL.Query().Get("bar"))
	if err != nil || bar < 0 {
		http.Error(w, "bar must be a non-negative integer", http.StatusBadRequest)
		return
	}
	h, ok := s.drv.Headline(bar)
	if !ok {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, h)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
