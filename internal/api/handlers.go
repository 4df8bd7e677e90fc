package api

import (
	"net/http"
	"time"

	"github.com/ndrandal/marketsim/internal/catalog"
	"github.com/ndrandal/marketsim/internal/engine"
	"github.com/ndrandal/marketsim/internal/wire"
)

// handleInstruments returns every instrument with its live state.
func (s *Server) handleInstruments(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.eng.Instruments())
}

// handleInstrument returns a single instrument.
func (s *Server) handleInstrument(w http.ResponseWriter, r *http.Request) {
	symbol := r.PathValue("symbol")
	in, ok := s.eng.Instrument(symbol)
	if !ok {
		writeError(w, http.StatusNotFound, "instrument not found: "+symbol)
		return
	}
	writeJSON(w, http.StatusOK, in)
}

func (s *Server) handleIndices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.eng.Indices())
}

// handleHistory returns the cached or freshly generated series. Unknown
// symbols get an empty array rather than a 404.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	tfParam := r.URL.Query().Get("timeframe")
	if tfParam == "" {
		tfParam = string(engine.Timeframe1D)
	}
	tf, err := engine.ParseTimeframe(tfParam)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.eng.History(r.PathValue("symbol"), tf))
}

func (s *Server) handleInvalidateHistory(w http.ResponseWriter, r *http.Request) {
	symbol := r.PathValue("symbol")
	n := s.eng.InvalidateHistory(symbol)
	writeJSON(w, http.StatusOK, map[string]any{"symbol": symbol, "invalidated": n})
}

type selectedResponse struct {
	Symbol     string             `json:"symbol"`
	Instrument *engine.Instrument `json:"instrument,omitempty"`
}

func (s *Server) selected() selectedResponse {
	sym := s.eng.Selected()
	resp := selectedResponse{Symbol: sym}
	if in, ok := s.eng.Instrument(sym); ok {
		resp.Instrument = &in
	}
	return resp
}

func (s *Server) handleSelected(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.selected())
}

type selectRequest struct {
	Symbol string `json:"symbol" validate:"required,max=16,printascii"`
}

// handleSetSelected changes the selection. The symbol is not checked
// against the catalog.
func (s *Server) handleSetSelected(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if err := s.decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.eng.SetSelected(req.Symbol)
	s.mgr.BroadcastStatus(wire.StatusSelected, req.Symbol)
	writeJSON(w, http.StatusOK, s.selected())
}

type regimeResponse struct {
	engine.RegimeState
	Running bool `json:"running"`
}

func (s *Server) handleRegime(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, regimeResponse{RegimeState: s.eng.Regime(), Running: s.eng.Running()})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.eng.Events())
}

type triggerResponse struct {
	Triggered engine.EventKind   `json:"triggered"`
	Regime    engine.RegimeState `json:"regime"`
}

// handleTrigger forces a regime transition by name.
func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	kind, err := engine.ParseTrigger(r.PathValue("kind"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.eng.Trigger(kind)
	s.log.Info().Str("kind", string(kind)).Msg("regime event triggered")
	writeJSON(w, http.StatusOK, triggerResponse{Triggered: kind, Regime: s.eng.Regime()})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	s.eng.Start()
	s.mgr.BroadcastStatus(wire.StatusStarted, "")
	writeJSON(w, http.StatusOK, map[string]bool{"running": true})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.eng.Stop()
	s.mgr.BroadcastStatus(wire.StatusStopped, "")
	writeJSON(w, http.StatusOK, map[string]bool{"running": false})
}

func (s *Server) handleNews(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, catalog.News())
}

func (s *Server) handleMarket(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, catalog.Status(s.now()))
}

type statsResponse struct {
	Uptime       string `json:"uptime"`
	Running      bool   `json:"running"`
	Ticks        uint64 `json:"ticks"`
	Clients      int    `json:"clients"`
	Connects     uint64 `json:"connects"`
	Dropped      uint64 `json:"dropped"`
	Instruments  int    `json:"instruments"`
	Events       int    `json:"events"`
	CachedSeries int    `json:"cachedSeries"`

	Subscriptions    map[string]int `json:"subscriptions"`
	AllSymbolClients int            `json:"allSymbolClients"`
}

// handleStats returns runtime and aggregate statistics.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	perSymbol, all := s.mgr.Subscriptions()
	writeJSON(w, http.StatusOK, statsResponse{
		Uptime:       time.Since(s.startAt).Truncate(time.Second).String(),
		Running:      s.eng.Running(),
		Ticks:        s.eng.TickCount(),
		Clients:      s.mgr.ClientCount(),
		Connects:     s.mgr.TotalConnects(),
		Dropped:      s.mgr.Dropped(),
		Instruments:  len(s.eng.Instruments()),
		Events:       len(s.eng.Events()),
		CachedSeries: s.eng.HistoryCacheSize(),

		Subscriptions:    perSymbol,
		AllSymbolClients: all,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "running": s.eng.Running()})
}
