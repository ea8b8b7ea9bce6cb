package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/seenimoa/creditpulse/internal/alert"
	"github.com/seenimoa/creditpulse/internal/portfolio"
	"github.com/seenimoa/creditpulse/internal/report"
)

// StressRequest is the body for POST .../stress.
type StressRequest struct {
	Scenario string `json:"scenario"`
}

// AlertRequest is the body for POST /api/v1/alerts/evaluate.
type AlertRequest struct {
	BondID        string    `json:"bond_id"        validate:"required"`
	SpreadHistory []float64 `json:"spread_history"`
	Latest        *float64  `json:"latest_spread"  validate:"required"`
	Channel       string    `json:"channel,omitempty"`
}

// ============================================================
// Scenarios
// ============================================================

func (s *Server) handleScenarios(w http.ResponseWriter, r *http.Request) {
	writeOK(w, s.catalog.All())
}

// handleStress applies a named scenario to the session portfolio. Unknown
// names apply no shock and report known=false.
func (s *Server) handleStress(w http.ResponseWriter, r *http.Request) {
	p, ok := s.portfolioFor(w, r)
	if !ok {
		return
	}
	var req StressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if req.Scenario == "" {
		writeError(w, http.StatusBadRequest, "scenario is required")
		return
	}

	st, err := s.catalog.Apply(p, req.Scenario)
	if err != nil {
		var schemaErr *portfolio.SchemaError
		if errors.As(err, &schemaErr) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.metrics.ObserveScenario(st.Known)
	writeOK(w, st)
}

// ============================================================
// Alerts
// ============================================================

// alertDetector returns a detector snapshot carrying the current threshold
// and channel.
func (s *Server) alertDetector() *alert.Detector {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()
	d := *s.detector
	if s.cfg.Alerts.Threshold > 0 {
		d.Threshold = s.cfg.Alerts.Threshold
	}
	if s.cfg.Alerts.Channel != "" {
		d.Channel = s.cfg.Alerts.Channel
	}
	return &d
}

// handleEvaluate scores one spread observation against its history and
// notifies on an abnormal move.
func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req AlertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if !validBody(w, req) {
		return
	}
	dec := s.alertDetector().Evaluate(r.Context(), alert.Context{
		BondID:  req.BondID,
		History: req.SpreadHistory,
		Channel: req.Channel,
	}, *req.Latest)
	writeOK(w, dec)
}

// handleEvaluatePortfolio evaluates every bond that carries both a spread
// and a spread history.
func (s *Server) handleEvaluatePortfolio(w http.ResponseWriter, r *http.Request) {
	p, ok := s.portfolioFor(w, r)
	if !ok {
		return
	}
	det := s.alertDetector()
	decisions := []alert.Decision{}
	for _, rec := range p.Records() {
		if len(rec.SpreadHistory) == 0 || rec.LatestSpread == nil {
			continue
		}
		decisions = append(decisions, det.EvaluateRecord(r.Context(), rec))
	}
	writeOK(w, decisions)
}

// handleBreaches lists bonds above the static spread threshold; ?bps=
// overrides the configured threshold.
func (s *Server) handleBreaches(w http.ResponseWriter, r *http.Request) {
	p, ok := s.portfolioFor(w, r)
	if !ok {
		return
	}
	if !p.HasColumn(portfolio.ColSpread) {
		writeError(w, http.StatusUnprocessableEntity, (&portfolio.SchemaError{
			Source: p.Source, Missing: []string{portfolio.ColSpread},
		}).Error())
		return
	}
	s.cfgMu.RLock()
	bps := s.cfg.Alerts.BreachBps
	s.cfgMu.RUnlock()
	if v := r.URL.Query().Get("bps"); v != "" {
		x, err := strconv.ParseFloat(v, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bps must be a number")
			return
		}
		bps = x
	}
	writeOK(w, alert.Breaches(p.Records(), bps))
}

// ============================================================
// Report
// ============================================================

// handleReport renders the full risk report. ?format=markdown (default) or
// json.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	p, ok := s.portfolioFor(w, r)
	if !ok {
		return
	}
	format, err := report.ParseFormat(r.URL.Query().Get("format"))
	if err != nil || format == report.FormatTerminal {
		writeError(w, http.StatusBadRequest, "format must be markdown or json")
		return
	}

	s.cfgMu.RLock()
	opts := report.Options{
		Catalog:           s.catalog,
		Threshold:         s.cfg.Alerts.Threshold,
		BreachBps:         s.cfg.Alerts.BreachBps,
		SimulateLiquidity: s.cfg.Features.SimulateLiquidity,
		Insights:          s.insights,
		Logger:            s.log,
	}
	s.cfgMu.RUnlock()

	in := report.Analyze(r.Context(), p, opts)
	cfg := report.DefaultConfig()
	cfg.Format = format
	out, err := report.Generate(in, cfg)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if format == report.FormatJSON {
		w.Header().Set("Content-Type", "application/json")
	} else {
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(out))
}
