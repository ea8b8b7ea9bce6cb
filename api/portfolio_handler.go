package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/seenimoa/creditpulse/internal/bond"
	"github.com/seenimoa/creditpulse/internal/portfolio"
	"github.com/seenimoa/creditpulse/pkg/models"
)

// maxUploadBytes caps a portfolio upload.
const maxUploadBytes = 32 << 20

// UploadResponse is returned by POST /api/v1/portfolios.
type UploadResponse struct {
	SessionID    string   `json:"session_id"`
	Source       string   `json:"source"`
	Bonds        int      `json:"bonds"`
	Columns      []string `json:"columns"`
	ExpiresInSec int      `json:"expires_in_sec"`
}

// handleUpload loads a portfolio from a multipart "file" field or from the
// raw body, and opens a session holding it. The format follows the file
// name; ?name= names a raw body.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	var (
		src  io.Reader
		name string
	)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		file, hdr, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "multipart upload needs a \"file\" field: "+err.Error())
			return
		}
		defer file.Close()
		src, name = file, hdr.Filename
	} else {
		src, name = r.Body, r.URL.Query().Get("name")
		if name == "" {
			name = "upload.csv"
		}
	}

	s.cfgMu.RLock()
	timeout := s.cfg.Engine.LoadTimeout()
	s.cfgMu.RUnlock()
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	p, err := portfolio.LoadReader(ctx, src, name, portfolio.FormatForPath(name))
	s.metrics.ObserveLoad(err)
	if err != nil {
		s.log.Warn("portfolio upload rejected", zap.String("source", name), zap.Error(err))
		writeError(w, loadStatus(err), err.Error())
		return
	}

	id := uuid.NewString()
	s.sessions.Set(id, p)
	s.log.Info("portfolio session opened",
		zap.String("session_id", id), zap.String("source", name), zap.Int("bonds", p.Len()))

	writeJSON(w, http.StatusCreated, APIResponse{Success: true, Data: UploadResponse{
		SessionID:    id,
		Source:       p.Source,
		Bonds:        p.Len(),
		Columns:      p.Columns,
		ExpiresInSec: int(s.sessions.TTL().Seconds()),
	}})
}

// loadStatus maps a load failure to an HTTP status.
func loadStatus(err error) int {
	var (
		schemaErr *portfolio.SchemaError
		parseErr  *portfolio.ParseError
		tooLarge  *http.MaxBytesError
	)
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &schemaErr), errors.As(err, &parseErr):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadRequest
	}
}

// portfolioFor resolves the {id} session and refreshes its TTL. It writes
// a 404 and returns false when the session is unknown or expired.
func (s *Server) portfolioFor(w http.ResponseWriter, r *http.Request) (*portfolio.Portfolio, bool) {
	id := chi.URLParam(r, "id")
	v, ok := s.sessions.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown or expired portfolio session: "+id)
		return nil, false
	}
	s.sessions.Touch(id)
	return v.(*portfolio.Portfolio), true
}

func (s *Server) handleGetPortfolio(w http.ResponseWriter, r *http.Request) {
	p, ok := s.portfolioFor(w, r)
	if !ok {
		return
	}
	writeOK(w, p)
}

func (s *Server) handleDeletePortfolio(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := s.sessions.Get(id); !ok {
		writeError(w, http.StatusNotFound, "unknown or expired portfolio session: "+id)
		return
	}
	s.sessions.Invalidate(id)
	writeOK(w, map[string]string{"deleted": id})
}

// ============================================================
// Statistics
// ============================================================

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	p, ok := s.portfolioFor(w, r)
	if !ok {
		return
	}
	writeOK(w, portfolio.Summarize(p))
}

func (s *Server) handleSectors(w http.ResponseWriter, r *http.Request) {
	p, ok := s.portfolioFor(w, r)
	if !ok {
		return
	}
	res := portfolio.SectorExposure(p)
	if !res.OK() {
		writeError(w, http.StatusUnprocessableEntity, res.ErrorMessage())
		return
	}
	writeOK(w, res.Value)
}

// ConcentrationResponse carries the sector shares both keyed and ranked.
type ConcentrationResponse struct {
	Shares map[string]float64      `json:"shares"`
	Ranked []portfolio.SectorShare `json:"ranked"`
}

func (s *Server) handleConcentration(w http.ResponseWriter, r *http.Request) {
	p, ok := s.portfolioFor(w, r)
	if !ok {
		return
	}
	res := portfolio.ConcentrationRisk(p)
	if !res.OK() {
		writeError(w, http.StatusUnprocessableEntity, res.ErrorMessage())
		return
	}
	writeOK(w, ConcentrationResponse{Shares: res.Value, Ranked: portfolio.Ranked(res.Value)})
}

// handleLiquidity reports liquidity per bond. ?simulate= overrides the
// configured feature flag; ?seed= makes simulated values reproducible.
func (s *Server) handleLiquidity(w http.ResponseWriter, r *http.Request) {
	p, ok := s.portfolioFor(w, r)
	if !ok {
		return
	}
	s.cfgMu.RLock()
	simulate := s.cfg.Features.SimulateLiquidity
	s.cfgMu.RUnlock()

	q := r.URL.Query()
	if v := q.Get("simulate"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "simulate must be a boolean")
			return
		}
		simulate = b
	}
	var seed uint64
	if v := q.Get("seed"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "seed must be an unsigned integer")
			return
		}
		seed = n
	}
	writeOK(w, portfolio.Liquidity(p, simulate, seed))
}

// AnalyticsRow is one bond's analytics with its failures spelled out.
type AnalyticsRow struct {
	bond.Analytics
	Errors []string `json:"errors,omitempty"`
}

// handleAnalytics computes duration, modified duration, convexity and
// credit risk for every bond. ?rate= overrides the discount rate (percent);
// ?legacy_convexity=true discounts convexity at the historical fixed rate.
func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	p, ok := s.portfolioFor(w, r)
	if !ok {
		return
	}
	analyze, ok := s.analyzer(w, r)
	if !ok {
		return
	}
	rows := make([]AnalyticsRow, 0, p.Len())
	for _, rec := range p.Records() {
		rows = append(rows, analyze(rec))
	}
	writeOK(w, rows)
}

// handleBondAnalytics answers POST /bonds/analytics for a single bond
// record sent in the body. The record must carry bond_id, issuer, sector
// and rating; the query parameters match handleAnalytics.
func (s *Server) handleBondAnalytics(w http.ResponseWriter, r *http.Request) {
	var rec models.BondRecord
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if err := rec.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	analyze, ok := s.analyzer(w, r)
	if !ok {
		return
	}
	writeOK(w, analyze(rec))
}

// analyzer resolves the discount rates for a request and returns the
// per-bond analytics function.
func (s *Server) analyzer(w http.ResponseWriter, r *http.Request) (func(models.BondRecord) AnalyticsRow, bool) {
	s.cfgMu.RLock()
	rate, convRate := s.cfg.Engine.DiscountRatePct, s.cfg.Engine.ConvexityRatePct
	s.cfgMu.RUnlock()

	if v := strings.TrimSpace(r.URL.Query().Get("rate")); v != "" {
		x, err := strconv.ParseFloat(v, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "rate must be a number")
			return nil, false
		}
		rate, convRate = x, x
	}
	legacy := r.URL.Query().Get("legacy_convexity") == "true"

	return func(rec models.BondRecord) AnalyticsRow {
		a := bond.Analyze(rec, rate, convRate)
		if legacy {
			a = bond.AnalyzeLegacy(rec, rate)
		}
		row := AnalyticsRow{Analytics: a}
		for _, err := range []error{a.DurationErr, a.ConvexityErr} {
			if err != nil {
				row.Errors = append(row.Errors, err.Error())
			}
		}
		return row
	}, true
}
