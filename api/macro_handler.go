package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/seenimoa/creditpulse/internal/bond"
	"github.com/seenimoa/creditpulse/internal/provider"
	"github.com/seenimoa/creditpulse/internal/providers/fred"
	"github.com/seenimoa/creditpulse/pkg/models"
)

// ============================================================
// Macro data
// ============================================================

// fetchMacro routes a model query through the provider registry and
// writes the result envelope.
func (s *Server) fetchMacro(w http.ResponseWriter, r *http.Request, model provider.ModelType, params provider.QueryParams) {
	if res, ok := s.queryMacro(w, r, model, params); ok {
		writeOK(w, res)
	}
}

func (s *Server) queryMacro(w http.ResponseWriter, r *http.Request, model provider.ModelType, params provider.QueryParams) (*provider.FetchResult, bool) {
	if s.macro == nil {
		writeError(w, http.StatusServiceUnavailable, "macro data is not configured")
		return nil, false
	}
	if p := r.URL.Query().Get("provider"); p != "" {
		params[provider.ParamProvider] = p
	}
	res, err := s.macro.FetchWithFallback(r.Context(), model, params)
	if err != nil {
		s.log.Warn("macro fetch failed", zap.String("model", string(model)), zap.Error(err))
		writeError(w, macroStatus(err), err.Error())
		return nil, false
	}
	return res, true
}

// macroStatus maps a provider failure to an HTTP status.
func macroStatus(err error) int {
	var (
		missing  *provider.ErrMissingParam
		notFound *provider.ErrProviderNotFound
		creds    *provider.ErrInvalidCredentials
		apiErr   *fred.APIError
	)
	switch {
	case errors.As(err, &missing):
		return http.StatusBadRequest
	case errors.As(err, &notFound), errors.As(err, &creds):
		return http.StatusServiceUnavailable
	case errors.As(err, &apiErr) && apiErr.Status == http.StatusBadRequest:
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}

// handleMacroSeries answers GET /macro/series/{series}?start=&end=.
func (s *Server) handleMacroSeries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	s.fetchMacro(w, r, provider.ModelMacroSeries, provider.QueryParams{
		provider.ParamSeries:    strings.ToUpper(chi.URLParam(r, "series")),
		provider.ParamStartDate: q.Get("start"),
		provider.ParamEndDate:   q.Get("end"),
	})
}

func (s *Server) handleMacroSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	s.fetchMacro(w, r, provider.ModelSeriesSearch, provider.QueryParams{
		provider.ParamQuery: q.Get("q"),
		provider.ParamLimit: q.Get("limit"),
	})
}

// handleMacroCurve answers GET /macro/curve?shift= where shift is a
// parallel move in percentage points applied to every tenor.
func (s *Server) handleMacroCurve(w http.ResponseWriter, r *http.Request) {
	var shift float64
	if v := strings.TrimSpace(r.URL.Query().Get("shift")); v != "" {
		x, err := strconv.ParseFloat(v, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "shift must be a number")
			return
		}
		shift = x
	}
	res, ok := s.queryMacro(w, r, provider.ModelYieldCurve, provider.QueryParams{})
	if !ok {
		return
	}
	if pts, isCurve := res.Data.([]models.CurvePoint); isCurve && shift != 0 {
		shifted := *res
		shifted.Data = bond.ShiftCurve(pts, shift)
		res = &shifted
	}
	writeOK(w, res)
}

// handleMacroSpreads answers GET /macro/spreads/{rating} with the credit
// spread index of a rating bucket (AAA … CCC, IG, HY).
func (s *Server) handleMacroSpreads(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	s.fetchMacro(w, r, provider.ModelCreditSpreadIndex, provider.QueryParams{
		provider.ParamRating:    chi.URLParam(r, "rating"),
		provider.ParamStartDate: q.Get("start"),
		provider.ParamEndDate:   q.Get("end"),
	})
}

// ============================================================
// Insights
// ============================================================

// handleInsights answers GET /insights/{bond}?issuer=.
func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	bondID := chi.URLParam(r, "bond")
	writeOK(w, s.insights.Insights(r.Context(), bondID, r.URL.Query().Get("issuer")))
}
