// Package api — configuration management endpoints.
package api

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/seenimoa/creditpulse/internal/config"
	"github.com/seenimoa/creditpulse/internal/logging"
)

// ConfigResponse is the JSON envelope returned by GET /api/v1/config.
type ConfigResponse struct {
	Config     *config.Config `json:"config"`
	ConfigFile string         `json:"config_file"` // path to the active config file
}

// ConfigUpdate is the body for PUT /api/v1/config. Only runtime-tunable
// settings are accepted; absent fields keep their value.
type ConfigUpdate struct {
	Alerts *struct {
		Threshold *float64 `json:"threshold"`
		Channel   *string  `json:"channel"`
		BreachBps *float64 `json:"breach_bps"`
	} `json:"alerts"`
	Features *struct {
		SimulateLiquidity *bool `json:"simulate_liquidity"`
		NewsFeed          *bool `json:"news_feed"`
	} `json:"features"`
	Engine *struct {
		DiscountRatePct  *float64 `json:"discount_rate_pct"`
		ConvexityRatePct *float64 `json:"convexity_rate_pct"`
	} `json:"engine"`
	Logging *struct {
		Level *string `json:"level"`
	} `json:"logging"`
}

// handleGetConfig returns the running configuration with secrets masked.
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()
	writeOK(w, ConfigResponse{
		Config:     config.Redacted(s.cfg),
		ConfigFile: config.ConfigFilePath(),
	})
}

// handleUpdateConfig merges the update into the running config, validates
// it, persists it and returns the result. ?persist=false skips the write.
func (s *Server) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	var upd ConfigUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	s.cfgMu.Lock()
	defer s.cfgMu.Unlock()

	next := *s.cfg
	if err := mergeConfig(&next, &upd); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := next.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	cfgPath := config.ConfigFilePath()
	if r.URL.Query().Get("persist") != "false" {
		if err := config.SaveToFile(&next, cfgPath); err != nil {
			writeError(w, http.StatusInternalServerError, "failed to save config: "+err.Error())
			return
		}
	}
	*s.cfg = next
	s.log.Info("configuration updated", zap.String("config_file", cfgPath))

	writeOK(w, ConfigResponse{
		Config:     config.Redacted(s.cfg),
		ConfigFile: cfgPath,
	})
}

// handleGetConfigKeys returns the status of every secret.
func (s *Server) handleGetConfigKeys(w http.ResponseWriter, r *http.Request) {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()
	writeOK(w, config.CheckKeys(s.cfg))
}

// mergeConfig copies the set fields of src into dst.
func mergeConfig(dst *config.Config, src *ConfigUpdate) error {
	if a := src.Alerts; a != nil {
		if a.Threshold != nil {
			dst.Alerts.Threshold = *a.Threshold
		}
		if a.Channel != nil {
			dst.Alerts.Channel = *a.Channel
		}
		if a.BreachBps != nil {
			dst.Alerts.BreachBps = *a.BreachBps
		}
	}
	if f := src.Features; f != nil {
		if f.SimulateLiquidity != nil {
			dst.Features.SimulateLiquidity = *f.SimulateLiquidity
		}
		if f.NewsFeed != nil {
			dst.Features.NewsFeed = *f.NewsFeed
		}
	}
	if e := src.Engine; e != nil {
		if e.DiscountRatePct != nil {
			dst.Engine.DiscountRatePct = *e.DiscountRatePct
		}
		if e.ConvexityRatePct != nil {
			dst.Engine.ConvexityRatePct = *e.ConvexityRatePct
		}
	}
	if l := src.Logging; l != nil && l.Level != nil {
		if _, err := logging.ParseLevel(*l.Level); err != nil {
			return err
		}
		dst.Logging.Level = *l.Level
	}
	return nil
}
