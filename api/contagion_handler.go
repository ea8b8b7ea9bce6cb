package api

import (
	"net/http"
	"strings"

	"github.com/seenimoa/creditpulse/internal/contagion"
	"github.com/seenimoa/creditpulse/internal/graph"
	"github.com/seenimoa/creditpulse/internal/portfolio"
)

// GraphResponse is the node/edge view of a portfolio graph.
type GraphResponse struct {
	Directed bool         `json:"directed"`
	Nodes    []graph.Node `json:"nodes"`
	Edges    []graph.Edge `json:"edges"`
}

// PropagateResponse lists the bonds a shock reaches.
type PropagateResponse struct {
	Event         string   `json:"event"`
	AffectedBonds []string `json:"affected_bonds"`
}

// ShortestPathResponse is a node path between two graph nodes.
type ShortestPathResponse struct {
	From  string   `json:"from"`
	To    string   `json:"to"`
	Found bool     `json:"found"`
	Path  []string `json:"path"`
}

// engineFor builds a fresh contagion engine over the session portfolio.
// Engines are never shared between requests.
func (s *Server) engineFor(w http.ResponseWriter, r *http.Request) (*contagion.Engine, bool) {
	p, ok := s.portfolioFor(w, r)
	if !ok {
		return nil, false
	}
	return s.buildEngine(w, p)
}

func (s *Server) buildEngine(w http.ResponseWriter, p *portfolio.Portfolio) (*contagion.Engine, bool) {
	eng, err := contagion.FromPortfolio(p)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "build contagion graph: "+err.Error())
		return nil, false
	}
	s.metrics.ObserveContagionQuery()
	return eng, true
}

// requireQuery reads a mandatory query parameter, writing a 400 when absent.
func requireQuery(w http.ResponseWriter, r *http.Request, key string) (string, bool) {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		writeError(w, http.StatusBadRequest, "missing query parameter \""+key+"\"")
		return "", false
	}
	return v, true
}

// handleGraph answers GET /graph. With ?bond= it returns the directed
// single-bond view of that holding instead of the portfolio graph.
func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	if id := strings.TrimSpace(r.URL.Query().Get("bond")); id != "" {
		s.handleBondGraph(w, r, id)
		return
	}
	eng, ok := s.engineFor(w, r)
	if !ok {
		return
	}
	g := eng.Graph()
	writeOK(w, GraphResponse{Directed: g.Directed(), Nodes: g.Nodes(), Edges: g.Edges()})
}

func (s *Server) handleBondGraph(w http.ResponseWriter, r *http.Request, id string) {
	p, ok := s.portfolioFor(w, r)
	if !ok {
		return
	}
	for _, rec := range p.Records() {
		if rec.ID != id {
			continue
		}
		g, err := graph.BuildFromBond(rec)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		writeOK(w, GraphResponse{Directed: g.Directed(), Nodes: g.Nodes(), Edges: g.Edges()})
		return
	}
	writeError(w, http.StatusNotFound, "bond not in portfolio: "+id)
}

// handlePropagate answers GET .../contagion/propagate?event=<sector|issuer>.
func (s *Server) handlePropagate(w http.ResponseWriter, r *http.Request) {
	event, ok := requireQuery(w, r, "event")
	if !ok {
		return
	}
	eng, ok := s.engineFor(w, r)
	if !ok {
		return
	}
	writeOK(w, PropagateResponse{Event: event, AffectedBonds: eng.PropagateEvent(event)})
}

// handlePaths answers GET .../contagion/paths?start=<node>&level=<risk>.
func (s *Server) handlePaths(w http.ResponseWriter, r *http.Request) {
	start, ok := requireQuery(w, r, "start")
	if !ok {
		return
	}
	eng, ok := s.engineFor(w, r)
	if !ok {
		return
	}
	level := contagion.ParseRiskLevel(r.URL.Query().Get("level"))
	writeOK(w, eng.ContagionPaths(start, level))
}

func (s *Server) handleImpact(w http.ResponseWriter, r *http.Request) {
	trigger, ok := requireQuery(w, r, "trigger")
	if !ok {
		return
	}
	eng, ok := s.engineFor(w, r)
	if !ok {
		return
	}
	writeOK(w, eng.Impact(trigger))
}

func (s *Server) handleConnected(w http.ResponseWriter, r *http.Request) {
	node, ok := requireQuery(w, r, "node")
	if !ok {
		return
	}
	eng, ok := s.engineFor(w, r)
	if !ok {
		return
	}
	writeOK(w, map[string]interface{}{"node": node, "connected": eng.ConnectedNodes(node)})
}

// handleShortestPath answers GET .../contagion/shortest?from=&to=, e.g. the
// route from one issuer to another through shared sectors.
func (s *Server) handleShortestPath(w http.ResponseWriter, r *http.Request) {
	from, ok := requireQuery(w, r, "from")
	if !ok {
		return
	}
	to, ok := requireQuery(w, r, "to")
	if !ok {
		return
	}
	eng, ok := s.engineFor(w, r)
	if !ok {
		return
	}
	path, found := eng.Graph().ShortestPath(from, to)
	if path == nil {
		path = []string{}
	}
	writeOK(w, ShortestPathResponse{From: from, To: to, Found: found, Path: path})
}
