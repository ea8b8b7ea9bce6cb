package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/seenimoa/creditpulse/internal/config"
	"github.com/seenimoa/creditpulse/internal/provider"
	"github.com/seenimoa/creditpulse/internal/providers/fred"
	"github.com/seenimoa/creditpulse/pkg/models"
)

// ════════════════════════════════════════════════════════════════════
// Test Helpers
// ════════════════════════════════════════════════════════════════════

const sampleCSV = `bond,sector,issuer,rating,duration,convexity,var,expectedshortfall,spread,spread_history
ACME2025,Technology,Acme Corp,A,4.5,0.30,12000,15000,120,100;102;98;101;99
XYZ2030,Financials,XYZ Inc,AA,7.1,0.62,18000,22500,95,
BANK2028,Financials,First Bank,BBB,5.2,0.41,9000,11000,180,
TEL2031,Telecom,TelCo,BB,6.0,0.55,21000,26000,310,
`

type recordingNotifier struct {
	mu   sync.Mutex
	sent []models.Notification
}

func (n *recordingNotifier) Name() string { return "recorder" }

func (n *recordingNotifier) Notify(_ context.Context, msg models.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

func testServer(t *testing.T, deps Deps) *Server {
	t.Helper()
	cfg := config.Default()
	srv, err := NewServer(cfg, deps)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go srv.Stream().Run(ctx)
	return srv
}

func do(t *testing.T, srv *Server, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder, data interface{}) APIResponse {
	t.Helper()
	var raw struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   string          `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&raw); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if data != nil && len(raw.Data) > 0 {
		if err := json.Unmarshal(raw.Data, data); err != nil {
			t.Fatalf("failed to decode data: %v", err)
		}
	}
	return APIResponse{Success: raw.Success, Error: raw.Error}
}

func upload(t *testing.T, srv *Server) string {
	t.Helper()
	rec := do(t, srv, http.MethodPost, "/api/v1/portfolios?name=sample.csv", strings.NewReader(sampleCSV), "text/csv")
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload status: got %d, want 201 (%s)", rec.Code, rec.Body.String())
	}
	var up UploadResponse
	decodeResponse(t, rec, &up)
	if up.SessionID == "" {
		t.Fatal("upload returned no session id")
	}
	return up.SessionID
}

// ════════════════════════════════════════════════════════════════════
// Health & sessions
// ════════════════════════════════════════════════════════════════════

func TestHealth(t *testing.T) {
	srv := testServer(t, Deps{})
	rec := do(t, srv, http.MethodGet, "/health", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rec.Code)
	}
	var data map[string]interface{}
	resp := decodeResponse(t, rec, &data)
	if !resp.Success || data["status"] != "ok" {
		t.Errorf("health: got %+v / %v", resp, data)
	}
}

func TestUploadRawAndSummary(t *testing.T) {
	srv := testServer(t, Deps{})
	id := upload(t, srv)

	rec := do(t, srv, http.MethodGet, "/api/v1/portfolios/"+id+"/summary", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("summary status: got %d", rec.Code)
	}
	var summary struct {
		Source    string `json:"source"`
		Aggregate struct {
			Value struct {
				Bonds int     `json:"bonds"`
				VaR   float64 `json:"portfolio_var"`
			} `json:"value"`
		} `json:"aggregate"`
	}
	decodeResponse(t, rec, &summary)
	if summary.Aggregate.Value.Bonds != 4 {
		t.Errorf("bonds: got %d, want 4", summary.Aggregate.Value.Bonds)
	}
	if summary.Aggregate.Value.VaR != 60000 {
		t.Errorf("portfolio_var: got %v, want 60000", summary.Aggregate.Value.VaR)
	}
}

func TestUploadMultipart(t *testing.T) {
	srv := testServer(t, Deps{})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "book.csv")
	if err != nil {
		t.Fatal(err)
	}
	fw.Write([]byte(sampleCSV))
	mw.Close()

	rec := do(t, srv, http.MethodPost, "/api/v1/portfolios", &buf, mw.FormDataContentType())
	if rec.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want 201 (%s)", rec.Code, rec.Body.String())
	}
	var up UploadResponse
	decodeResponse(t, rec, &up)
	if up.Source != "book.csv" || up.Bonds != 4 {
		t.Errorf("upload: got %+v", up)
	}
}

func TestUploadMissingColumns(t *testing.T) {
	srv := testServer(t, Deps{})
	rec := do(t, srv, http.MethodPost, "/api/v1/portfolios",
		strings.NewReader("bond,sector,duration\nA,B,1\n"), "text/csv")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status: got %d, want 422", rec.Code)
	}
	resp := decodeResponse(t, rec, nil)
	if !strings.Contains(resp.Error, "convexity") {
		t.Errorf("error should name missing columns: %q", resp.Error)
	}
}

func TestUnknownSession(t *testing.T) {
	srv := testServer(t, Deps{})
	rec := do(t, srv, http.MethodGet, "/api/v1/portfolios/nope/summary", nil, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", rec.Code)
	}
}

func TestDeletePortfolio(t *testing.T) {
	srv := testServer(t, Deps{})
	id := upload(t, srv)
	if rec := do(t, srv, http.MethodDelete, "/api/v1/portfolios/"+id, nil, ""); rec.Code != http.StatusOK {
		t.Fatalf("delete status: got %d", rec.Code)
	}
	if rec := do(t, srv, http.MethodGet, "/api/v1/portfolios/"+id, nil, ""); rec.Code != http.StatusNotFound {
		t.Errorf("after delete: got %d, want 404", rec.Code)
	}
}

// ════════════════════════════════════════════════════════════════════
// Statistics
// ════════════════════════════════════════════════════════════════════

func TestConcentration(t *testing.T) {
	srv := testServer(t, Deps{})
	id := upload(t, srv)
	rec := do(t, srv, http.MethodGet, "/api/v1/portfolios/"+id+"/concentration", nil, "")
	var conc struct {
		Ranked []struct {
			Sector string  `json:"sector"`
			Share  float64 `json:"share"`
		} `json:"ranked"`
	}
	decodeResponse(t, rec, &conc)
	if len(conc.Ranked) != 3 || conc.Ranked[0].Sector != "Financials" || conc.Ranked[0].Share != 0.5 {
		t.Errorf("ranked: got %+v", conc.Ranked)
	}
}

func TestLiquidityBadSeed(t *testing.T) {
	srv := testServer(t, Deps{})
	id := upload(t, srv)
	rec := do(t, srv, http.MethodGet, "/api/v1/portfolios/"+id+"/liquidity?seed=-1", nil, "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", rec.Code)
	}
	rec = do(t, srv, http.MethodGet, "/api/v1/portfolios/"+id+"/liquidity?simulate=true&seed=7", nil, "")
	var rows []struct {
		Available bool `json:"available"`
		Simulated bool `json:"simulated"`
	}
	decodeResponse(t, rec, &rows)
	if len(rows) != 4 || !rows[0].Simulated || !rows[0].Available {
		t.Errorf("liquidity: got %+v", rows)
	}
}

func TestAnalytics(t *testing.T) {
	srv := testServer(t, Deps{})
	id := upload(t, srv)
	rec := do(t, srv, http.MethodGet, "/api/v1/portfolios/"+id+"/analytics?rate=5", nil, "")
	var rows []AnalyticsRow
	decodeResponse(t, rec, &rows)
	if len(rows) != 4 {
		t.Fatalf("rows: got %d, want 4", len(rows))
	}
	if rows[0].BondID != "ACME2025" || rows[0].Duration <= 0 || len(rows[0].Errors) != 0 {
		t.Errorf("ACME analytics: got %+v", rows[0])
	}
}

func TestAnalyticsLegacyConvexity(t *testing.T) {
	srv := testServer(t, Deps{})
	id := upload(t, srv)
	var current, legacy []AnalyticsRow
	decodeResponse(t, do(t, srv, http.MethodGet, "/api/v1/portfolios/"+id+"/analytics?rate=8", nil, ""), &current)
	decodeResponse(t, do(t, srv, http.MethodGet, "/api/v1/portfolios/"+id+"/analytics?rate=8&legacy_convexity=true", nil, ""), &legacy)
	if len(current) != 4 || len(legacy) != 4 {
		t.Fatalf("rows: got %d and %d", len(current), len(legacy))
	}
	if legacy[0].Duration != current[0].Duration {
		t.Errorf("duration should not change: %v vs %v", legacy[0].Duration, current[0].Duration)
	}
	if legacy[0].Convexity == current[0].Convexity {
		t.Errorf("legacy convexity should differ at 8%%: both %v", legacy[0].Convexity)
	}
}

// ════════════════════════════════════════════════════════════════════
// Contagion
// ════════════════════════════════════════════════════════════════════

func TestBondGraph(t *testing.T) {
	srv := testServer(t, Deps{})
	id := upload(t, srv)
	var g GraphResponse
	decodeResponse(t, do(t, srv, http.MethodGet, "/api/v1/portfolios/"+id+"/graph?bond=ACME2025", nil, ""), &g)
	if !g.Directed || len(g.Nodes) != 4 || len(g.Edges) != 3 {
		t.Fatalf("bond graph: got %+v", g)
	}
	for _, e := range g.Edges {
		if e.From != "Acme Corp" {
			t.Errorf("edge should start at the issuer: %+v", e)
		}
	}

	if rec := do(t, srv, http.MethodGet, "/api/v1/portfolios/"+id+"/graph?bond=NOPE", nil, ""); rec.Code != http.StatusNotFound {
		t.Errorf("unknown bond: got %d, want 404", rec.Code)
	}
}

func TestPropagate(t *testing.T) {
	srv := testServer(t, Deps{})
	id := upload(t, srv)
	rec := do(t, srv, http.MethodGet, "/api/v1/portfolios/"+id+"/contagion/propagate?event=Financials", nil, "")
	var got PropagateResponse
	decodeResponse(t, rec, &got)
	if strings.Join(got.AffectedBonds, ",") != "BANK2028,XYZ2030" {
		t.Errorf("affected: got %v", got.AffectedBonds)
	}

	rec = do(t, srv, http.MethodGet, "/api/v1/portfolios/"+id+"/contagion/propagate", nil, "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing event: got %d, want 400", rec.Code)
	}
}

func TestContagionPathsColor(t *testing.T) {
	srv := testServer(t, Deps{})
	id := upload(t, srv)
	rec := do(t, srv, http.MethodGet, "/api/v1/portfolios/"+id+"/contagion/paths?start=Financials&level=high", nil, "")
	var paths []struct {
		From  string `json:"from"`
		To    string `json:"to"`
		Level string `json:"risk_level"`
		Color string `json:"color"`
	}
	decodeResponse(t, rec, &paths)
	if len(paths) != 2 {
		t.Fatalf("paths: got %d, want 2", len(paths))
	}
	for _, p := range paths {
		if p.Color != "red" || p.Level != "high" {
			t.Errorf("path %+v: want high/red", p)
		}
	}
}

func TestShortestIssuerPath(t *testing.T) {
	srv := testServer(t, Deps{})
	id := upload(t, srv)
	rec := do(t, srv, http.MethodGet,
		"/api/v1/portfolios/"+id+"/contagion/shortest?from=XYZ+Inc&to=First+Bank", nil, "")
	var got ShortestPathResponse
	decodeResponse(t, rec, &got)
	want := "XYZ Inc>XYZ2030>Financials>BANK2028>First Bank"
	if !got.Found || strings.Join(got.Path, ">") != want {
		t.Errorf("path: got %v (found=%v), want %s", got.Path, got.Found, want)
	}
}

// ════════════════════════════════════════════════════════════════════
// Scenarios, alerts, report
// ════════════════════════════════════════════════════════════════════

func TestStress(t *testing.T) {
	srv := testServer(t, Deps{})
	id := upload(t, srv)

	rec := do(t, srv, http.MethodPost, "/api/v1/portfolios/"+id+"/stress",
		strings.NewReader(`{"scenario":"2008 Crisis"}`), "application/json")
	var st struct {
		Known bool `json:"known"`
		Rows  []struct {
			Bond           string   `json:"bond"`
			Spread         *float64 `json:"spread"`
			StressedSpread *float64 `json:"stressed_spread"`
		} `json:"rows"`
	}
	decodeResponse(t, rec, &st)
	if !st.Known || len(st.Rows) != 4 {
		t.Fatalf("stress: got %+v", st)
	}
	if *st.Rows[0].Spread != 120 || math.Abs(*st.Rows[0].StressedSpread-120.03) > 1e-9 {
		t.Errorf("ACME spreads: got %v -> %v", *st.Rows[0].Spread, *st.Rows[0].StressedSpread)
	}

	rec = do(t, srv, http.MethodPost, "/api/v1/portfolios/"+id+"/stress",
		strings.NewReader(`{"scenario":"Martian Invasion"}`), "application/json")
	decodeResponse(t, rec, &st)
	if st.Known {
		t.Error("unknown scenario reported as known")
	}
}

func TestScenarioList(t *testing.T) {
	srv := testServer(t, Deps{})
	var list []struct {
		Name string `json:"name"`
	}
	decodeResponse(t, do(t, srv, http.MethodGet, "/api/v1/scenarios", nil, ""), &list)
	if len(list) != 3 {
		t.Errorf("scenarios: got %d, want 3", len(list))
	}
}

func TestEvaluateAlertNotifiesAndStreams(t *testing.T) {
	n := &recordingNotifier{}
	srv := testServer(t, Deps{Notifier: n})
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws/alerts"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	other, _, err := websocket.DefaultDialer.Dial(wsURL+"?bonds=TEL2031", nil)
	if err != nil {
		t.Fatalf("dial filtered: %v", err)
	}
	defer other.Close()

	deadline := time.Now().Add(2 * time.Second)
	for srv.Stream().Subscribers() < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	body := `{"bond_id":"ACME2025","spread_history":[100,102,98,101,99],"latest_spread":120}`
	resp, err := http.Post(ts.URL+"/api/v1/alerts/evaluate", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var env struct {
		Data struct {
			Abnormal  bool    `json:"abnormal"`
			Delivered bool    `json:"delivered"`
			ZScore    float64 `json:"z_score"`
			Message   string  `json:"message"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatal(err)
	}
	if !env.Data.Abnormal || !env.Data.Delivered {
		t.Errorf("decision: got %+v", env.Data)
	}
	if env.Data.Message != "Abnormal spread move detected! Z-score: 14.14" {
		t.Errorf("message: got %q", env.Data.Message)
	}
	if n.count() != 1 {
		t.Errorf("notifications: got %d, want 1", n.count())
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg struct {
		Type string            `json:"type"`
		Data models.AlertEvent `json:"data"`
	}
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read ws: %v", err)
	}
	if msg.Type != MsgAlert || msg.Data.BondID != "ACME2025" || !msg.Data.Abnormal {
		t.Errorf("ws message: got %+v", msg)
	}

	_ = other.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	if _, raw, err := other.ReadMessage(); err == nil {
		t.Errorf("subscriber filtered to TEL2031 received %s", raw)
	}
}

func TestSubscriberFilter(t *testing.T) {
	c := newSubscriber()
	if !c.wants("ANY") {
		t.Error("unfiltered subscriber should want every bond")
	}
	got := c.subscribe(Subscription{Bonds: []string{" ACME2025", "ACME2025", "", "TEL2031"}})
	if strings.Join(got, ",") != "ACME2025,TEL2031" {
		t.Errorf("subscribe: got %v", got)
	}
	if !c.wants("TEL2031") || c.wants("XYZ2030") {
		t.Error("filter not applied")
	}
	c.subscribe(Subscription{})
	if !c.wants("XYZ2030") {
		t.Error("empty subscription should clear the filter")
	}
}

func TestSubscribeFrame(t *testing.T) {
	srv := testServer(t, Deps{})
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/api/v1/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(map[string]any{"type": "subscribe", "data": map[string]any{"bonds": []string{"BANK2028"}}}); err != nil {
		t.Fatal(err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg struct {
		Type string       `json:"type"`
		Data Subscription `json:"data"`
	}
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg.Type != MsgSubscribed || len(msg.Data.Bonds) != 1 || msg.Data.Bonds[0] != "BANK2028" {
		t.Errorf("subscribed frame: got %+v", msg)
	}
}

func TestEvaluateAlertValidation(t *testing.T) {
	srv := testServer(t, Deps{})
	rec := do(t, srv, http.MethodPost, "/api/v1/alerts/evaluate",
		strings.NewReader(`{"spread_history":[1,2,3]}`), "application/json")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want 400", rec.Code)
	}
	resp := decodeResponse(t, rec, nil)
	if !strings.Contains(resp.Error, "bond_id") || !strings.Contains(resp.Error, "latest_spread") {
		t.Errorf("error should name both fields: %q", resp.Error)
	}

	rec = do(t, srv, http.MethodPost, "/api/v1/alerts/evaluate",
		strings.NewReader(`{"bond_id":"ACME2025","spread_history":[1,2,3]}`), "application/json")
	resp = decodeResponse(t, rec, nil)
	if rec.Code != http.StatusBadRequest || strings.Contains(resp.Error, "bond_id") {
		t.Errorf("only latest_spread is missing: got %d %q", rec.Code, resp.Error)
	}
}

func TestBondAnalyticsEndpoint(t *testing.T) {
	srv := testServer(t, Deps{})
	body := `{"bond_id":"ACME2025","issuer":"Acme Corp","sector":"Technology","rating":"A","cash_flows":[5,5,105]}`
	rec := do(t, srv, http.MethodPost, "/api/v1/bonds/analytics?rate=5", strings.NewReader(body), "application/json")
	var row AnalyticsRow
	decodeResponse(t, rec, &row)
	if rec.Code != http.StatusOK || row.BondID != "ACME2025" || row.Duration != 2.86 || len(row.Errors) != 0 {
		t.Errorf("analytics: got %d %+v", rec.Code, row)
	}

	rec = do(t, srv, http.MethodPost, "/api/v1/bonds/analytics",
		strings.NewReader(`{"bond_id":"ACME2025","rating":"A"}`), "application/json")
	resp := decodeResponse(t, rec, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want 400", rec.Code)
	}
	for _, field := range []string{"issuer", "sector"} {
		if !strings.Contains(resp.Error, field) {
			t.Errorf("error %q does not name %s", resp.Error, field)
		}
	}
}

func TestEvaluatePortfolio(t *testing.T) {
	n := &recordingNotifier{}
	srv := testServer(t, Deps{Notifier: n})
	id := upload(t, srv)
	rec := do(t, srv, http.MethodPost, "/api/v1/portfolios/"+id+"/alerts/evaluate", nil, "")
	var decisions []struct {
		BondID   string `json:"bond_id"`
		Abnormal bool   `json:"abnormal"`
	}
	decodeResponse(t, rec, &decisions)
	if len(decisions) != 1 || decisions[0].BondID != "ACME2025" || !decisions[0].Abnormal {
		t.Errorf("decisions: got %+v", decisions)
	}
	if n.count() != 1 {
		t.Errorf("notifications: got %d, want 1", n.count())
	}
}

func TestBreaches(t *testing.T) {
	srv := testServer(t, Deps{})
	id := upload(t, srv)
	rec := do(t, srv, http.MethodGet, "/api/v1/portfolios/"+id+"/breaches?bps=150", nil, "")
	var breaches []struct {
		BondID string `json:"bond_id"`
	}
	decodeResponse(t, rec, &breaches)
	if len(breaches) != 2 || breaches[0].BondID != "BANK2028" || breaches[1].BondID != "TEL2031" {
		t.Errorf("breaches: got %+v", breaches)
	}
}

func TestReportMarkdown(t *testing.T) {
	srv := testServer(t, Deps{})
	id := upload(t, srv)
	rec := do(t, srv, http.MethodGet, "/api/v1/portfolios/"+id+"/report", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/markdown") {
		t.Errorf("content type: got %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "# Portfolio Risk Report") {
		t.Errorf("report body missing title:\n%s", rec.Body.String())
	}

	rec = do(t, srv, http.MethodGet, "/api/v1/portfolios/"+id+"/report?format=pdf", nil, "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("pdf format: got %d, want 400", rec.Code)
	}
}

// ════════════════════════════════════════════════════════════════════
// Macro, insights, metrics, config
// ════════════════════════════════════════════════════════════════════

func TestMacroUnconfigured(t *testing.T) {
	srv := testServer(t, Deps{})
	rec := do(t, srv, http.MethodGet, "/api/v1/macro/series/DGS10", nil, "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status: got %d, want 503", rec.Code)
	}
}

func TestMacroSeries(t *testing.T) {
	stub := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/series/observations" || r.URL.Query().Get("series_id") != "DGS10" {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error_code":400,"error_message":"Bad Request."}`))
			return
		}
		w.Write([]byte(`{"observations":[{"date":"2024-01-02","value":"3.95"},{"date":"2024-01-03","value":"."}]}`))
	}))
	defer stub.Close()

	client := fred.NewClient("test-key", time.Second, time.Minute)
	client.BaseURL = stub.URL
	reg := provider.NewRegistry()
	if err := reg.Register(fred.New(client)); err != nil {
		t.Fatal(err)
	}

	srv := testServer(t, Deps{Macro: reg})
	rec := do(t, srv, http.MethodGet, "/api/v1/macro/series/dgs10", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d (%s)", rec.Code, rec.Body.String())
	}
	var res struct {
		Provider string                    `json:"provider"`
		Data     []models.MacroObservation `json:"data"`
	}
	decodeResponse(t, rec, &res)
	if len(res.Data) != 2 || res.Data[0].Value == nil || *res.Data[0].Value != 3.95 || res.Data[1].Value != nil {
		t.Errorf("observations: got %+v", res.Data)
	}

	rec = do(t, srv, http.MethodGet, "/api/v1/macro/series/UNKNOWN", nil, "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("FRED 400: got %d, want 400", rec.Code)
	}
}

func TestMacroCurveShift(t *testing.T) {
	stub := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("series_id") {
		case "DGS2":
			w.Write([]byte(`{"observations":[{"date":"2024-01-02","value":"4.25"}]}`))
		case "DGS10":
			w.Write([]byte(`{"observations":[{"date":"2024-01-02","value":"4.00"}]}`))
		default:
			w.Write([]byte(`{"observations":[]}`))
		}
	}))
	defer stub.Close()

	client := fred.NewClient("test-key", time.Second, time.Minute)
	client.BaseURL = stub.URL
	reg := provider.NewRegistry()
	if err := reg.Register(fred.New(client)); err != nil {
		t.Fatal(err)
	}
	srv := testServer(t, Deps{Macro: reg})

	var res struct {
		Data []models.CurvePoint `json:"data"`
	}
	decodeResponse(t, do(t, srv, http.MethodGet, "/api/v1/macro/curve?shift=0.5", nil, ""), &res)
	if len(res.Data) != 2 || res.Data[0].Tenor != "2Y" {
		t.Fatalf("curve: got %+v", res.Data)
	}
	if math.Abs(res.Data[0].Rate-4.75) > 1e-9 || math.Abs(res.Data[1].Rate-4.5) > 1e-9 {
		t.Errorf("shifted rates: got %+v", res.Data)
	}

	// The cached curve must not carry the previous shift.
	decodeResponse(t, do(t, srv, http.MethodGet, "/api/v1/macro/curve", nil, ""), &res)
	if len(res.Data) != 2 || res.Data[1].Rate != 4.0 {
		t.Errorf("unshifted curve: got %+v", res.Data)
	}

	if rec := do(t, srv, http.MethodGet, "/api/v1/macro/curve?shift=wide", nil, ""); rec.Code != http.StatusBadRequest {
		t.Errorf("bad shift: got %d, want 400", rec.Code)
	}
}

func TestInsightsEndpoint(t *testing.T) {
	srv := testServer(t, Deps{})
	var rep struct {
		BondID       string   `json:"bond_id"`
		Explanations []string `json:"explanations"`
		Message      string   `json:"message"`
	}
	decodeResponse(t, do(t, srv, http.MethodGet, "/api/v1/insights/UNKNOWN1", nil, ""), &rep)
	if rep.BondID != "UNKNOWN1" || len(rep.Explanations) != 0 || rep.Message == "" {
		t.Errorf("insights: got %+v", rep)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := testServer(t, Deps{})
	upload(t, srv)
	rec := do(t, srv, http.MethodGet, "/metrics", nil, "")
	if !strings.Contains(rec.Body.String(), `creditpulse_portfolio_loads_total{result="ok"} 1`) {
		t.Errorf("metrics output missing load counter:\n%s", rec.Body.String())
	}
}

func TestGetConfigRedactsSecrets(t *testing.T) {
	cfg := config.Default()
	cfg.Macro.FredAPIKey = "abcdef1234567890"
	srv, err := NewServer(cfg, Deps{})
	if err != nil {
		t.Fatal(err)
	}
	rec := do(t, srv, http.MethodGet, "/api/v1/config", nil, "")
	if strings.Contains(rec.Body.String(), "abcdef1234567890") {
		t.Error("config response leaks the FRED key")
	}

	rec = do(t, srv, http.MethodGet, "/api/v1/config/keys", nil, "")
	var keys []config.KeyStatus
	decodeResponse(t, rec, &keys)
	if len(keys) != 3 || !keys[0].IsSet {
		t.Errorf("keys: got %+v", keys)
	}
}

func TestUpdateConfig(t *testing.T) {
	srv := testServer(t, Deps{})
	rec := do(t, srv, http.MethodPut, "/api/v1/config?persist=false",
		strings.NewReader(`{"alerts":{"threshold":3.5}}`), "application/json")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d (%s)", rec.Code, rec.Body.String())
	}
	if got := srv.alertDetector().Threshold; got != 3.5 {
		t.Errorf("detector threshold: got %v, want 3.5", got)
	}

	rec = do(t, srv, http.MethodPut, "/api/v1/config?persist=false",
		strings.NewReader(`{"alerts":{"threshold":-1}}`), "application/json")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("negative threshold: got %d, want 400", rec.Code)
	}
	rec = do(t, srv, http.MethodPut, "/api/v1/config?persist=false",
		strings.NewReader(`{"logging":{"level":"loud"}}`), "application/json")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad level: got %d, want 400", rec.Code)
	}
}

func TestMacroStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&provider.ErrMissingParam{Param: "series"}, http.StatusBadRequest},
		{&provider.ErrProviderNotFound{Name: "fred"}, http.StatusServiceUnavailable},
		{&fred.APIError{Status: 500}, http.StatusBadGateway},
	}
	for _, tt := range tests {
		if got := macroStatus(tt.err); got != tt.want {
			t.Errorf("macroStatus(%v): got %d, want %d", tt.err, got, tt.want)
		}
	}
}
