package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/seenimoa/creditpulse/internal/portfolio"
	"github.com/seenimoa/creditpulse/internal/report"
)

const goodCSV = `bond,sector,issuer,rating,duration,convexity,var,expectedshortfall,spread,spread_history
ACME2025,Technology,Acme Corp,A,4.5,0.30,12000,15000,120,100;102;98;101;99
BANK2028,Financials,First Bank,BBB,5.2,0.41,9000,11000,180,
`

const noVaRCSV = `bond,sector,issuer,rating,duration,convexity,expectedshortfall,spread
XYZ2030,Financials,XYZ Inc,AA,7.1,0.62,22500,95
`

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestGenerateReportsSurvivesBadPortfolio(t *testing.T) {
	dir := t.TempDir()
	paths := []string{
		writeFile(t, dir, "bad.csv", noVaRCSV),
		writeFile(t, dir, "good.csv", goodCSV),
	}

	results := generateReports(context.Background(), paths, portfolio.Load, report.Options{}, report.DefaultConfig())
	if len(results) != 2 {
		t.Fatalf("results: got %d, want 2", len(results))
	}

	bad, good := results[0], results[1]
	var schema *portfolio.SchemaError
	if !errors.As(bad.Err, &schema) {
		t.Fatalf("bad.csv: expected SchemaError, got %v", bad.Err)
	}
	if len(schema.Missing) != 1 || schema.Missing[0] != "var" {
		t.Errorf("missing columns: got %v, want [var]", schema.Missing)
	}
	if bad.Output != "" {
		t.Errorf("bad.csv should render nothing, got %q", bad.Output)
	}

	if good.Err != nil {
		t.Fatalf("good.csv: %v", good.Err)
	}
	if good.Path != paths[1] {
		t.Errorf("path: got %q, want %q", good.Path, paths[1])
	}
	if !strings.Contains(good.Output, "# Portfolio Risk Report") {
		t.Errorf("good.csv report missing title:\n%s", good.Output)
	}
}

func TestGenerateReportsKeepsArgumentOrder(t *testing.T) {
	dir := t.TempDir()
	paths := []string{
		writeFile(t, dir, "q1.csv", goodCSV),
		writeFile(t, dir, "missing.csv", ""),
		writeFile(t, dir, "q2.csv", goodCSV),
	}
	if err := os.Remove(paths[1]); err != nil {
		t.Fatal(err)
	}

	results := generateReports(context.Background(), paths, portfolio.Load, report.Options{}, report.DefaultConfig())
	for i, res := range results {
		if res.Path != paths[i] {
			t.Errorf("result %d: got path %q, want %q", i, res.Path, paths[i])
		}
	}
	if results[0].Err != nil || results[2].Err != nil {
		t.Errorf("good files should render: %v, %v", results[0].Err, results[2].Err)
	}
	var perr *portfolio.ParseError
	if !errors.As(results[1].Err, &perr) {
		t.Errorf("missing file: expected ParseError, got %v", results[1].Err)
	}
}
