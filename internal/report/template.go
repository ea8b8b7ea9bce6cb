package report

// MarkdownTemplate is the text/template source of the risk report. Every
// section renders an explanatory line instead of a table when its data
// failed or is absent.
const MarkdownTemplate = `# {{.Title}}

_Source: {{if .Source}}{{.Source}}{{else}}(unnamed){{end}} · {{.Bonds}} bonds · Generated {{.GeneratedAt}}{{if .Author}} by {{.Author}}{{end}}_
{{- if .ShowSummary}}

## Summary
{{if .Totals}}
| Metric | Value |
|---|---|
{{- range .Totals}}
| {{.Label}} | {{.Value}} |
{{- end}}
{{end}}
{{- range .SummaryErrors}}
> {{.}}
{{end}}
{{- end}}
{{- if .ShowSectors}}

## Sector Exposure
{{if .SectorsErr}}
> {{.SectorsErr}}
{{else}}
| Sector | Bonds | Duration | VaR |
|---|---:|---:|---:|
{{- range .Sectors}}
| {{.Sector}} | {{.Bonds}} | {{.Duration}} | {{.VaR}} |
{{- end}}
{{end}}
{{- end}}
{{- if .ShowConcentration}}

## Concentration
{{if .ConcErr}}
> {{.ConcErr}}
{{else}}
| Sector | Share |
|---|---:|
{{- range .Concentration}}
| {{.Label}} | {{.Value}} |
{{- end}}
{{end}}
{{- end}}
{{- if .ShowContagion}}

## Contagion
{{if .GraphErr}}
> {{.GraphErr}}
{{else if .Impacts}}
| Shock | Affected bonds | Bond share | VaR share | Duration share |
|---|---|---:|---:|---:|
{{- range .Impacts}}
| {{.Trigger}} | {{.Bonds}} | {{.BondShare}} | {{.VaRShare}} | {{.DurationShare}} |
{{- end}}
{{else}}
No contagion channels.
{{end}}
{{- end}}
{{- if .ShowScenarios}}

## Stress Scenarios
{{if .Scenarios}}
| Scenario | Known | Spread shock | Rate shock | Avg price impact | Worst bond |
|---|---|---:|---:|---:|---|
{{- range .Scenarios}}
| {{.Name}} | {{.Known}} | {{.SpreadShock}} | {{.RateShock}} | {{.AvgImpact}} | {{.Worst}} |
{{- end}}
{{else}}
No scenarios applied.
{{end}}
{{- range .ScenarioErrs}}
> {{.}}
{{end}}
{{- end}}
{{- if .ShowAlerts}}

## Spread Alerts
{{if .Moves}}
| Bond | Z-score | Status |
|---|---:|---|
{{- range .Moves}}
| {{.Bond}} | {{.ZScore}} | {{.Status}} |
{{- end}}
{{else}}
No spread history to score.
{{end}}
{{- if .Breaches}}
### Threshold breaches

{{range .Breaches}}- **{{.Subject}}**: {{.Spread}}
{{end}}
{{- end}}
{{- end}}
{{- if .ShowLiquidity}}

## Liquidity
{{if .Liquidity}}
| Bond | Bid-ask | Volume | Note |
|---|---:|---:|---|
{{- range .Liquidity}}
| {{.Bond}} | {{.BidAsk}} | {{.Volume}} | {{.Note}} |
{{- end}}
{{else}}
No liquidity data.
{{end}}
{{- end}}
{{- if .ShowInsights}}

## Insights
{{if .Insights}}
{{- range .Insights}}
### {{.Bond}}
{{range .Lines}}
- {{.}}
{{- end}}
{{end}}
{{- else}}
No insights available.
{{end}}
{{- end}}
`
