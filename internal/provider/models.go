package provider

// ModelType names a macro dataset a provider can serve.
type ModelType string

const (
	// ModelMacroSeries is a single time series of observations by id.
	ModelMacroSeries ModelType = "MacroSeries"
	// ModelSeriesSearch finds series ids by free text.
	ModelSeriesSearch ModelType = "SeriesSearch"
	// ModelCreditSpreadIndex is an option-adjusted spread index for a
	// rating bucket (investment grade, BBB, high yield, ...).
	ModelCreditSpreadIndex ModelType = "CreditSpreadIndex"
	// ModelYieldCurve is the latest constant-maturity treasury curve.
	ModelYieldCurve ModelType = "YieldCurve"
)

// AllModels returns every model type, in display order.
func AllModels() []ModelType {
	return []ModelType{ModelMacroSeries, ModelSeriesSearch, ModelCreditSpreadIndex, ModelYieldCurve}
}
