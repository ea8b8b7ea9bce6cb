package fred

// Wire shapes of the FRED JSON API.

type observationsResponse struct {
	ObservationStart string        `json:"observation_start"`
	ObservationEnd   string        `json:"observation_end"`
	Units            string        `json:"units"`
	Count            int           `json:"count"`
	Observations     []observation `json:"observations"`
}

type observation struct {
	Date  string `json:"date"`
	Value string `json:"value"` // "." when missing
}

type searchResponse struct {
	Count   int      `json:"count"`
	Seriess []series `json:"seriess"`
}

type series struct {
	ID                 string `json:"id"`
	Title              string `json:"title"`
	ObservationEnd     string `json:"observation_end"`
	Frequency          string `json:"frequency"`
	Units              string `json:"units"`
	SeasonalAdjustment string `json:"seasonal_adjustment"`
	Popularity         int    `json:"popularity"`
}

type errorResponse struct {
	ErrorCode    int    `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}
