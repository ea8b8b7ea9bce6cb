package fred

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/seenimoa/creditpulse/internal/portfolio"
	"github.com/seenimoa/creditpulse/pkg/models"
)

// ErrNoNumericValue is returned by LinkLatest when no observation carries
// a number.
var ErrNoNumericValue = errors.New("series has no numeric observations")

// LinkLatest returns a copy of p with the latest numeric observation
// written to column on every row. The column is lower-cased and added to
// the schema when new. Columns the loader reads into typed Row fields
// (spread, duration, ...) are refused.
func LinkLatest(obs []models.MacroObservation, p *portfolio.Portfolio, column string) (*portfolio.Portfolio, error) {
	column = strings.ToLower(strings.TrimSpace(column))
	if column == "" {
		return nil, errors.New("link column is empty")
	}
	if portfolio.TypedColumn(column) {
		return nil, fmt.Errorf("link column %q is a portfolio field; choose another name", column)
	}
	v, ok := models.LatestValue(obs)
	if !ok {
		return nil, ErrNoNumericValue
	}

	out := p.Clone()
	if !out.HasColumn(column) {
		out.Columns = append(out.Columns, column)
	}
	val := strconv.FormatFloat(v, 'f', -1, 64)
	for i := range out.Rows {
		if out.Rows[i].Extra == nil {
			out.Rows[i].Extra = make(map[string]string, 1)
		}
		out.Rows[i].Extra[column] = val
	}
	return out, nil
}
