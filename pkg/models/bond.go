package models

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// --- Credit Ratings ---

// Rating is an ordinal credit rating category, AAA (best) through D (default).
type Rating string

const (
	RatingAAA Rating = "AAA"
	RatingAA  Rating = "AA"
	RatingA   Rating = "A"
	RatingBBB Rating = "BBB"
	RatingBB  Rating = "BB"
	RatingB   Rating = "B"
	RatingCCC Rating = "CCC"
	RatingCC  Rating = "CC"
	RatingC   Rating = "C"
	RatingD   Rating = "D"
)

// ratingOrder ranks ratings from best (0) to worst.
var ratingOrder = map[Rating]int{
	RatingAAA: 0, RatingAA: 1, RatingA: 2, RatingBBB: 3, RatingBB: 4,
	RatingB: 5, RatingCCC: 6, RatingCC: 7, RatingC: 8, RatingD: 9,
}

// ParseRating normalizes s ("aa ", "Bbb") into a Rating.
// Notch modifiers such as "A-" or "BB+" are dropped.
func ParseRating(s string) Rating {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.TrimRight(s, "+-")
	return Rating(s)
}

// Rank returns the ordinal position of the rating (0 = AAA) and false when
// the rating is not on the scale.
func (r Rating) Rank() (int, bool) {
	n, ok := ratingOrder[r]
	return n, ok
}

// InvestmentGrade reports whether the rating is BBB or better.
func (r Rating) InvestmentGrade() bool {
	n, ok := r.Rank()
	return ok && n <= ratingOrder[RatingBBB]
}

// --- Bond Record ---

// BondRecord is a single bond as supplied by the data-fetch layer.
type BondRecord struct {
	ID            string    `json:"bond_id"        validate:"required"`
	Issuer        string    `json:"issuer"         validate:"required"`
	Sector        string    `json:"sector"         validate:"required"`
	Rating        Rating    `json:"rating"         validate:"required"`
	Yield         float64   `json:"yield"`
	Spread        float64   `json:"spread"` // basis points
	CashFlows     []float64 `json:"cash_flows,omitempty"`
	SpreadHistory []float64 `json:"spread_history,omitempty"`
	LatestSpread  *float64  `json:"latest_spread,omitempty"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// MissingFields checks s against its validate tags and returns the json
// names of the failing fields in declaration order. err is non-nil only
// when s cannot be validated at all.
func MissingFields(s any) (fields []string, err error) {
	if err := validate.Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return nil, err
		}
		for _, fe := range verrs {
			fields = append(fields, fe.Field())
		}
	}
	return fields, nil
}

// Validate checks the required fields and the cash-flow invariant.
// The returned error names every offending field.
func (b BondRecord) Validate() error {
	missing, err := MissingFields(b)
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		return fmt.Errorf("bond %q: missing fields: %s", b.ID, strings.Join(missing, ", "))
	}
	if b.CashFlows != nil && len(b.CashFlows) == 0 {
		return fmt.Errorf("bond %q: cash_flows must hold at least one period", b.ID)
	}
	return nil
}

// Latest returns the latest spread, falling back to Spread when unset.
func (b BondRecord) Latest() float64 {
	if b.LatestSpread != nil {
		return *b.LatestSpread
	}
	return b.Spread
}
