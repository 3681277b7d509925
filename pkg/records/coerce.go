package records

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ekaya-inc/ekaya-ingest/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-ingest/pkg/logging"
)

// TimestampLayout is the timestamp form used by the dataset.
const TimestampLayout = "2006-01-02 15:04:05"

// timestampLayouts are tried in order. Spreadsheet round-trips of the
// dataset drop seconds or the whole time part.
var timestampLayouts = []string{
	TimestampLayout,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

var (
	errNegative    = errors.New("must not be negative")
	errNotIntegral = errors.New("not a whole number")
	errOutOfRange  = errors.New("out of integer range")
	errTooPrecise  = fmt.Errorf("more than %d decimal places", amountScale)
)

// amountScale is the number of fractional digits stored for money columns.
const amountScale = 2

var (
	minInteger = decimal.NewFromInt(math.MinInt32)
	maxInteger = decimal.NewFromInt(math.MaxInt32)
)

// coerce converts one raw field. A nil result means NULL.
func coerce(col column, raw string, decimalComma bool) (any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		if col.mandatory {
			return nil, apperrors.ErrMandatoryFieldMissing
		}
		return nil, nil
	}

	switch col.typ {
	case typeInteger:
		n, err := parseInteger(raw)
		if err != nil {
			return nil, coercionError(col, raw, err)
		}
		return n, nil
	case typeDecimal:
		d, err := parseDecimal(raw, decimalComma)
		if err != nil {
			return nil, coercionError(col, raw, err)
		}
		return d, nil
	case typeTimestamp:
		ts, err := parseTimestamp(raw)
		if err != nil {
			return nil, coercionError(col, raw, err)
		}
		return ts, nil
	default:
		return raw, nil
	}
}

func coercionError(col column, raw string, cause error) error {
	return fmt.Errorf("%w: %q is not a valid %s: %v",
		apperrors.ErrFieldCoercion, logging.TruncateValue(raw), col.typ, cause)
}

// parseInteger accepts plain integers and integral decimals such as "40.0",
// which appear when the numeric columns were exported with NULLs as floats.
// Values must fit the 32-bit INTEGER columns they are stored in.
func parseInteger(raw string) (int, error) {
	n, err := strconv.ParseInt(raw, 10, 32)
	if err == nil {
		return int(n), nil
	}
	if errors.Is(err, strconv.ErrRange) {
		return 0, errOutOfRange
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, err
	}
	if !d.IsInteger() {
		return 0, errNotIntegral
	}
	if d.LessThan(minInteger) || d.GreaterThan(maxInteger) {
		return 0, errOutOfRange
	}
	return int(d.IntPart()), nil
}

// parseDecimal parses a non-negative amount with at most two significant
// fractional digits ("10.50" and "10.500" pass, "10.005" does not). When
// decimalComma is set a lone comma is read as the decimal separator ("12,50").
func parseDecimal(raw string, decimalComma bool) (decimal.Decimal, error) {
	if decimalComma && strings.Count(raw, ",") == 1 && !strings.Contains(raw, ".") {
		raw = strings.Replace(raw, ",", ".", 1)
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if d.IsNegative() {
		return decimal.Decimal{}, errNegative
	}
	if !d.Equal(d.Round(amountScale)) {
		return decimal.Decimal{}, errTooPrecise
	}
	return d, nil
}

func parseTimestamp(raw string) (time.Time, error) {
	var firstErr error
	for _, layout := range timestampLayouts {
		ts, err := time.Parse(layout, raw)
		if err == nil {
			return ts, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, firstErr
}

// values holds the coerced fields of one row keyed by canonical column name.
// Mandatory columns are guaranteed non-nil by the time a decoder reads them.
type values map[string]any

func (v values) str(name string) string {
	s, _ := v[name].(string)
	return s
}

func (v values) strPtr(name string) *string {
	s, ok := v[name].(string)
	if !ok {
		return nil
	}
	return &s
}

func (v values) integer(name string) int {
	n, _ := v[name].(int)
	return n
}

func (v values) intPtr(name string) *int {
	n, ok := v[name].(int)
	if !ok {
		return nil
	}
	return &n
}

func (v values) decimal(name string) decimal.Decimal {
	d, _ := v[name].(decimal.Decimal)
	return d
}

func (v values) timestamp(name string) time.Time {
	ts, _ := v[name].(time.Time)
	return ts
}

func (v values) timePtr(name string) *time.Time {
	ts, ok := v[name].(time.Time)
	if !ok {
		return nil
	}
	return &ts
}
