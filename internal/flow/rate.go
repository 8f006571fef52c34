package flow

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Rate is a success rate as entered: "87.5", "87.5%", "87,5" or a bare JSON
// number. The raw text is kept so that saving never rewrites user input.
type Rate string

// RateOf formats a numeric rate.
func RateOf(v float64) Rate {
	return Rate(strconv.FormatFloat(v, 'f', -1, 64))
}

// Value parses the rate. Unparseable or blank input reports ok=false.
func (r Rate) Value() (float64, bool) {
	raw := strings.TrimSpace(string(r))
	raw = strings.TrimSpace(strings.TrimSuffix(raw, "%"))
	raw = strings.ReplaceAll(raw, ",", ".")
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// UnmarshalJSON accepts strings and numbers; null and other kinds decode to
// an empty rate instead of failing the whole document.
func (r *Rate) UnmarshalJSON(data []byte) error {
	*r = rateFromRaw(data)
	return nil
}

func rateFromRaw(data json.RawMessage) Rate {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return ""
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return ""
		}
		return Rate(s)
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return ""
		}
		if f, err := n.Float64(); err == nil {
			return RateOf(f)
		}
		return Rate(n.String())
	default:
		return ""
	}
}
