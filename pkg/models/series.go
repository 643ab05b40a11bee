package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Period is the bucketing resolution for aggregation
type Period string

const (
	PeriodDay   Period = "day"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
)

// Periods lists every accepted period in ascending granularity
var Periods = []Period{PeriodDay, PeriodWeek, PeriodMonth}

// ParsePeriod matches s against the closed set of periods
func ParsePeriod(s string) (Period, bool) {
	p := Period(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Periods {
		if p == known {
			return p, true
		}
	}
	return "", false
}

// Point is one entry of an ordered Series
type Point struct {
	Key   string  `json:"key"`
	Value float64 `json:"value"`
}

// Series is an ordered string-keyed mapping. It marshals to a JSON object
// whose keys keep the slice order.
type Series []Point

// Keys returns the keys in order
func (s Series) Keys() []string {
	keys := make([]string, len(s))
	for i, p := range s {
		keys[i] = p.Key
	}
	return keys
}

// Values returns the values in order
func (s Series) Values() []float64 {
	values := make([]float64, len(s))
	for i, p := range s {
		values[i] = p.Value
	}
	return values
}

// Sum adds every value in the series
func (s Series) Sum() float64 {
	var total float64
	for _, p := range s {
		total += p.Value
	}
	return total
}

// Last returns the final n points, or all of them when fewer exist
func (s Series) Last(n int) Series {
	if n >= len(s) {
		return s
	}
	return s[len(s)-n:]
}

// MarshalJSON writes the series as an object in slice order
func (s Series) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, p := range s {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(p.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.WriteString(strconv.FormatFloat(p.Value, 'f', -1, 64))
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads an object back into a series, preserving key order
func (s *Series) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*s = nil
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("series: expected object, got %v", tok)
	}

	var out Series
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("series: expected string key, got %v", tok)
		}

		var value float64
		if err := dec.Decode(&value); err != nil {
			return err
		}
		out = append(out, Point{Key: key, Value: value})
	}
	*s = out
	return nil
}
