// Package inference sends single-row prediction requests to a live endpoint.
package inference

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ContentTypeCSV is the payload type every invoker sends.
const ContentTypeCSV = "text/csv"

// Invoker sends one payload to a named endpoint and returns the raw response body.
type Invoker interface {
	Invoke(ctx context.Context, endpoint string, payload []byte) ([]byte, error)
}

// FormatRow renders a feature vector as one comma-delimited text record.
func FormatRow(features []float64) []byte {
	var b strings.Builder
	for i, f := range features {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
	}
	return []byte(b.String())
}

// ParsePrediction reads a single scalar from a response body. Trailing newlines
// and surrounding spaces are ignored.
func ParsePrediction(body []byte) (float64, error) {
	s := strings.TrimSpace(strings.TrimRight(string(body), "\r\n"))
	if s == "" {
		return 0, errors.New("empty prediction")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("prediction %q is not a number", truncate(s, 64))
	}
	return v, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
