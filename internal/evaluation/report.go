package evaluation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/animus-labs/animus-mlops/internal/faults"
)

const ReportName = "evaluation.json"

// Report is the persisted document consumed by the model-registry gate.
type Report struct {
	RegressionMetrics RegressionMetrics `json:"regression_metrics"`
}

type RegressionMetrics struct {
	MSE MetricValue `json:"mse"`
}

type MetricValue struct {
	Value             float64 `json:"value"`
	StandardDeviation float64 `json:"standard_deviation"`
}

// Summary is the invocation return payload.
type Summary struct {
	StatusCode      int     `json:"statusCode"`
	Result          float64 `json:"Result"`
	AvgResponseTime string  `json:"AvgResponseTime"`
}

func NewReport(m Metrics) Report {
	return Report{RegressionMetrics: RegressionMetrics{MSE: MetricValue{
		Value:             m.MSE,
		StandardDeviation: m.ResidualStdDev,
	}}}
}

func NewSummary(m Metrics) Summary {
	return Summary{
		StatusCode:      200,
		Result:          m.RMSE,
		AvgResponseTime: fmt.Sprintf("%.2f seconds", m.Latency.Mean.Seconds()),
	}
}

// ReportKey places the report under the output prefix.
func ReportKey(outputKey string) string {
	return strings.TrimRight(outputKey, "/") + "/" + ReportName
}

type ObjectPutter interface {
	Put(ctx context.Context, bucket, key string, body io.Reader, size int64, contentType string) error
}

type Reporter struct {
	store ObjectPutter
}

func NewReporter(store ObjectPutter) (*Reporter, error) {
	if store == nil {
		return nil, errors.New("object store is required")
	}
	return &Reporter{store: store}, nil
}

// Persist writes the report as indented JSON and returns its key. Storage
// failures come back as ReportPersistError.
func (r *Reporter) Persist(ctx context.Context, bucket, outputKey string, report Report) (string, error) {
	body, err := json.MarshalIndent(report, "", "    ")
	if err != nil {
		return "", faults.New(faults.KindReportPersist, "encode report", err)
	}
	key := ReportKey(outputKey)
	if err := r.store.Put(ctx, bucket, key, bytes.NewReader(body), int64(len(body)), "application/json"); err != nil {
		return "", faults.New(faults.KindReportPersist, "write s3://"+bucket+"/"+key, err)
	}
	return key, nil
}
