package evaluation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/animus-labs/animus-mlops/internal/faults"
	"github.com/animus-labs/animus-mlops/internal/inference"
	"github.com/animus-labs/animus-mlops/internal/platform/auditlog"
	"github.com/animus-labs/animus-mlops/internal/platform/metrics"
	"github.com/animus-labs/animus-mlops/internal/platform/objectstore"
)

const defaultMaxDatasetBytes = 256 << 20

type ObjectStore interface {
	ObjectPutter
	Get(ctx context.Context, bucket, key string) (io.ReadCloser, objectstore.ObjectInfo, error)
}

type Auditor interface {
	Record(ctx context.Context, event auditlog.Event) error
}

type Deps struct {
	Store   ObjectStore
	Invoker inference.Invoker
	Audit   Auditor
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// Evaluator scores one endpoint per Run. Rows are invoked one at a time in
// dataset order so each latency sample covers a single in-flight request.
type Evaluator struct {
	deps            Deps
	reporter        *Reporter
	now             func() time.Time
	maxDatasetBytes int64
}

func NewEvaluator(deps Deps) (*Evaluator, error) {
	if deps.Store == nil {
		return nil, errors.New("object store is required")
	}
	if deps.Invoker == nil {
		return nil, errors.New("invoker is required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.DiscardHandler)
	}
	reporter, err := NewReporter(deps.Store)
	if err != nil {
		return nil, err
	}
	return &Evaluator{
		deps:            deps,
		reporter:        reporter,
		now:             time.Now,
		maxDatasetBytes: defaultMaxDatasetBytes,
	}, nil
}

// Outcome is everything one successful run produced.
type Outcome struct {
	RunID     string
	Metrics   Metrics
	ReportKey string
	Summary   Summary
}

// Run validates ev before any I/O, scores every row and persists the report. Any
// failure aborts the run without a report and is returned to the caller.
func (e *Evaluator) Run(ctx context.Context, ev Event, requestID string) (Outcome, error) {
	runID := uuid.NewString()
	log := e.deps.Logger.With("run_id", runID, "request_id", requestID)

	if err := ev.Validate(); err != nil {
		log.Error("evaluation event rejected", "error", err)
		return Outcome{}, err
	}
	log = log.With("bucket", ev.Bucket, "key", ev.Key, "output_key", ev.OutputKey, "endpoint_name", ev.EndpointName)
	log.Info("evaluation started")

	out, err := e.run(ctx, ev, log)
	out.RunID = runID
	if err != nil {
		log.Error("evaluation failed", "kind", string(faults.KindOf(err)), "error", err)
		e.deps.Metrics.ObserveEvaluation(ev.EndpointName, "failure", 0)
		e.audit(ctx, ev, requestID, runID, out, err, log)
		return Outcome{}, err
	}

	m := out.Metrics
	log.Info("evaluation complete",
		"rows", m.Count,
		"mse", m.MSE,
		"rmse", m.RMSE,
		"residual_std", m.ResidualStdDev,
		"avg_response_time", out.Summary.AvgResponseTime,
		"latency_p50", m.Latency.P50,
		"latency_p95", m.Latency.P95,
		"latency_max", m.Latency.Max,
		"report_key", out.ReportKey,
	)
	e.deps.Metrics.ObserveEvaluation(ev.EndpointName, "success", m.RMSE)
	e.audit(ctx, ev, requestID, runID, out, nil, log)
	return out, nil
}

func (e *Evaluator) run(ctx context.Context, ev Event, log *slog.Logger) (Outcome, error) {
	rows, err := e.loadDataset(ctx, ev.Bucket, ev.Key)
	if err != nil {
		return Outcome{}, err
	}
	log.Info("dataset loaded", "rows", len(rows), "features", len(rows[0].Features))

	records, err := e.score(ctx, ev.EndpointName, rows)
	if err != nil {
		return Outcome{}, err
	}

	m, err := Compute(records)
	if err != nil {
		return Outcome{}, faults.New(faults.KindDataset, "aggregate", err)
	}
	key, err := e.reporter.Persist(ctx, ev.Bucket, ev.OutputKey, NewReport(m))
	if err != nil {
		return Outcome{Metrics: m}, err
	}
	return Outcome{Metrics: m, ReportKey: key, Summary: NewSummary(m)}, nil
}

func (e *Evaluator) loadDataset(ctx context.Context, bucket, key string) ([]Row, error) {
	op := "load s3://" + bucket + "/" + key
	rc, _, err := e.deps.Store.Get(ctx, bucket, key)
	if err != nil {
		return nil, faults.New(faults.KindDataset, op, err)
	}
	defer rc.Close()

	rows, err := ParseDataset(newCappedReader(rc, e.maxDatasetBytes))
	if err != nil {
		return nil, faults.New(faults.KindDataset, op, err)
	}
	return rows, nil
}

func (e *Evaluator) score(ctx context.Context, endpoint string, rows []Row) ([]Record, error) {
	records := make([]Record, 0, len(rows))
	for i, row := range rows {
		payload := inference.FormatRow(row.Features)

		started := e.now()
		body, err := e.deps.Invoker.Invoke(ctx, endpoint, payload)
		elapsed := e.now().Sub(started)
		if err != nil {
			return nil, faults.New(faults.KindEndpointInvocation, fmt.Sprintf("row %d", i+1), err)
		}
		pred, err := inference.ParsePrediction(body)
		if err != nil {
			return nil, faults.New(faults.KindEndpointInvocation, fmt.Sprintf("row %d", i+1), err)
		}
		e.deps.Metrics.ObserveInvocation(endpoint, elapsed)
		records = append(records, Record{Label: row.Label, Prediction: pred, Latency: elapsed})
	}
	return records, nil
}

func (e *Evaluator) audit(ctx context.Context, ev Event, requestID, runID string, out Outcome, runErr error, log *slog.Logger) {
	if e.deps.Audit == nil {
		return
	}
	payload := map[string]any{
		"run_id":     runID,
		"dataset":    "s3://" + ev.Bucket + "/" + ev.Key,
		"output_key": ev.OutputKey,
	}
	if runErr != nil {
		payload["outcome"] = "failure"
		payload["error_kind"] = string(faults.KindOf(runErr))
		payload["error"] = runErr.Error()
	} else {
		m := out.Metrics
		payload["outcome"] = "success"
		payload["rows"] = m.Count
		payload["mse"] = m.MSE
		payload["rmse"] = m.RMSE
		payload["residual_std"] = m.ResidualStdDev
		payload["latency_ms"] = map[string]float64{
			"mean": ms(m.Latency.Mean),
			"min":  ms(m.Latency.Min),
			"p50":  ms(m.Latency.P50),
			"p95":  ms(m.Latency.P95),
			"max":  ms(m.Latency.Max),
		}
		payload["report_key"] = out.ReportKey
	}
	err := e.deps.Audit.Record(ctx, auditlog.Event{
		Action:       "endpoint.evaluate",
		ResourceType: "endpoint",
		ResourceID:   ev.EndpointName,
		RequestID:    requestID,
		Payload:      payload,
	})
	if err != nil {
		log.Warn("audit record failed", "error", err)
	}
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
