package evaluation

import (
	"errors"
	"math"
	"slices"
	"time"
)

// Record is the in-memory outcome of scoring one row.
type Record struct {
	Label      float64
	Prediction float64
	Latency    time.Duration
}

type LatencyStats struct {
	Mean time.Duration
	Min  time.Duration
	P50  time.Duration
	P95  time.Duration
	Max  time.Duration
}

// Metrics aggregates a complete run. Residuals are prediction minus label and
// the standard deviation is the population one.
type Metrics struct {
	Count          int
	MSE            float64
	RMSE           float64
	ResidualMean   float64
	ResidualStdDev float64
	Latency        LatencyStats
}

func Compute(records []Record) (Metrics, error) {
	n := len(records)
	if n == 0 {
		return Metrics{}, errors.New("no records to aggregate")
	}
	var sumSq, sumRes float64
	for _, r := range records {
		res := r.Prediction - r.Label
		sumSq += res * res
		sumRes += res
	}
	mean := sumRes / float64(n)
	var sumDev float64
	for _, r := range records {
		d := (r.Prediction - r.Label) - mean
		sumDev += d * d
	}
	mse := sumSq / float64(n)
	return Metrics{
		Count:          n,
		MSE:            mse,
		RMSE:           math.Sqrt(mse),
		ResidualMean:   mean,
		ResidualStdDev: math.Sqrt(sumDev / float64(n)),
		Latency:        latencyStats(records),
	}, nil
}

func latencyStats(records []Record) LatencyStats {
	lat := make([]time.Duration, len(records))
	var total time.Duration
	for i, r := range records {
		lat[i] = r.Latency
		total += r.Latency
	}
	slices.Sort(lat)
	return LatencyStats{
		Mean: total / time.Duration(len(lat)),
		Min:  lat[0],
		P50:  percentile(lat, 0.50),
		P95:  percentile(lat, 0.95),
		Max:  lat[len(lat)-1],
	}
}

// percentile uses the nearest-rank method on sorted input.
func percentile(sorted []time.Duration, p float64) time.Duration {
	rank := int(math.Ceil(p * float64(len(sorted))))
	if rank < 1 {
		rank = 1
	}
	return sorted[rank-1]
}
