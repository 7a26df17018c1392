package expr

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// reduce implements the stats vocabulary of spec §4.E step 4, plus the
// percentile_<n> form supplemented from original_source's js_functions.rs.
func reduce(stats string, values []float64) (float64, error) {
	switch {
	case stats == "latest":
		return values[len(values)-1], nil
	case stats == "count":
		return float64(len(values)), nil
	case stats == "sum":
		return sum(values), nil
	case stats == "avg":
		return sum(values) / float64(len(values)), nil
	case stats == "min":
		return minOf(values), nil
	case stats == "max":
		return maxOf(values), nil
	case stats == "linear_slope":
		return linearSlope(values)
	case stats == "moving_average_slope":
		return movingAverageSlope(values)
	case strings.HasPrefix(stats, "percentile_"):
		p, err := strconv.ParseFloat(strings.TrimPrefix(stats, "percentile_"), 64)
		if err != nil {
			return 0, fmt.Errorf("expr: invalid percentile stat %q: %w", stats, err)
		}
		return percentile(values, p), nil
	default:
		return 0, fmt.Errorf("expr: unknown stats reducer %q", stats)
	}
}

func sum(values []float64) float64 {
	var total float64
	for _, v := range values {
		total += v
	}
	return total
}

func minOf(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func maxOf(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

// linearSlope fits y = a + b*x with x = 1..n via simple least squares and
// returns b.
func linearSlope(values []float64) (float64, error) {
	n := float64(len(values))
	var sumX, sumY, sumXY, sumXX float64
	for i, v := range values {
		x := float64(i + 1)
		sumX += x
		sumY += v
		sumXY += x * v
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0, fmt.Errorf("expr: linear_slope undefined for constant x series")
	}
	return (n*sumXY - sumX*sumY) / denom, nil
}

// movingAverageSlope reduces values to their 3-point moving average series
// and then fits a linear slope over that series (spec §4.E step 4: "min 3
// samples; else error").
func movingAverageSlope(values []float64) (float64, error) {
	if len(values) < 3 {
		return 0, fmt.Errorf("expr: moving_average_slope requires at least 3 samples, got %d", len(values))
	}
	avg := make([]float64, 0, len(values)-2)
	for i := 0; i+3 <= len(values); i++ {
		avg = append(avg, (values[i]+values[i+1]+values[i+2])/3)
	}
	return linearSlope(avg)
}

// percentile uses linear interpolation between closest ranks.
func percentile(values []float64, p float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := (p / 100) * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}
