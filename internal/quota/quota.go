// Package quota turns usage counters into percentages and warning levels.
package quota

import (
	"fmt"

	"github.com/searchapi-console/internal/model"
)

// Level is a presentation tier for a usage percentage.
type Level int

const (
	Nominal Level = iota
	Caution
	Warning
	Critical
)

// Tier lower bounds, inclusive.
const (
	cautionAt  = 40.0
	warningAt  = 60.0
	criticalAt = 80.0
)

func (l Level) String() string {
	switch l {
	case Caution:
		return "caution"
	case Warning:
		return "warning"
	case Critical:
		return "critical"
	default:
		return "nominal"
	}
}

func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l *Level) UnmarshalText(text []byte) error {
	parsed, err := ParseLevel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

func ParseLevel(s string) (Level, error) {
	switch s {
	case "nominal":
		return Nominal, nil
	case "caution":
		return Caution, nil
	case "warning":
		return Warning, nil
	case "critical":
		return Critical, nil
	}
	return Nominal, fmt.Errorf("unknown usage level %q", s)
}

// PercentageUsed returns used/limit as a percentage in [0, 100]. A
// non-positive limit yields 0 when nothing was used and 100 otherwise.
func PercentageUsed(p model.UsagePoint) float64 {
	return percentage(p.RequestsUsed, p.RequestLimit)
}

func percentage(used, limit int64) float64 {
	used = max(used, 0)
	if limit <= 0 {
		if used == 0 {
			return 0
		}
		return 100
	}
	return min(float64(used)/float64(limit)*100, 100)
}

// StatusLevel classifies a percentage. Boundaries belong to the higher
// tier.
func StatusLevel(pct float64) Level {
	switch {
	case pct >= criticalAt:
		return Critical
	case pct >= warningAt:
		return Warning
	case pct >= cautionAt:
		return Caution
	default:
		return Nominal
	}
}

// Remaining returns the requests left before the limit, never negative.
func Remaining(p model.UsagePoint) int64 {
	return max(p.RequestLimit-max(p.RequestsUsed, 0), 0)
}

// Summary aggregates a set of usage points.
type Summary struct {
	TotalUsed  int64 `json:"total_used"`
	TotalLimit int64 `json:"total_limit"`
	// AveragePercentage is the mean of per-point percentages, which is
	// the figure the dashboard headlines.
	AveragePercentage float64 `json:"average_percentage"`
	// PercentageOfTotals is TotalUsed/TotalLimit and differs from the
	// average whenever limits differ.
	PercentageOfTotals float64 `json:"percentage_of_totals"`
	Level              Level   `json:"level"`
	Points             int     `json:"points"`
}

// Aggregate sums the points and averages their percentages. An empty
// input yields a zero Summary.
func Aggregate(points []model.UsagePoint) Summary {
	var s Summary
	if len(points) == 0 {
		return s
	}

	var sum float64
	for _, p := range points {
		s.TotalUsed += max(p.RequestsUsed, 0)
		s.TotalLimit += max(p.RequestLimit, 0)
		sum += PercentageUsed(p)
	}
	s.Points = len(points)
	s.AveragePercentage = sum / float64(len(points))
	s.PercentageOfTotals = percentage(s.TotalUsed, s.TotalLimit)
	s.Level = StatusLevel(s.AveragePercentage)
	return s
}
