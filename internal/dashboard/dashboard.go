package dashboard

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/searchapi-console/internal/model"
	"github.com/searchapi-console/internal/quota"
)

// ErrStale is returned when the session changed while the dashboard was
// loading. Both results were discarded.
var ErrStale = errors.New("dashboard discarded: session changed")

// Source is the subset of the API client the dashboard reads from.
type Source interface {
	UsageStats(ctx context.Context) ([]model.UsagePoint, error)
	MyPackages(ctx context.Context) ([]model.Package, error)
}

// SessionGuard identifies the live session.
type SessionGuard interface {
	Guard() uint64
	Current(gen uint64) bool
}

// UsageRow is one usage point with its derived figures.
type UsageRow struct {
	model.UsagePoint
	Percentage float64     `json:"percentage"`
	Level      quota.Level `json:"level"`
	Remaining  int64       `json:"remaining"`
}

type Usage struct {
	Rows    []UsageRow    `json:"rows"`
	Summary quota.Summary `json:"summary"`
}

// Result holds both halves of the dashboard. Each half carries its own
// error; one failing does not affect the other.
type Result struct {
	Usage       *Usage
	UsageErr    error
	Packages    []model.Package
	PackagesErr error
}

type Loader struct {
	src   Source
	guard SessionGuard
}

// New creates a loader. guard may be nil.
func New(src Source, guard SessionGuard) *Loader {
	return &Loader{src: src, guard: guard}
}

// Load fetches usage stats and packages concurrently and waits for both.
func (l *Loader) Load(ctx context.Context) (*Result, error) {
	var gen uint64
	if l.guard != nil {
		gen = l.guard.Guard()
	}

	var (
		res Result
		wg  sync.WaitGroup
	)
	wg.Add(2)

	go func() {
		defer wg.Done()
		points, err := l.src.UsageStats(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("failed to load usage stats")
			res.UsageErr = err
			return
		}
		res.Usage = summarize(points)
	}()

	go func() {
		defer wg.Done()
		pkgs, err := l.src.MyPackages(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("failed to load packages")
			res.PackagesErr = err
			return
		}
		res.Packages = pkgs
	}()

	wg.Wait()

	if l.guard != nil && !l.guard.Current(gen) {
		return nil, ErrStale
	}
	return &res, nil
}

func summarize(points []model.UsagePoint) *Usage {
	rows := make([]UsageRow, len(points))
	for i, p := range points {
		pct := quota.PercentageUsed(p)
		rows[i] = UsageRow{
			UsagePoint: p,
			Percentage: pct,
			Level:      quota.StatusLevel(pct),
			Remaining:  quota.Remaining(p),
		}
	}
	return &Usage{Rows: rows, Summary: quota.Aggregate(points)}
}
