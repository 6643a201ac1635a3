// Package dashboard reads the dashboard snapshot from the SuperApp API.
//
// Concurrent Snapshot calls share one in-flight request. The shared request
// is detached from any single caller's cancellation; each caller stops
// waiting when its own context ends.
package dashboard

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	tiqology "github.com/tiqology/superapp-go"
	"github.com/tiqology/superapp-go/gateway"
	"github.com/tiqology/superapp-go/metrics"
)

// SnapshotPath is the snapshot endpoint, relative to the API base URL.
const SnapshotPath = "/api/v1/dashboard/snapshot"

// DefaultFetchTimeout bounds a shared snapshot request.
const DefaultFetchTimeout = 30 * time.Second

// Service implements tiqology.DashboardService.
type Service struct {
	gw      *gateway.Gateway
	logger  *slog.Logger
	metrics *metrics.Metrics
	group   singleflight.Group
	timeout time.Duration

	mu   sync.RWMutex
	last *tiqology.DashboardSnapshot
}

// compile-time check
var _ tiqology.DashboardService = (*Service)(nil)

// Option configures the Service.
type Option func(*Service)

// WithLogger sets a structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithFetchTimeout bounds each shared snapshot request. Zero or negative
// values are ignored.
func WithFetchTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// New creates a dashboard service over gw.
func New(gw *gateway.Gateway, opts ...Option) *Service {
	s := &Service{
		gw:      gw,
		logger:  slog.New(slog.DiscardHandler),
		timeout: DefaultFetchTimeout,
	}
	for _, o := range opts {
		o(s)
	}
	s.logger = s.logger.With("component", "dashboard")
	return s
}

// Snapshot fetches the dashboard snapshot. Callers arriving while a fetch is
// in flight receive its result instead of issuing their own request. Every
// caller receives its own copy.
func (s *Service) Snapshot(ctx context.Context) (*tiqology.DashboardSnapshot, error) {
	fetchCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan(SnapshotPath, func() (any, error) {
		return s.fetch(fetchCtx)
	})

	select {
	case <-ctx.Done():
		err := ctx.Err()
		s.logger.Debug("snapshot wait abandoned", "error", err)
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, tiqology.NewError(tiqology.KindTimeout, err)
		}
		return nil, tiqology.NewError(tiqology.KindNetwork, err)
	case res := <-ch:
		if res.Shared {
			s.metrics.RecordSnapshotShared()
		}
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*tiqology.DashboardSnapshot).Clone(), nil
	}
}

func (s *Service) fetch(ctx context.Context) (*tiqology.DashboardSnapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	snap, err := gateway.Request[tiqology.DashboardSnapshot](ctx, s.gw, "GET", SnapshotPath, nil, true)
	if err != nil {
		s.logger.Warn("snapshot fetch failed", "error", err)
		return nil, err
	}
	s.logger.Debug("snapshot loaded",
		"organization", snap.Organization.Name,
		"posts", len(snap.Posts),
		"events", len(snap.Events),
		"tasks", len(snap.Tasks),
	)
	s.mu.Lock()
	s.last = snap
	s.mu.Unlock()
	return snap, nil
}

// Last returns a copy of the most recently loaded snapshot, or nil.
func (s *Service) Last() *tiqology.DashboardSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last.Clone()
}
