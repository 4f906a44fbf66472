// Package leader elects the one auctiond replica that hosts auction rooms.
// Rooms live in memory, so a replica that loses its lease must stop hosting
// rather than keep serving stale rooms next to the new leader.
package leader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/leaderelection"
	"k8s.io/client-go/tools/leaderelection/resourcelock"

	"github.com/jensholdgaard/draft-auction/internal/config"
)

// ErrLeadershipLost is returned by Run when the lease was held and then lost
// while the caller's context was still live.
var ErrLeadershipLost = errors.New("leadership lost")

// identity prefers POD_NAME, then the hostname.
func identity() string {
	if name := os.Getenv("POD_NAME"); name != "" {
		return name
	}
	host, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return host
}

// ClientFactory creates a Kubernetes clientset. Tests swap it for a cluster
// of their own.
var ClientFactory = func() (kubernetes.Interface, error) {
	cfg, err := rest.InClusterConfig()
	if err != nil {
		return nil, fmt.Errorf("building in-cluster config: %w", err)
	}
	client, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating kubernetes client: %w", err)
	}
	return client, nil
}

// validate rejects timings the election library would panic on.
func validate(cfg config.LeaderElectionConfig) error {
	if cfg.LeaseName == "" || cfg.LeaseNamespace == "" {
		return fmt.Errorf("lease name and namespace are required")
	}
	if cfg.LeaseDuration <= cfg.RenewDeadline {
		return fmt.Errorf("lease duration %s must exceed renew deadline %s", cfg.LeaseDuration, cfg.RenewDeadline)
	}
	if cfg.RetryPeriod <= 0 || cfg.RenewDeadline <= cfg.RetryPeriod {
		return fmt.Errorf("renew deadline %s must exceed retry period %s", cfg.RenewDeadline, cfg.RetryPeriod)
	}
	return nil
}

// Elector holds one replica's side of the lease.
type Elector struct {
	cfg     config.LeaderElectionConfig
	id      string
	client  kubernetes.Interface
	logger  *slog.Logger
	leading atomic.Bool
	terms   atomic.Int64
}

// New validates cfg and builds the Kubernetes client.
func New(cfg config.LeaderElectionConfig, logger *slog.Logger) (*Elector, error) {
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("leader election config: %w", err)
	}
	client, err := ClientFactory()
	if err != nil {
		return nil, fmt.Errorf("leader election client: %w", err)
	}
	return &Elector{cfg: cfg, id: identity(), client: client, logger: logger}, nil
}

// Identity is the name this replica holds the lease under.
func (e *Elector) Identity() string { return e.id }

// Leading reports whether this replica currently holds the lease.
func (e *Elector) Leading() bool { return e.leading.Load() }

// Terms counts how many times this replica has acquired the lease.
func (e *Elector) Terms() int { return int(e.terms.Load()) }

// Run campaigns for the lease and calls host with a context that is
// cancelled when the lease is lost. host should block until that context is
// done. Run returns nil when ctx ends and ErrLeadershipLost when the lease
// slipped away first.
func (e *Elector) Run(ctx context.Context, host func(ctx context.Context)) error {
	e.logger.InfoContext(ctx, "campaigning for auction host lease",
		slog.String("identity", e.id),
		slog.String("lease", e.cfg.LeaseName),
		slog.String("namespace", e.cfg.LeaseNamespace),
	)

	lock := &resourcelock.LeaseLock{
		LeaseMeta: metav1.ObjectMeta{
			Name:      e.cfg.LeaseName,
			Namespace: e.cfg.LeaseNamespace,
		},
		Client: e.client.CoordinationV1(),
		LockConfig: resourcelock.ResourceLockConfig{
			Identity: e.id,
		},
	}

	var lost atomic.Bool
	leaderelection.RunOrDie(ctx, leaderelection.LeaderElectionConfig{
		Lock:            lock,
		LeaseDuration:   e.cfg.LeaseDuration,
		RenewDeadline:   e.cfg.RenewDeadline,
		RetryPeriod:     e.cfg.RetryPeriod,
		ReleaseOnCancel: true,
		Callbacks: leaderelection.LeaderCallbacks{
			OnStartedLeading: func(leadCtx context.Context) {
				e.leading.Store(true)
				term := e.terms.Add(1)
				e.logger.InfoContext(leadCtx, "hosting auction rooms",
					slog.String("identity", e.id), slog.Int64("term", term))
				host(leadCtx)
			},
			OnStoppedLeading: func() {
				if e.leading.Swap(false) && ctx.Err() == nil {
					lost.Store(true)
				}
				e.logger.Info("stopped hosting auction rooms", slog.String("identity", e.id))
			},
			OnNewLeader: func(newID string) {
				if newID == e.id {
					return
				}
				e.logger.Info("auction rooms hosted elsewhere", slog.String("leader", newID))
			},
		},
	})

	if lost.Load() {
		return ErrLeadershipLost
	}
	return nil
}
