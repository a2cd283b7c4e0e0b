package app

import (
	"context"
	"net"

	"go.trai.ch/splitup/internal/adapters/httpapi" //nolint:depguard // Wired in app layer
	"go.trai.ch/splitup/internal/core/domain"
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"
)

// ListenAndServe binds the configured HTTP and event stream addresses and serves
// until ctx is done.
func (a *App) ListenAndServe(ctx context.Context) error {
	var lc net.ListenConfig
	apiLis, err := lc.Listen(ctx, "tcp", a.Config.Server.Listen)
	if err != nil {
		return zerr.With(zerr.Wrap(err, "failed to listen"), "addr", a.Config.Server.Listen)
	}
	streamLis, err := lc.Listen(ctx, "tcp", a.Config.Stream.Listen)
	if err != nil {
		_ = apiLis.Close()
		return zerr.With(zerr.Wrap(err, "failed to listen"), "addr", a.Config.Stream.Listen)
	}
	return a.Serve(ctx, apiLis, streamLis)
}

// Serve runs the HTTP API, the event stream, the dispatcher and the config
// watcher concurrently. The first failure stops the others.
func (a *App) Serve(ctx context.Context, apiLis, streamLis net.Listener) error {
	api := httpapi.New(a, a.auth, a.Config.Server, a.Logger)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return api.Serve(ctx, apiLis)
	})

	g.Go(func() error {
		return a.Stream.Serve(ctx, streamLis)
	})

	g.Go(func() error {
		return a.Dispatcher.Run(ctx, a.Source)
	})

	if a.Config.Path != "" {
		g.Go(func() error {
			return a.Watcher.Watch(ctx, a.Config.Path, a.Reload)
		})
	}

	a.Logger.Info("splitup serving", "store", a.Config.Store.Backend, "schedulers", len(a.Committee.Members()))
	return g.Wait()
}

// Reload re-reads the config file and applies its policy: the scheduler
// committee, the minimum stake and the sampling threshold. Other settings take
// effect on restart. A file that fails to load is ignored.
func (a *App) Reload() {
	next, err := a.Loader.Load(a.Config.Path)
	if err != nil {
		a.Logger.Error(zerr.Wrap(err, "config reload rejected"))
		return
	}
	policy := next.Policy
	if err := a.Committee.Replace(policy.Schedulers); err != nil {
		a.Logger.Error(zerr.Wrap(err, "config reload rejected"))
		return
	}
	a.Ledger.SetMinStake(policy.MinStake)
	a.Orchestrator.SetMinStake(policy.MinStake)
	a.Orchestrator.SetSampler(domain.PercentSampler{Threshold: policy.SamplingThreshold})
	a.Logger.Info("policy reloaded", "members", len(policy.Schedulers), "min_stake", policy.MinStake,
		"sampling_threshold", policy.SamplingThreshold)
}
