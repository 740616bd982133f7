package app

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Swordingman/easychat/internal/auth"
	"github.com/Swordingman/easychat/internal/bus"
	"github.com/Swordingman/easychat/internal/config"
	"github.com/Swordingman/easychat/internal/logging"
	"github.com/Swordingman/easychat/internal/paths"
	"github.com/Swordingman/easychat/internal/registry"
	"github.com/Swordingman/easychat/internal/rest"
	"github.com/Swordingman/easychat/internal/status"
	"github.com/Swordingman/easychat/internal/store"
	intsync "github.com/Swordingman/easychat/internal/sync"
)

// Params holds the resolved startup options passed to the fx module.
type Params struct {
	ConfigPath string // optional override; empty = ~/.easychat/config.toml
}

// Module returns the fx module for the daemon, composing all providers
// and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("easychat",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideStateMachine,
			provideIdentity,
			provideRESTClient,
			provideArchive,
			provideMessageStore,
			provideRegistry,
			provideEngine,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig(p Params) (*config.Config, error) {
	path := p.ConfigPath
	if path == "" {
		path = paths.ConfigPath()
	}
	return config.Load(path)
}

func provideLogger() (*zap.Logger, error) {
	return logging.New(paths.LogPath())
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideIdentity() *auth.FileProvider {
	return auth.NewFileProvider(paths.CredentialsPath())
}

func provideRESTClient(cfg *config.Config, identity *auth.FileProvider, logger *zap.Logger) *rest.Client {
	return rest.NewClient(cfg.APIBaseURL, identity, logger)
}

func provideArchive(logger *zap.Logger) *store.Archive {
	// The archive is best-effort: a broken local database degrades to
	// in-memory-only operation instead of refusing to start.
	a, err := store.OpenArchive(paths.ArchiveDBPath())
	if err != nil {
		logger.Warn("archive unavailable, running without local history", zap.Error(err))
		return nil
	}
	logger.Info("archive opened", zap.String("path", paths.ArchiveDBPath()))
	return a
}

func provideMessageStore(client *rest.Client, archive *store.Archive, logger *zap.Logger) *store.MessageStore {
	return store.NewMessageStore(client, archive, logger)
}

func provideRegistry(client *rest.Client, msgs *store.MessageStore, identity *auth.FileProvider, b *bus.Bus, logger *zap.Logger) *registry.Registry {
	return registry.New(client, msgs, identity, b, logger)
}

func provideEngine(cfg *config.Config, identity *auth.FileProvider, reg *registry.Registry, msgs *store.MessageStore, client *rest.Client, machine *status.Machine, b *bus.Bus, logger *zap.Logger) *intsync.Engine {
	return intsync.NewEngine(cfg, identity, intsync.Dial, reg, msgs, client, machine, b, logger)
}

func registerLifecycle(lc fx.Lifecycle, engine *intsync.Engine, reg *registry.Registry, identity *auth.FileProvider, archive *store.Archive, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			if _, ok := identity.Current(); !ok {
				logger.Info("no credentials found, waiting for login")
				return nil
			}

			// Session list first, then the live connection, so inbound
			// frames land on known sessions.
			if err := reg.Refresh(context.Background()); err != nil {
				logger.Warn("initial session refresh failed", zap.Error(err))
			}
			go func() {
				if err := engine.Connect(context.Background()); err != nil {
					logger.Error("auto-connect failed", zap.Error(err))
				}
			}()
			engine.StartPolling(context.Background())
			return nil
		},
		OnStop: func(_ context.Context) error {
			engine.StopPolling()
			engine.Close()
			if archive != nil {
				_ = archive.Close()
			}
			logger.Info("daemon stopped")
			_ = logger.Sync()
			return nil
		},
	})
}
