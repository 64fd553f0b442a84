package cli

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/soyeahso/perch/internal/catalog"
	"github.com/soyeahso/perch/internal/config"
	"github.com/soyeahso/perch/internal/gateway"
	"github.com/soyeahso/perch/internal/hooks"
	"github.com/soyeahso/perch/internal/logging"
	"github.com/soyeahso/perch/internal/selection"
	"github.com/soyeahso/perch/internal/statefile"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var (
		port int
		bind string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the gateway server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(paths.Config)
			if err != nil {
				return err
			}

			if port != 0 {
				cfg.Gateway.Port = port
			}
			if bind != "" {
				cfg.Gateway.Bind = bind
			}

			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				for _, issue := range issues {
					log.Error().Str("path", issue.Path).Msg(issue.Message)
				}
				return fmt.Errorf("config validation failed with %d issue(s)", len(issues))
			}

			// Daemon logging honors the config section: console style plus
			// an optional log file. The --log-level flag still wins.
			level := cfg.Logging.Level
			if logLevel != "" {
				level = logLevel
			}
			srvLog, closer, err := logging.Open(level, cfg.Logging.ConsoleStyle, paths.LogFile(cfg.Logging.File))
			if err != nil {
				return err
			}
			if closer != nil {
				defer closer.Close()
			}
			log = srvLog

			// Load raw config for RPC access
			raw, err := config.LoadRaw(paths.Config)
			if err != nil {
				raw = make(map[string]any)
			}

			// Initialize hook manager with the configured shell commands
			hookMgr := hooks.NewManager(log)
			hooks.RegisterConfigured(hookMgr, cfg.Hooks)

			if err := paths.EnsureDirs(); err != nil {
				return fmt.Errorf("creating data directories: %w", err)
			}

			// Block until SIGINT/SIGTERM
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			// Load the selection state and reconcile it against the catalog
			// before serving, so clients see a resolved view from the start.
			store := statefile.New(log)
			mgr, err := selection.NewManager(paths.Data, store, log)
			if err != nil {
				return fmt.Errorf("loading selection state: %w", err)
			}
			avail := buildAvailability(ctx, cfg)
			mgr.Reconcile(avail.Providers, avail.Agents)
			if err := mgr.Save(); err != nil {
				return fmt.Errorf("saving selection state: %w", err)
			}
			log.Info().
				Strs("providers", avail.Providers).
				Str("provider", mgr.Provider()).
				Msg("selection reconciled")

			opts := []gateway.ServerOption{
				gateway.WithConfigRaw(raw),
				gateway.WithHooks(hookMgr),
				gateway.WithSelection(mgr, store, paths.Data),
				gateway.WithAvailability(avail),
			}

			// Sync re-reads the config so provider edits take effect without
			// a restart.
			opts = append(opts, gateway.WithRefresh(func(ctx context.Context) catalog.Availability {
				fresh, err := config.Load(paths.Config)
				if err != nil {
					log.Warn().Err(err).Msg("config reload failed, using startup config")
					fresh = cfg
				}
				return buildAvailability(ctx, fresh)
			}))

			// Selection audit log
			db, events, err := openHistory(cfg)
			if err != nil {
				log.Warn().Err(err).Msg("history unavailable")
			}
			if db != nil {
				defer db.Close()
				opts = append(opts, gateway.WithHistory(events))
			}

			srv := gateway.New(cfg, log, opts...)

			go watchConfig(ctx, srv, paths.Config)

			return srv.Start(ctx)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "override gateway port")
	cmd.Flags().StringVar(&bind, "bind", "", "override bind mode (auto, lan, loopback, custom)")

	return cmd
}

// watchConfig triggers a gateway sync shortly after the config file changes.
// Editors typically replace the file rather than write in place, so the watch
// is on the directory and events are filtered by name.
func watchConfig(ctx context.Context, srv *gateway.Server, cfgPath string) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Warn().Err(err).Msg("config watcher unavailable")
		return
	}
	defer watcher.Close()

	dir := filepath.Dir(cfgPath)
	if err := watcher.Add(dir); err != nil {
		log.Warn().Err(err).Str("dir", dir).Msg("cannot watch config directory")
		return
	}
	log.Debug().Str("path", cfgPath).Msg("watching config for changes")

	var debounce *time.Timer
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Name != cfgPath {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(500*time.Millisecond, func() {
				log.Info().Str("path", cfgPath).Msg("config changed, syncing")
				if _, err := srv.Sync(ctx, "config"); err != nil {
					log.Warn().Err(err).Msg("sync after config change failed")
				}
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("config watcher error")
		}
	}
}
