package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Pakyas-Monitoring/pakyas-cli/internal/api"
	"github.com/Pakyas-Monitoring/pakyas-cli/internal/cache"
	"github.com/Pakyas-Monitoring/pakyas-cli/internal/config"
	"github.com/Pakyas-Monitoring/pakyas-cli/internal/external"
	"github.com/Pakyas-Monitoring/pakyas-cli/internal/monitor"
)

func monitorCmd() *cobra.Command {
	var (
		publicIDFlag      string
		noExternal        bool
		externalTimeoutMs uint64
		migrationMode     bool
	)

	cmd := &cobra.Command{
		Use:   "monitor [slug] -- <command> [args...]",
		Short: "Run a command and report its lifecycle to Pakyas",
		Long: `Run a command, sending start and completion pings to Pakyas and any
configured external monitors. Exits with the wrapped command's own exit
code, or 3 when the completion could not be reported to any monitor.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			dash := cmd.ArgsLenAtDash()
			if dash == -1 || dash == len(args) {
				return fmt.Errorf("no command specified: usage is pakyas monitor <slug> -- <command>")
			}
			command := args[dash:]

			var slug string
			if dash > 0 {
				slug = args[0]
			}
			if slug == "" && publicIDFlag == "" {
				return fmt.Errorf("a check slug or --public-id is required")
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			externalTimeout := time.Duration(externalTimeoutMs) * time.Millisecond
			if !cmd.Flags().Changed("external-timeout-ms") && cfg.ExternalTimeoutMs != 0 {
				externalTimeout = cfg.ExternalTimeout()
			}

			logger := slog.Default()
			apiClient := api.NewClient(cfg.APIURL, cfg.PingURL, cfg.APIKey, nil)

			publicID, err := resolvePublicID(cmd.Context(), cfg, apiClient, slug, publicIDFlag, logger)
			if err != nil {
				return err
			}

			identifier := slug
			if identifier == "" {
				identifier = publicID.String()
			}

			targets, migration := loadExternalTargets(slug, noExternal, migrationMode, logger)
			logger.Debug("external monitors loaded",
				"targets", len(targets),
				"migration_mode", migration,
			)

			code, err := monitor.Run(cmd.Context(), monitor.Options{
				CheckIdentifier: identifier,
				PublicID:        publicID,
				Command:         command,
				Primary:         apiClient,
				Targets:         targets,
				MigrationMode:   migration,
				ExternalTimeout: externalTimeout,
				HTTPClient:      &http.Client{},
				Logger:          logger,
			})
			if err != nil {
				return err
			}
			exitStatus = code
			return nil
		},
	}

	cmd.Flags().StringVar(&publicIDFlag, "public-id", "", "check public id (skips slug resolution)")
	cmd.Flags().BoolVar(&noExternal, "no-external", false, "disable external monitors")
	cmd.Flags().Uint64Var(&externalTimeoutMs, "external-timeout-ms", 5000, "timeout for external monitor requests")
	cmd.Flags().BoolVar(&migrationMode, "migration-mode", false, "let an external monitor's success rescue the exit code when the Pakyas ping fails")

	return cmd
}

// resolvePublicID turns a slug into the check's ping public id,
// consulting the local cache before the API. An explicit --public-id
// skips resolution entirely.
func resolvePublicID(ctx context.Context, cfg *config.Config, client *api.Client, slug, explicit string, logger *slog.Logger) (uuid.UUID, error) {
	if explicit != "" {
		id, err := uuid.Parse(explicit)
		if err != nil {
			return uuid.Nil, fmt.Errorf("invalid --public-id %q: %w", explicit, err)
		}
		return id, nil
	}

	projectID, err := cfg.RequireProject()
	if err != nil {
		return uuid.Nil, err
	}

	// Cache trouble never blocks a run; it only costs an API call.
	var db *cache.DB
	if path, err := cache.DefaultPath(); err == nil {
		if db, err = cache.Open(path); err != nil {
			logger.Debug("check cache unavailable", "error", err)
			db = nil
		}
	}
	if db != nil {
		defer db.Close()
		entry, err := db.Get(ctx, projectID, slug)
		if err != nil {
			logger.Debug("check cache lookup failed", "error", err)
		} else if entry != nil {
			logger.Debug("check resolved from cache", "slug", slug, "public_id", entry.PublicID)
			return entry.PublicID, nil
		}
	}

	check, err := client.ResolveCheck(ctx, projectID, slug)
	if err != nil {
		return uuid.Nil, err
	}

	if db != nil {
		if err := db.Put(ctx, cache.Entry{
			ProjectID: projectID,
			Slug:      check.Slug,
			CheckID:   check.ID,
			PublicID:  check.PublicID,
			Name:      check.Name,
		}); err != nil {
			logger.Debug("caching check failed", "error", err)
		}
	}
	return check.PublicID, nil
}

// loadExternalTargets loads the external monitors config and resolves
// the targets for this check. The CLI migration flag ORs with the file
// setting; --no-external disables both.
func loadExternalTargets(slug string, noExternal, migrationFlag bool, logger *slog.Logger) ([]external.Target, bool) {
	if logger == nil {
		logger = slog.Default()
	}
	if noExternal {
		return nil, false
	}

	extCfg, err := external.LoadConfig()
	if err != nil {
		logger.Debug("external monitors config unavailable", "error", err)
		return nil, migrationFlag
	}
	targets := extCfg.TargetsForCheck(slug)
	if len(targets) == 0 && extCfg.HasAnyMonitors() {
		logger.Debug("external monitors configured but none apply to this check", "slug", slug)
	}
	return targets, migrationFlag || extCfg.MigrationMode
}
