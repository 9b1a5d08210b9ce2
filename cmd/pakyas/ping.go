package main

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Pakyas-Monitoring/pakyas-cli/internal/api"
	"github.com/Pakyas-Monitoring/pakyas-cli/internal/config"
	"github.com/Pakyas-Monitoring/pakyas-cli/internal/event"
	"github.com/Pakyas-Monitoring/pakyas-cli/internal/external"
	"github.com/Pakyas-Monitoring/pakyas-cli/internal/output"
)

func pingCmd() *cobra.Command {
	var (
		start      bool
		fail       bool
		exitCode   int
		noExternal bool
	)

	cmd := &cobra.Command{
		Use:   "ping <slug-or-public-id>",
		Short: "Send a one-shot ping for a check",
		Long: `Send a manual lifecycle ping without running a command. The check can
be named by its slug or by its ping public id. Without a flag the ping
reports success. Configured external monitors receive the same event.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := slog.Default()
			client := api.NewClient(cfg.APIURL, cfg.PingURL, cfg.APIKey, nil)

			// A public id skips slug resolution; anything else is a slug.
			var slug, explicit string
			if _, err := uuid.Parse(args[0]); err == nil {
				explicit = args[0]
			} else {
				slug = args[0]
			}

			publicID, err := resolvePublicID(cmd.Context(), cfg, client, slug, explicit, logger)
			if err != nil {
				return err
			}
			identifier := slug
			if identifier == "" {
				identifier = publicID.String()
			}

			modifier, ev := manualPing(identifier, start, fail, cmd.Flags().Changed("exit"), exitCode)
			if err := client.Ping(cmd.Context(), publicID, modifier); err != nil {
				return fmt.Errorf("ping failed: %w", err)
			}
			output.Success("Sent %s ping for %q", ev.EventType, identifier)

			// The same event fans out to external monitors, joined before
			// exit so a short-lived process does not drop it.
			targets, _ := loadExternalTargets(slug, noExternal, false, logger)
			timeout := cfg.ExternalTimeout()
			handle := external.Dispatch(&http.Client{}, targets, ev, timeout, logger)
			if !handle.Wait(timeout) {
				logger.Warn("external ping timed out")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&start, "start", false, "send a start ping")
	cmd.Flags().BoolVar(&fail, "fail", false, "send a fail ping")
	cmd.Flags().IntVar(&exitCode, "exit", 0, "send a completion ping with this exit code")
	cmd.Flags().BoolVar(&noExternal, "no-external", false, "disable external monitors")
	cmd.MarkFlagsMutuallyExclusive("start", "fail", "exit")

	return cmd
}

// manualPing maps the ping flags to the primary URL modifier and the
// event external monitors receive. An explicit --exit wins over the
// success default even when the code is 0.
func manualPing(identifier string, start, fail, exitSet bool, exitCode int) (string, event.PingEvent) {
	switch {
	case start:
		return "/start", event.Start(identifier)
	case fail:
		return "/fail", event.ManualFail(identifier)
	case exitSet:
		return fmt.Sprintf("/%d", exitCode), event.Completion(identifier, exitCode, 0, "")
	default:
		return "", event.Success(identifier, 0)
	}
}
