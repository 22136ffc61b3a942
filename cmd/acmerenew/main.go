// Command acmerenew drives the renewal engine (C12): a single ad hoc
// renewal, the scheduler loop, or registry cancellation, per §4.12/§6.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	acmerenew "github.com/caasmo/acmerenew"
	"github.com/caasmo/acmerenew/config"
	"github.com/caasmo/acmerenew/model"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configPath = flag.String("config", "acmerenew.toml", "path to the TOML configuration file")

		renewFlag    = flag.Bool("renew", false, "run the scheduler loop instead of a single renewal")
		forceRenewal = flag.Bool("force-renewal", false, "process every scheduled renewal, ignoring due dates")
		cancelFlag   = flag.Bool("cancel", false, "remove the matching scheduled renewal from the registry")

		host = flag.String("host", "", "primary host for a new or existing manual target")
		alt  = flag.String("alt", "", "comma-separated alternative names for a new manual target")

		pluginName       = flag.String("plugin", "manual", "target plugin name")
		validation       = flag.String("validation", "http-01", "validation plugin name")
		validationMode   = flag.String("validation-mode", "http-01", "challenge type to request")
		installation     = flag.String("installation", "", "comma-separated installation plugin names")
		script           = flag.String("script", "", "post-install script path")
		scriptParameters = flag.String("script-parameters", "", "post-install script parameters")
		centralSslStore  = flag.String("central-ssl-store", "", "central SSL store directory (pemfile store)")
		certificateStore = flag.String("certificate-store", "sqlite", "certificate store plugin name")
		keepExisting     = flag.Bool("keep-existing", false, "keep the previous certificate in the store rather than pruning it")
		warmup           = flag.Bool("warmup", false, "mark this renewal as a warmup run")
		test             = flag.Bool("test", false, "run in test mode (skip store/install)")
		closeOnFinish    = flag.Bool("close-on-finish", true, "exit after one pass instead of looping")
		sslPort          = flag.Int("ssl-port", 443, "local port installation plugins bind the certificate to")
		sslIPAddress     = flag.String("ssl-ip-address", "", "local IP address installation plugins bind to")
		validationPort   = flag.Int("validation-port", 80, "local port validation plugins bind to")
		noTaskScheduler  = flag.Bool("no-task-scheduler", false, "skip ensuring an OS-level cron entry")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.LoadFile(*configPath)
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		return model.InvalidInput.ExitCode()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, err := acmerenew.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build engine", "error", err)
		return model.Unexpected.ExitCode()
	}
	defer engine.Stop(context.Background())

	target := model.Target{
		PrimaryHost:             *host,
		AlternativeNames:        splitNonEmpty(*alt),
		TargetPluginName:        *pluginName,
		ValidationPluginName:    *validation,
		ChallengeType:           *validationMode,
		InstallationPluginNames: splitNonEmpty(*installation),
		SSLPort:                 *sslPort,
		SSLIPAddress:            *sslIPAddress,
		ValidationPort:          *validationPort,
	}

	if *cancelFlag {
		if *host == "" {
			logger.Error("-cancel requires -host")
			return model.InvalidInput.ExitCode()
		}
		if err := engine.Registry.Cancel(ctx, target); err != nil {
			logger.Error("failed to cancel scheduled renewal", "error", err)
			return model.Unexpected.ExitCode()
		}
		logger.Info("cancelled scheduled renewal", "host", *host)
		return 0
	}

	var keep *bool
	if *keepExisting {
		k := true
		keep = &k
	}

	if *host != "" {
		existing, err := engine.Registry.Find(ctx, target)
		if err != nil {
			logger.Error("failed to look up scheduled renewal", "error", err)
			return model.Unexpected.ExitCode()
		}
		renewal := model.ScheduledRenewal{
			Target:           target,
			TestMode:         *test,
			Warmup:           *warmup,
			ScriptPath:       *script,
			ScriptParameters: *scriptParameters,
			CentralSslStore:  *centralSslStore,
			CertificateStore: *certificateStore,
			KeepExisting:     keep,
			NoTaskScheduler:  *noTaskScheduler,
			New:              true,
		}
		if existing != nil {
			renewal = *existing
			renewal.TestMode = *test
		}
		// Record the request without an outcome: New and DueDate keep their
		// values until the renewal below reports back.
		if err := engine.Registry.Save(ctx, renewal, model.RenewResult{}); err != nil {
			logger.Error("failed to persist scheduled renewal", "error", err)
			return model.Unexpected.ExitCode()
		}
	}

	if !*renewFlag {
		if *host == "" {
			logger.Error("nothing to do: pass -host for a single renewal or -renew for the scheduler loop")
			return model.InvalidInput.ExitCode()
		}
		renewal, err := engine.Registry.Find(ctx, target)
		if err != nil || renewal == nil {
			logger.Error("scheduled renewal not found after save", "error", err)
			return model.Unexpected.ExitCode()
		}
		result := engine.Driver.Run(ctx, *renewal)
		if err := engine.Registry.Save(ctx, *renewal, result); err != nil {
			logger.Error("failed to persist renewal result", "error", err)
		}
		if !result.Success {
			logger.Error("renewal failed", "error", result.ErrorMessage)
			return model.Unexpected.ExitCode()
		}
		logger.Info("renewal succeeded", "host", *host)
		return 0
	}

	if *closeOnFinish {
		engine.Scheduler.RunOnce(ctx, *forceRenewal)
		return 0
	}

	if err := engine.Start(ctx); err != nil {
		logger.Error("failed to start engine", "error", err)
		return model.Unexpected.ExitCode()
	}

	<-ctx.Done()
	logger.Info("shutdown signal received")
	return 0
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}
