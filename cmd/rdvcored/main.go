// Command rdvcored is the monitoring daemon: it opens the Store, wires the
// Memory Engine, Command Injector and terminal
// collaborator together into a Monitoring Loop, and keeps that loop running
// for the default user's master orchestrator until asked to stop.
//
// There is no HTTP dashboard here. The teacher's internal/server component
// doesn't survive this module's scope (see DESIGN.md) — a deployment that
// wants a UI drives the Store and Monitoring Loop through its own process
// and subscribes to internal/eventbridge for state changes instead.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rdvcore/core/internal/config"
	"github.com/rdvcore/core/internal/eventbridge"
	"github.com/rdvcore/core/internal/injector"
	"github.com/rdvcore/core/internal/memoryengine"
	"github.com/rdvcore/core/internal/monitor"
	"github.com/rdvcore/core/internal/nats"
	"github.com/rdvcore/core/internal/notifications"
	"github.com/rdvcore/core/internal/notifications/external"
	"github.com/rdvcore/core/internal/store"
	"github.com/rdvcore/core/internal/terminal"
	"github.com/rdvcore/core/internal/types"
)

// ANSI color codes for terminal output
const (
	colorGreen = "\033[32m"
	colorReset = "\033[0m"
)

func main() {
	dbPath := flag.String("db", "data/rdvcore.db", "SQLite database path")
	configPath := flag.String("config", "", "YAML configuration override file (optional)")
	userID := flag.String("user", "", "Default user id to monitor (overrides RDV_USER_ID)")
	natsURL := flag.String("nats-url", "", "NATS server URL for the event bridge (optional; events are dropped if unset)")
	flag.Parse()

	cfg := config.Default().LoadEnv()
	if *dbPath != "" {
		cfg.DatabasePath = *dbPath
	}
	if *userID != "" {
		cfg.DefaultUserID = *userID
	}
	if *configPath != "" {
		var err error
		cfg, err = cfg.LoadYAMLFile(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config file: %v\n", err)
			os.Exit(1)
		}
	}
	if cfg.DefaultUserID == "" {
		cfg.DefaultUserID = "default"
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	printBanner()

	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open store: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	fmt.Print(colorGreen)
	fmt.Printf("  Store opened at %s\n", cfg.DatabasePath)
	fmt.Print(colorReset)

	mem := memoryengine.New(st, cfg.Memory)
	term := terminal.NewWezTerm()
	inj := injector.New(st, term, cfg.Injector.ExtraDenylist)

	manager := notifications.NewManager(notifications.Config{
		AppID:          "RDVCORE",
		EnableToast:    cfg.Notifications.EnableToast,
		EnableTerminal: cfg.Notifications.EnableTerminal,
		EnableBanner:   cfg.Notifications.EnableBanner,
	})
	router := buildRouter(cfg.Notifications)

	loop := monitor.New(st, mem, inj, term).WithRouter(router).WithNotificationManager(manager)

	if *natsURL != "" {
		client, err := nats.NewClient(*natsURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to connect to NATS at %s: %v\n", *natsURL, err)
		} else {
			defer client.Close()
			_ = eventbridge.New(client)
			fmt.Printf("  Event bridge connected to %s\n", *natsURL)
		}
	}

	orch, err := st.GetMasterOrchestrator(cfg.DefaultUserID)
	if err != nil {
		orch = &types.Orchestrator{
			UserID:                 cfg.DefaultUserID,
			Type:                   types.OrchestratorMaster,
			MonitoringIntervalSecs: 60,
			StallThresholdSecs:     900,
			AutoIntervention:       false,
		}
		if err := st.CreateOrchestrator(orch); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create master orchestrator: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("  Master orchestrator created for user %q\n", cfg.DefaultUserID)
	} else {
		fmt.Printf("  Master orchestrator found for user %q\n", cfg.DefaultUserID)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := loop.Start(ctx, orch.ID); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start monitoring loop: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("  Monitoring loop started")
	fmt.Println()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	<-shutdown

	fmt.Println()
	fmt.Println("Shutting down (signal received)...")
	if err := loop.Stop(orch.ID); err != nil {
		fmt.Fprintf(os.Stderr, "  Note: failed to stop monitoring loop cleanly: %v\n", err)
	}
	fmt.Println("Goodbye!")
}

// buildRouter wires the Slack/Discord/email channels enabled in cfg onto a
// fresh Router. A channel stays unregistered when disabled rather than
// being registered and filtered at send time, so GetChannels reflects what
// is actually live.
func buildRouter(cfg config.Notifications) *notifications.Router {
	var channels []notifications.NotificationChannel
	if cfg.Slack.Enabled {
		channels = append(channels, external.NewSlackNotifier(external.SlackConfig{
			WebhookURL:  cfg.Slack.WebhookURL,
			Channel:     cfg.Slack.Channel,
			MinPriority: cfg.Slack.MinPriority,
		}))
	}
	if cfg.Discord.Enabled {
		channels = append(channels, external.NewDiscordNotifier(external.DiscordConfig{
			WebhookURL:  cfg.Discord.WebhookURL,
			MinPriority: cfg.Discord.MinPriority,
		}))
	}
	if cfg.Email.Enabled {
		channels = append(channels, external.NewEmailNotifier(external.EmailConfig{
			SMTPHost:    cfg.Email.SMTPHost,
			SMTPPort:    cfg.Email.SMTPPort,
			Username:    cfg.Email.Username,
			Password:    cfg.Email.Password,
			From:        cfg.Email.From,
			To:          cfg.Email.To,
			MinPriority: cfg.Email.MinPriority,
		}))
	}
	return notifications.NewRouter(channels)
}

func printBanner() {
	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════════════════╗")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║                    RDVCORE                           ║")
	fmt.Println("  ║          Orchestrator Monitoring Daemon              ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ╚═══════════════════════════════════════════════════════╝")
	fmt.Println()
}
