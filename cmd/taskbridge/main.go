// Command taskbridge mirrors open Jira issues and their comments into
// Planfix tasks, one way, on a polling loop.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/steveyegge/taskbridge/internal/bridge"
	"github.com/steveyegge/taskbridge/internal/config"
	"github.com/steveyegge/taskbridge/internal/jira"
	"github.com/steveyegge/taskbridge/internal/notify"
	"github.com/steveyegge/taskbridge/internal/planfix"
	"github.com/steveyegge/taskbridge/internal/store"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	var once bool

	cmd := &cobra.Command{
		Use:          "taskbridge",
		Short:        "One-way Jira to Planfix issue synchronization bridge",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath, once)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file (default ./taskbridge.yaml)")
	cmd.Flags().BoolVar(&once, "once", false, "run a single sync pass and exit")
	return cmd
}

func run(configPath string, once bool) error {
	logger := log.New(os.Stdout, "[taskbridge] ", log.LstdFlags|log.Lmsgprefix)

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.NewRedisStore(cfg.Redis.URL, store.WithNamespace(cfg.Redis.Namespace))
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Printf("closing store: %v", err)
		}
	}()

	jc := jira.NewClient(cfg.Jira.URL, cfg.Jira.Username, cfg.Jira.APIToken)
	jc.PauseStatus = cfg.Jira.PauseStatus
	source := jira.NewSource(jc, cfg.DownloadDir)

	pc := planfix.NewClient(cfg.Planfix.URL, cfg.Planfix.Account, cfg.Planfix.APIKey, cfg.Planfix.Login, cfg.Planfix.Password)
	pc.ProjectID = cfg.Planfix.ProjectID
	pc.Workers = cfg.Planfix.Workers
	pc.Members = cfg.Planfix.Members
	pc.CommentOwnerID = cfg.Planfix.CommentOwnerID

	// Fail now rather than on the first pass if the credentials are bad.
	if err := pc.Authenticate(ctx); err != nil {
		return fmt.Errorf("verifying destination credentials: %w", err)
	}

	var notifier notify.Notifier
	if cfg.Telegram.Token != "" {
		notifier = notify.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID)
	} else {
		logger.Printf("no telegram credentials configured, alerts go to the log")
		notifier = &notify.LogNotifier{Logger: logger}
	}

	b := bridge.New(source, pc, st, notifier, bridge.Config{
		PollInterval:     cfg.PollInterval,
		FetchConcurrency: cfg.FetchConcurrency,
	}, logger)

	if once {
		return b.RunPass(ctx)
	}

	if err := b.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
