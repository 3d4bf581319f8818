package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/irislabs/iris/internal/api"
	"github.com/irislabs/iris/internal/channel"
	"github.com/irislabs/iris/internal/channel/discord"
	"github.com/irislabs/iris/internal/channel/slack"
	"github.com/irislabs/iris/internal/channel/whatsapp"
	"github.com/irislabs/iris/internal/dialog"
	"github.com/irislabs/iris/internal/language"
	"github.com/irislabs/iris/internal/models"
	"github.com/irislabs/iris/internal/nlp"
	"github.com/irislabs/iris/internal/report"
	"github.com/irislabs/iris/internal/sched"
	"github.com/irislabs/iris/internal/store"
	"github.com/irislabs/iris/internal/util"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for Iris state data
	DefaultStateDir = "/var/lib/iris"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "iris.db"
	// DefaultAPIAddr is the default HTTP listen address
	DefaultAPIAddr = ":8080"
	// DefaultSweepSpec runs the stale-job sweep every five minutes
	DefaultSweepSpec = "*/5 * * * *"
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	if err := run(flags); err != nil {
		slog.Error("Iris failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("Iris exited successfully")
}

// Config holds environment configuration
type Config struct {
	DatabaseURL      string
	StateDir         string
	APIAddr          string
	OpenAIKey        string
	DetectAPIKey     string
	TwilioSID        string
	TwilioToken      string
	TwilioFrom       string
	SlackToken       string
	DiscordToken     string
	SMTPHost         string
	SMTPPort         int
	SMTPUser         string
	SMTPPassword     string
	ReportFrom       string
	ReportTo         string
	FollowUpDelay    time.Duration
	SweepSpec        string
}

// Flags holds command line flag values
type Flags struct {
	config   Config
	stateDir *string
	dbDSN    *string
	apiAddr  *string
}

// initializeLogger sets up structured logging; IRIS_DEBUG enables debug level.
func initializeLogger() {
	level := slog.LevelInfo
	if util.ParseBoolEnv("IRIS_DEBUG", false) {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		StateDir:      util.GetEnv("IRIS_STATE_DIR", DefaultStateDir),
		APIAddr:       util.GetEnv("API_ADDR", DefaultAPIAddr),
		OpenAIKey:     os.Getenv("OPENAI_API_KEY"),
		DetectAPIKey:  os.Getenv("DETECT_LANGUAGE_API_KEY"),
		TwilioSID:     os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioToken:   os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFrom:    os.Getenv("TWILIO_WHATSAPP_FROM"),
		SlackToken:    os.Getenv("SLACK_BOT_TOKEN"),
		DiscordToken:  os.Getenv("DISCORD_BOT_TOKEN"),
		SMTPHost:      os.Getenv("SMTP_HOST"),
		SMTPPort:      util.ParseIntEnv("SMTP_PORT", 587),
		SMTPUser:      os.Getenv("SMTP_USERNAME"),
		SMTPPassword:  os.Getenv("SMTP_PASSWORD"),
		ReportFrom:    os.Getenv("REPORT_FROM"),
		ReportTo:      os.Getenv("REPORT_TO"),
		FollowUpDelay: util.ParseDurationEnv("FOLLOW_UP_DELAY", 60*time.Second),
		SweepSpec:     util.GetEnv("JOB_SWEEP_SPEC", DefaultSweepSpec),
	}
	return config
}

// parseCommandLineFlags parses flags with environment-derived defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		config:   config,
		stateDir: flag.String("state-dir", config.StateDir, "directory for state data"),
		dbDSN:    flag.String("db-dsn", config.DatabaseURL, "database DSN (SQLite path or Postgres URL)"),
		apiAddr:  flag.String("api-addr", config.APIAddr, "HTTP API listen address"),
	}
	flag.Parse()
	return flags
}

// openStore picks the storage backend from the DSN.
func openStore(flags Flags) (store.Store, store.JobRepo, error) {
	dsn := *flags.dbDSN
	if dsn == "" {
		dsn = filepath.Join(*flags.stateDir, DefaultDBFileName)
		slog.Debug("No DSN configured, using SQLite in state dir", "path", dsn)
	}
	switch store.DetectDSNType(dsn) {
	case "postgres":
		s, err := store.NewPostgresStore(store.WithPostgresDSN(dsn))
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	default:
		s, err := store.NewSQLiteStore(store.WithSQLiteDSN(dsn))
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	}
}

// buildAdapters wires one adapter per configured channel.
func buildAdapters(config Config) (channel.Registry, error) {
	adapters := make(channel.Registry)

	if config.TwilioSID != "" && config.TwilioToken != "" && config.TwilioFrom != "" {
		wa, err := whatsapp.NewAdapter(
			whatsapp.WithAccountSID(config.TwilioSID),
			whatsapp.WithAuthToken(config.TwilioToken),
			whatsapp.WithFrom(config.TwilioFrom),
		)
		if err != nil {
			return nil, err
		}
		adapters[models.ChannelWhatsApp] = wa
		slog.Info("WhatsApp adapter configured")
	}

	if config.SlackToken != "" {
		sl, err := slack.NewAdapter(slack.WithBotToken(config.SlackToken))
		if err != nil {
			return nil, err
		}
		adapters[models.ChannelSlack] = sl
		slog.Info("Slack adapter configured")
	}

	if config.DiscordToken != "" {
		dc, err := discord.NewAdapter(discord.WithBotToken(config.DiscordToken))
		if err != nil {
			return nil, err
		}
		adapters[models.ChannelDiscord] = dc
		slog.Info("Discord adapter configured")
	}

	if len(adapters) == 0 {
		return nil, errors.New("no channel adapter configured")
	}
	return adapters, nil
}

func run(flags Flags) error {
	config := flags.config

	st, jobs, err := openStore(flags)
	if err != nil {
		return err
	}
	defer st.Close()

	adapters, err := buildAdapters(config)
	if err != nil {
		return err
	}

	var detector language.Detector
	if config.DetectAPIKey != "" {
		d, err := language.NewHTTPDetector(language.WithAPIKey(config.DetectAPIKey))
		if err != nil {
			return err
		}
		detector = d
	} else {
		slog.Warn("No language detection API key, relying on word lists and stickiness")
	}
	resolver := language.NewResolver(detector)

	classifier, err := nlp.NewOpenAIClassifier(nlp.WithAPIKey(config.OpenAIKey))
	if err != nil {
		return err
	}

	var reports report.Sender
	if config.SMTPHost != "" {
		m, err := report.NewMailer(
			report.WithServer(config.SMTPHost, config.SMTPPort),
			report.WithCredentials(config.SMTPUser, config.SMTPPassword),
			report.WithFrom(config.ReportFrom),
			report.WithTo(config.ReportTo),
		)
		if err != nil {
			return err
		}
		reports = m
	} else {
		slog.Warn("No SMTP host configured, reports are logged and dropped")
		reports = report.LogSender{}
	}

	scheduler := sched.NewJobScheduler(jobs)
	runner := sched.NewRunner(jobs)
	sweeper := sched.NewSweeper(jobs)

	manager := dialog.NewManager(st, scheduler, resolver, classifier, adapters, reports,
		dialog.WithFollowUpDelay(config.FollowUpDelay))
	manager.RegisterJobHandlers(runner)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner.RecoverStaleJobs()
	go runner.Start(ctx)
	if err := sweeper.Start(config.SweepSpec); err != nil {
		return err
	}
	defer sweeper.Stop()

	server := &http.Server{Addr: *flags.apiAddr, Handler: api.NewServer(manager)}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("Iris API listening", "addr", *flags.apiAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		slog.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
