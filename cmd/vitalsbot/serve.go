package main

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"golang.org/x/term"

	vitalsbot "github.com/kristjanh/vitalsbot"
	"github.com/kristjanh/vitalsbot/internal/telegram"
)

func runServe() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. Load configuration from the environment
	cfg, err := vitalsbot.LoadBotConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// 2. Setup logger
	logger := setupLogger(cfg.Logging)

	// 3. Resolve the connection string, prompting for a password when the
	// URL carries none and we are attached to a terminal
	connString, err := resolveConnString(cfg.DatabaseURL)
	if err != nil {
		return err
	}

	// 4. Create the engine
	engine, err := vitalsbot.New(ctx, connString, cfg.Config, logger)
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}
	defer engine.Close()

	// 5. Test database connection
	logger.Info().Msg("testing database connection")
	if err := engine.Ping(ctx); err != nil {
		logger.Error().Err(err).Msg("database connection test failed")
		return fmt.Errorf("database connection test failed: %w", err)
	}
	logger.Info().Msg("database connection test successful")

	// 6. Detect the schema up front so availability is visible in the logs
	// at startup. Failure here is not fatal; domains re-resolve lazily.
	statuses, err := engine.Resolver().ResolveAll(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("initial schema detection failed, will retry on demand")
	}
	for _, s := range statuses {
		if s.Available {
			logger.Info().Str("domain", s.DomainID).Str("table", s.Table).Msg("domain resolved")
		} else {
			logger.Warn().Str("domain", s.DomainID).Str("reason", s.Reason).Msg("domain unavailable")
		}
	}

	// 7. Connect to Telegram and run the polling loop
	api, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return fmt.Errorf("failed to connect to Telegram: %w", err)
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return fmt.Errorf("invalid timezone %q: %w", cfg.Timezone, err)
	}

	bot := telegram.New(api, engine, cfg, loc, logger)
	logger.Info().Str("timezone", cfg.Timezone).Msg("starting vitalsbot")
	if err := bot.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	logger.Info().Msg("shutting down")
	return nil
}

// resolveConnString prompts for a password when the DSN is a URL with a user
// but no password and stdin is a terminal. Non-interactive runs pass the DSN
// through untouched.
func resolveConnString(dsn string) (string, error) {
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return dsn, nil
	}
	if _, has := u.User.Password(); has {
		return dsn, nil
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return dsn, nil
	}
	password := promptPassword(fmt.Sprintf("Password for %s: ", u.User.Username()))
	if password == "" {
		return dsn, nil
	}
	u.User = url.UserPassword(u.User.Username(), password)
	return u.String(), nil
}

func promptPassword(prompt string) string {
	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr) // newline after password input
	if err != nil {
		return ""
	}
	return string(password)
}

func setupLogger(config vitalsbot.LoggingConfig) zerolog.Logger {
	level := zerolog.InfoLevel
	switch strings.ToLower(config.Level) {
	case "debug":
		level = zerolog.DebugLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	var output io.Writer = os.Stderr
	if config.Output == "stdout" {
		output = os.Stdout
	} else if config.Output != "" && config.Output != "stderr" {
		f, err := os.OpenFile(config.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err == nil {
			output = f
		}
	}

	if config.Format == "text" {
		output = zerolog.ConsoleWriter{Out: output}
	}

	return zerolog.New(output).Level(level).With().Timestamp().Logger()
}
