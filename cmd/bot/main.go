// Command bot runs the Telegram process: the /link command initiator and
// the passive identity-sync observer. It talks to the web backend over
// HTTP for redemptions and writes identity observations directly to the
// shared SQLite datastore.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/campfirehq/community-backend/internal/bot"
	"github.com/campfirehq/community-backend/internal/config"
	"github.com/campfirehq/community-backend/internal/repo"
	"github.com/campfirehq/community-backend/internal/services"
	"github.com/campfirehq/community-backend/internal/sysutil"
)

func main() {
	_ = godotenv.Load()
	cfg := config.MustLoad()

	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	if cfg.Bot.Token == "" {
		log.Fatal().Msg("TELEGRAM_BOT_TOKEN is not set")
	}

	db, err := repo.OpenSQLite(cfg.DBPath, false)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database failed")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}

	client := bot.NewClient(cfg.Bot.BackendURL+cfg.APIBasePath, cfg.Bot.HTTPTimeout)
	identity := &services.IdentityService{DB: db}

	h, err := bot.NewHandler(cfg.Bot.Token, client, identity, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("bot init failed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	h.Start(ctx)
	log.Info().Msg("bot stopped")
}
