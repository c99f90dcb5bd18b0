package cli

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"quiz-room-service/internal/config"
	"quiz-room-service/internal/infra/memory"
	pgstore "quiz-room-service/internal/infra/postgres"
	redisinfra "quiz-room-service/internal/infra/redis"
)

// NewImportSetCmd loads question sets from a YAML file into Postgres.
func NewImportSetCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "import-set <file.yaml>",
		Short: "Import question sets from a YAML file into Postgres",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			return importSets(cmd.Context(), cfg, args[0])
		},
	}
}

func importSets(ctx context.Context, cfg config.Config, path string) error {
	log := newLogger(cfg)
	sets, err := memory.ReadSetsFile(path)
	if err != nil {
		return err
	}
	if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
		return err
	}
	db, err := openBun(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := pgstore.NewSetImporter(db).Import(ctx, sets); err != nil {
		return err
	}

	// Drop stale cached copies so rooms created after the import see the new content.
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer client.Close()
		cache := redisinfra.NewQuestionSetRepository(client, nil, time.Minute)
		for _, s := range sets {
			if err := cache.Invalidate(ctx, s.ID); err != nil {
				log.Warn().Err(err).Str("set", s.ID).Msg("invalidate cached set")
			}
		}
	}
	log.Info().Int("sets", len(sets)).Str("file", path).Msg("question sets imported")
	return nil
}
