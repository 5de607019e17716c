package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/spigell/resume-recommender/internal/logger"
	"github.com/spigell/resume-recommender/internal/store"
	"go.uber.org/zap"
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the stored results of a user",
	Run: func(cmd *cobra.Command, _ []string) {
		runShow(cmd)
	},
}

var forgetCmd = &cobra.Command{
	Use:   "forget",
	Short: "Delete the stored results and resume file of a user",
	Run: func(cmd *cobra.Command, _ []string) {
		runForget(cmd)
	},
}

func init() {
	rootCmd.AddCommand(showCmd, forgetCmd)

	showCmd.Flags().StringP("user", "u", "", "user id")
	showCmd.Flags().String("download", "", "write the stored resume file to this path")
	showCmd.MarkFlagRequired("user")

	forgetCmd.Flags().StringP("user", "u", "", "user id")
	forgetCmd.MarkFlagRequired("user")
}

func openForUser(ctx context.Context) (*application, *zap.Logger) {
	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}
	if config.Store.Driver == "" {
		logger.Fatal("results store is not configured", zap.String("hint", "set store.driver and store.dsn"))
	}

	// AI clients are not needed to read or delete records.
	config.AI.Enabled = false

	app, err := newApplication(ctx, config, logger)
	if err != nil {
		logger.Fatal("building application", zap.Error(err))
	}
	return app, logger
}

func runShow(cmd *cobra.Command) {
	ctx := context.Background()
	app, logger := openForUser(ctx)
	defer app.Close()

	userID, _ := cmd.Flags().GetString("user")
	rec, err := app.records.Load(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		logger.Info("no results stored", zap.String("user_id", userID))
		return
	}
	if err != nil {
		logger.Fatal("loading results", zap.Error(err))
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rec); err != nil {
		logger.Fatal("encoding results", zap.Error(err))
	}

	target, _ := cmd.Flags().GetString("download")
	if target == "" {
		return
	}
	if app.objects == nil || rec.StoragePath == "" {
		logger.Warn("resume file is not available", zap.String("hint", "enable object-store to keep uploaded files"))
		return
	}
	data, err := app.objects.Get(ctx, rec.StoragePath)
	if err != nil {
		logger.Fatal("downloading resume file", zap.String("key", rec.StoragePath), zap.Error(err))
	}
	if err := os.WriteFile(target, data, 0o600); err != nil {
		logger.Fatal("writing resume file", zap.String("path", target), zap.Error(err))
	}
	logger.Info("resume file saved", zap.String("path", target))
}

func runForget(cmd *cobra.Command) {
	ctx := context.Background()
	app, logger := openForUser(ctx)
	defer app.Close()

	userID, _ := cmd.Flags().GetString("user")
	rec, err := app.records.Load(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		logger.Info("nothing to delete", zap.String("user_id", userID))
		return
	}
	if err != nil {
		logger.Fatal("loading results", zap.Error(err))
	}

	if app.objects != nil && rec.StoragePath != "" {
		if err := app.objects.Delete(ctx, rec.StoragePath); err != nil {
			logger.Fatal("deleting resume file", zap.String("key", rec.StoragePath), zap.Error(err))
		}
	}
	if err := app.records.Delete(ctx, userID); err != nil {
		logger.Fatal("deleting results", zap.Error(err))
	}

	logger.Info("user data deleted", zap.String("user_id", userID))
}
