// Package cli wires the basalytics commands: the server, account
// administration, ad-hoc queries, and benchmark seeding.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/basalytics/basalytics/internal/config"
	"github.com/basalytics/basalytics/internal/store"
)

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "basalytics",
	Short: "Privacy-preserving event analytics",
	Long: `basalytics ingests schema-less events with typed properties and answers
counting queries over them with an ad-hoc boolean filter language. Visitors
are correlated with a daily-rotating pseudonymous session hash; raw client
identifiers are never stored.`,
	Version: "0.1.0",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")
}

func initConfig() {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
}

// openStore connects to the configured database, running migrations on the
// postgres path.
func openStore(ctx context.Context) (store.Store, error) {
	if cfg.Database.Type == "memory" {
		return store.NewMemoryStore(), nil
	}

	connString := cfg.Database.ConnString()
	if err := store.Migrate(cfg.Database.MigrationsPath, connString); err != nil {
		return nil, err
	}
	return store.NewPostgresStore(ctx, connString)
}
