package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/flowkit/diagramstore/diagramstore"
	"github.com/flowkit/diagramstore/diagramstore/backend"
)

var (
	storeDir   string
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "diagramstore",
	Short: "Diagramstore CLI",
	Long:  "Diagramstore persists diagram documents in a quota-aware key/value store. This CLI inspects, checks, backs up and restores a store directory.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initLogging(logLevel)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&storeDir, "store", "s", "", "path to store directory")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file (default: $XDG_CONFIG_HOME/diagramstore/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(restoreCmd)
}

// loadBackend opens the store directory resolved from flags and the
// optional config file. The --store flag wins over the config file.
func loadBackend() (*backend.File, config, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, config{}, err
	}

	dir := storeDir
	if dir == "" {
		dir = cfg.StoreDir
	}
	if dir == "" {
		return nil, config{}, fmt.Errorf("store directory is required (--store flag or config file)")
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, config{}, fmt.Errorf("invalid store path: %w", err)
	}

	b, err := backend.NewFile(absDir, cfg.QuotaBytes)
	if err != nil {
		return nil, config{}, err
	}
	return b, cfg, nil
}

// loadStore builds a store from flags and the optional config file.
func loadStore() (diagramstore.Store, error) {
	b, cfg, err := loadBackend()
	if err != nil {
		return nil, err
	}

	opts := []diagramstore.Option{diagramstore.WithLogger(mainLogger)}
	if patterns := cfg.cleanupPatterns(); patterns != nil {
		opts = append(opts, diagramstore.WithCleanupPatterns(patterns))
	}
	return diagramstore.New(b, opts...)
}
