package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show storage usage",
	RunE:  runInfo,
}

func runInfo(cmd *cobra.Command, args []string) error {
	store, err := loadStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	info, err := store.Info()
	if err != nil {
		return fmt.Errorf("failed to compute storage info: %w", err)
	}

	fmt.Printf("used:     %d bytes\n", info.UsedBytes)
	fmt.Printf("diagrams: %d bytes\n", info.DocumentBytes)
	fmt.Printf("other:    %d bytes\n", info.OtherBytes)
	if info.QuotaBytes > 0 {
		fmt.Printf("quota:    %d bytes (%.1f%% used)\n", info.QuotaBytes,
			100*float64(info.UsedBytes)/float64(info.QuotaBytes))
	} else {
		fmt.Printf("quota:    unlimited\n")
	}
	return nil
}
