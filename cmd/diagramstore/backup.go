package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/flowkit/diagramstore/diagramstore/backup"
)

var backupCmd = &cobra.Command{
	Use:   "backup <file>",
	Short: "Write a backup snapshot of the whole store",
	Args:  cobra.ExactArgs(1),
	RunE:  runBackup,
}

var restoreCmd = &cobra.Command{
	Use:   "restore <file>",
	Short: "Restore the store from a backup snapshot",
	Long:  "Validate the snapshot, then clear the store and rewrite it from the snapshot contents. An invalid snapshot leaves the store untouched.",
	Args:  cobra.ExactArgs(1),
	RunE:  runRestore,
}

func runBackup(cmd *cobra.Command, args []string) error {
	store, err := loadStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	snapshot, err := store.CreateBackup()
	if err != nil {
		return fmt.Errorf("failed to create backup: %w", err)
	}
	data, err := backup.Encode(snapshot)
	if err != nil {
		return err
	}
	if err := os.WriteFile(args[0], data, 0644); err != nil {
		return fmt.Errorf("failed to write backup file: %w", err)
	}

	fmt.Printf("backed up %d diagrams to %s\n", len(snapshot.Data.Diagrams), args[0])
	return nil
}

func runRestore(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read backup file: %w", err)
	}
	snapshot, err := backup.Decode(data)
	if err != nil {
		return err
	}

	store, err := loadStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	restored, err := store.RestoreBackup(snapshot)
	if err != nil {
		return err
	}
	fmt.Printf("restored %d diagrams from %s\n", restored, args[0])
	return nil
}
