package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List every diagram in the store",
	RunE:  runList,
}

func runList(cmd *cobra.Command, args []string) error {
	store, err := loadStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	documents, err := store.Load()
	if err != nil {
		return fmt.Errorf("failed to load diagrams: %w", err)
	}

	if len(documents) == 0 {
		fmt.Println("no diagrams")
		return nil
	}
	for _, doc := range documents {
		fmt.Printf("%s  %-30s  items=%d views=%d  updated=%s\n",
			doc.ID, doc.Name, len(doc.Payload.Items), len(doc.Payload.Views),
			doc.UpdatedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}
