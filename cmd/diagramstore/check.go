package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/flowkit/diagramstore/diagramstore/integrity"
	"github.com/flowkit/diagramstore/types"
)

var checkFix bool

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check the store for structural violations",
	Long:  "Scan the persisted collection for invalid diagrams and report them. With --fix, invalid diagrams are dropped, the cleaned collection is rewritten and a malformed last-opened pointer is cleared.",
	RunE:  runCheck,
}

func init() {
	checkCmd.Flags().BoolVar(&checkFix, "fix", false, "persist repairs instead of only reporting")
}

func runCheck(cmd *cobra.Command, args []string) error {
	if checkFix {
		return runCheckFix()
	}
	return runCheckReport()
}

func runCheckFix() error {
	store, err := loadStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	report, err := store.CheckIntegrity()
	if err != nil {
		return fmt.Errorf("integrity check failed to run: %w", err)
	}

	if report.IsValid {
		fmt.Printf("ok: %d diagrams, no issues\n", len(report.Repaired))
		return nil
	}
	for _, issue := range report.Issues {
		fmt.Printf("issue: %s\n", issue)
	}
	if report.AutoFixed {
		fmt.Printf("repaired: kept %d valid diagrams\n", len(report.Repaired))
	}
	return nil
}

// runCheckReport evaluates the store without persisting anything back.
func runCheckReport() error {
	b, _, err := loadBackend()
	if err != nil {
		return err
	}
	defer func() { _ = b.Close() }()

	raw, ok, err := b.Get(types.DiagramsKey)
	if err != nil {
		return fmt.Errorf("failed to read collection: %w", err)
	}
	var documents []types.Document
	if ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &documents); err != nil {
			fmt.Println("issue: collection is not valid JSON")
			fmt.Println("run check --fix to repair")
			return nil
		}
	}
	report := integrity.Check(documents)

	id, ok, err := b.Get(types.LastOpenedIDKey)
	if err != nil {
		return fmt.Errorf("failed to read last-opened pointer: %w", err)
	}
	if ok {
		data, _, err := b.Get(types.LastOpenedDataKey)
		if err != nil {
			return fmt.Errorf("failed to read last-opened snapshot: %w", err)
		}
		issues, clear := integrity.CheckLastOpened(types.LastOpened{ID: id, Data: json.RawMessage(data)})
		if clear {
			report.IsValid = false
			report.Issues = append(report.Issues, issues...)
		}
	}

	if report.IsValid {
		fmt.Printf("ok: %d diagrams, no issues\n", len(report.Repaired))
		return nil
	}
	for _, issue := range report.Issues {
		fmt.Printf("issue: %s\n", issue)
	}
	fmt.Println("run check --fix to repair")
	return nil
}
