package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/andresmejia3/maskguard/internal/utils"
	"github.com/spf13/cobra"
)

var (
	resetDB          bool
	resetScreenshots bool
	resetDir         string
	resetYes         bool
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset system state (Database, Screenshots)",
	Long:  "Clears all data. By default, it resets everything. Use flags to clear specific components.",
	Run: func(cmd *cobra.Command, args []string) {
		// If no flags are set, default to clearing EVERYTHING
		if !resetDB && !resetScreenshots {
			resetDB = true
			resetScreenshots = true
		}

		reader := bufio.NewReader(os.Stdin)

		if resetDB {
			if DB == nil {
				fmt.Println("⏭️  No database configured, skipping tables.")
			} else if confirm(reader, os.Stdout, "⚠️  Are you sure you want to DROP all database tables?") {
				fmt.Println("🗑️  Clearing Database...")
				if err := DB.Reset(cmd.Context()); err != nil {
					utils.Die("Failed to reset database", err, nil)
				}
			}
		}

		if resetScreenshots {
			if confirm(reader, os.Stdout, fmt.Sprintf("⚠️  Are you sure you want to delete all screenshots in %s?", resetDir)) {
				fmt.Println("🗑️  Clearing Screenshots...")
				n, err := removeScreenshots(resetDir)
				if err != nil {
					fmt.Fprintf(os.Stderr, "⚠️  Failed to remove screenshots: %v\n", err)
				}
				fmt.Printf("   %d file(s) removed\n", n)
			}
		}

		fmt.Println("✨ System Reset Complete.")
	},
}

func init() {
	resetCmd.Flags().BoolVar(&resetDB, "tables", false, "Drop the PostgreSQL session tables")
	resetCmd.Flags().BoolVar(&resetScreenshots, "screenshots", false, "Delete screenshot_<n>.jpg files")
	resetCmd.Flags().StringVarP(&resetDir, "dir", "d", ".", "Directory holding screenshots")
	resetCmd.Flags().BoolVarP(&resetYes, "yes", "y", false, "Do not ask for confirmation")
	rootCmd.AddCommand(resetCmd)
}

func confirm(r *bufio.Reader, w io.Writer, prompt string) bool {
	if resetYes {
		return true
	}
	fmt.Fprintf(w, "%s [y/N]: ", prompt)
	res, _ := r.ReadString('\n')
	res = strings.TrimSpace(strings.ToLower(res))
	return res == "y" || res == "yes"
}

// removeScreenshots deletes the files the live session writes and reports how many went.
func removeScreenshots(dir string) (int, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "screenshot_*.jpg"))
	if err != nil {
		return 0, err
	}
	removed := 0
	var firstErr error
	for _, path := range matches {
		if err := os.Remove(path); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		removed++
	}
	return removed, firstErr
}
