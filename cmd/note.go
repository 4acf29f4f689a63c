package cmd

import (
	"fmt"
	"strings"

	"github.com/andresmejia3/maskguard/internal/utils"
	"github.com/spf13/cobra"
)

var noteCmd = &cobra.Command{
	Use:         "note <session_id> <text>",
	Short:       "Attach a note to a recorded session",
	Args:        cobra.MinimumNArgs(2),
	Annotations: map[string]string{dbAnnotation: "true"},
	Run: func(cmd *cobra.Command, args []string) {
		id := args[0]
		text := strings.Join(args[1:], " ")

		if err := DB.NoteSession(cmd.Context(), id, text); err != nil {
			utils.Die("Failed to note session", err, nil)
		}
		fmt.Printf("✅ Session %s noted as '%s'\n", id, text)
	},
}

func init() {
	rootCmd.AddCommand(noteCmd)
}
