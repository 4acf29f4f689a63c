package cmd

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/andresmejia3/maskguard/internal/store"
	"github.com/andresmejia3/maskguard/internal/utils"
	"github.com/spf13/cobra"
)

var sessionsLimit int

var sessionsCmd = &cobra.Command{
	Use:         "sessions",
	Short:       "List recorded live and scan sessions",
	Annotations: map[string]string{dbAnnotation: "true"},
	Run: func(cmd *cobra.Command, args []string) {
		sessions, err := DB.ListSessions(cmd.Context(), sessionsLimit)
		if err != nil {
			utils.Die("Failed to list sessions", err, nil)
		}
		if len(sessions) == 0 {
			fmt.Println("No sessions found in database.")
			return
		}
		writeSessions(os.Stdout, sessions)
	},
}

func init() {
	sessionsCmd.Flags().IntVarP(&sessionsLimit, "limit", "l", 20, "Maximum number of sessions to show")
	rootCmd.AddCommand(sessionsCmd)
}

func writeSessions(out io.Writer, sessions []store.Session) {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "ID\tKIND\tSOURCE\tSTARTED\tDURATION\tFACES\tMASKED\tSHOTS\tNOTE")
	fmt.Fprintln(w, "--\t----\t------\t-------\t--------\t-----\t------\t-----\t----")

	for _, s := range sessions {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%s\t%d\t%s\n",
			s.ID, s.Kind, s.Source,
			s.StartedAt.Local().Format("2006-01-02 15:04"),
			sessionDuration(s),
			s.Faces, maskRate(s.Masked, s.Faces), s.Screenshots, s.Note)
	}
	w.Flush()
}

// sessionDuration renders how long a session ran, or "running" when it never finished.
func sessionDuration(s store.Session) string {
	if s.EndedAt == nil {
		return "running"
	}
	return s.EndedAt.Sub(s.StartedAt).Round(time.Second).String()
}

func maskRate(masked, faces int) string {
	if faces == 0 {
		return "-"
	}
	return fmt.Sprintf("%d (%.0f%%)", masked, 100*float64(masked)/float64(faces))
}
