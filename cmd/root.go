package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/andresmejia3/maskguard/internal/logging"
	"github.com/andresmejia3/maskguard/internal/mask"
	"github.com/andresmejia3/maskguard/internal/store"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Options holds shared configuration for the run, scan, and classify commands
type Options struct {
	InputPath   string
	Device      int
	CascadePath string
	PalettePath string
	OutputDir   string
	WindowTitle string
	NthFrame    int
	NumEngines  int
	MinFaceSize int
}

var (
	// DB is the session store shared by subcommands. It stays nil when no
	// database is configured.
	DB *store.Store
	// Logger carries structured diagnostics.
	Logger = zap.NewNop()

	dbURL   string
	verbose bool
)

// Version is the application version.
const Version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:     "maskguard",
	Short:   "Real-time face mask detection",
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := logging.NewLogger(verbose)
		if err != nil {
			return fmt.Errorf("failed to build logger: %w", err)
		}
		Logger = l

		url := resolveDBURL(dbURL, os.Getenv)
		if url == "" {
			if requiresDB(cmd) {
				return fmt.Errorf("%s needs a database: pass --db or set POSTGRES_HOST", cmd.Name())
			}
			return nil
		}

		// Use the command's context (which will be cancellable) for the connection
		DB, err = store.New(cmd.Context(), url)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		Logger.Debug("database connected")
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if DB != nil {
			// Use Background here because the main context might be cancelled already (due to Ctrl+C)
			// and we still need to send the "Close" command to the DB.
			DB.Close(context.Background())
		}
		_ = Logger.Sync()
	},
}

// dbAnnotation marks commands that cannot run without a database.
const dbAnnotation = "requires-db"

func requiresDB(cmd *cobra.Command) bool {
	_, ok := cmd.Annotations[dbAnnotation]
	return ok
}

// resolveDBURL prefers the flag, then POSTGRES_* variables. An empty result
// means persistence is off.
func resolveDBURL(flag string, getenv func(string) string) string {
	if flag != "" {
		return flag
	}
	host := getenv("POSTGRES_HOST")
	if host == "" {
		return ""
	}
	port := getenv("POSTGRES_PORT")
	if port == "" {
		port = "5432"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s",
		getenv("POSTGRES_USER"), getenv("POSTGRES_PASSWORD"), host, port, getenv("POSTGRES_DB"))
}

// loadClassifier builds the classifier from --palette, or the default palette.
func loadClassifier(path string) (*mask.Classifier, error) {
	cfg := mask.DefaultConfig()
	if path != "" {
		var err error
		if cfg, err = mask.LoadConfig(path); err != nil {
			return nil, err
		}
	}
	return mask.New(cfg)
}

func Execute() {
	// Create a context that listens for Ctrl+C (SIGINT) or Kill (SIGTERM)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbURL, "db", "", "PostgreSQL connection string for session history (default: off, or built from POSTGRES_* env)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}
