// Package cli implements the rcpt terminal client: the same login,
// upload, validate, process and list operations the web dashboard offers,
// on the command line.
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/example/receipt-console/internal/backend"
	"github.com/example/receipt-console/internal/session"
)

var (
	backendURL string
	sessionDB  string
)

// Root builds the rcpt root command
func Root(version string) *cobra.Command {
	root := &cobra.Command{
		Use:     "rcpt",
		Short:   "rcpt - terminal client for the receipt processing backend",
		Version: version,
		Long: `rcpt drives the receipt workflow from the terminal: upload PDF or image
receipts, validate and process them, and inspect the extracted data.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&backendURL, "backend-url", defaultBackendURL(), "Receipt backend base URL")
	root.PersistentFlags().StringVar(&sessionDB, "session-db", defaultSessionDB(), "Session database file path")

	root.AddCommand(LoginCmd())
	root.AddCommand(RegisterCmd())
	root.AddCommand(LogoutCmd())
	root.AddCommand(WhoamiCmd())
	root.AddCommand(UploadCmd())
	root.AddCommand(ListCmd())
	root.AddCommand(ValidateCmd())
	root.AddCommand(ProcessCmd())
	root.AddCommand(DeleteCmd())
	root.AddCommand(StatsCmd())

	return root
}

func defaultBackendURL() string {
	if url := os.Getenv("RCPT_BACKEND_URL"); url != "" {
		return url
	}
	return "http://localhost:3001/api"
}

func defaultSessionDB() string {
	if path := os.Getenv("RCPT_SESSION_DB"); path != "" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".rcpt-session.db"
	}
	return filepath.Join(home, ".rcpt-session.db")
}

// env opens the session store and backend client for one command run.
// The caller must invoke the returned cleanup.
func env() (*backend.Client, *session.BoltStore, func(), error) {
	sessions, err := session.NewBoltStore(sessionDB)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("opening session store: %w", err)
	}
	api := backend.New(backendURL, sessions)
	return api, sessions, func() { sessions.Close() }, nil
}
