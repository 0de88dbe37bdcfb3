package main

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/example/receipt-console/internal/backend"
	"github.com/example/receipt-console/internal/dashboard"
	"github.com/example/receipt-console/internal/session"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	fs := ff.NewFlagSet("receipt-console")
	var (
		port        = fs.IntLong("port", 8080, "HTTP server port")
		backendURL  = fs.StringLong("backend-url", "http://localhost:3001/api", "Receipt backend base URL")
		sessionDB   = fs.StringLong("session-db", "receipt-console.db", "Session database file path")
		showVersion = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("RECEIPT_CONSOLE"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	slog.Info("Opening session store...", "path", *sessionDB)
	sessions, err := session.NewBoltStore(*sessionDB)
	if err != nil {
		slog.Error("Failed to open session store", "error", err)
		os.Exit(1)
	}
	defer sessions.Close()

	api := backend.New(*backendURL, sessions)
	server := dashboard.NewServer(api, sessions)

	addr := fmt.Sprintf(":%d", *port)
	go func() {
		if err := server.Start(addr); err != nil {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("Dashboard started",
		"address", fmt.Sprintf("http://localhost%s", addr),
		"backend", *backendURL,
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	slog.Info("Shutting down...")
}
