package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Set with -ldflags "-X main.version=... -X main.commit=...".
var (
	version = "dev"
	commit  = "none"
)

var configFile string

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vocab-api",
		Short: "One4All vocabulary API server",
		Long: `Serves the vocabulary API: accounts, words, review scheduling,
archived sentences and AI sentence feedback.`,
		SilenceUsage: true,
		RunE:         runServe,
	}
	pf := cmd.PersistentFlags()
	pf.StringVar(&configFile, "config", "", "config file path (YAML)")
	pf.String("addr", "", "listen address, overrides server.addr")
	pf.String("dsn", "", "PostgreSQL DSN, overrides database.dsn; empty keeps data in memory")
	pf.Bool("migrate", false, "apply pending migrations before serving")
	pf.String("log-level", "", "debug, info, warn or error")

	cmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server (default)",
		RunE:  runServe,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("vocab-api %s (%s)\n", version, commit)
		},
	})
	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
