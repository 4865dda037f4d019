// Package cli is the foliocraft command line: it drives the same workspace
// controller as the web organizer against a running service.
package cli

import (
	"fmt"
	"net/http"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/local/foliocraft/internal/client"
	"github.com/local/foliocraft/internal/config"
	"github.com/local/foliocraft/internal/logger"
	"github.com/local/foliocraft/internal/prefs"
)

// app is the state shared by all subcommands, resolved once flags and the
// environment are known.
type app struct {
	cfg      config.Config
	server   string
	logLevel string
	pretty   bool
}

func (a *app) client() *client.Client {
	return client.New(a.server, &http.Client{Timeout: a.cfg.Client.Timeout})
}

func (a *app) prefsStore() (*prefs.FileStore, error) {
	path := a.cfg.Client.PrefsFile
	if path == "" {
		p, err := prefs.DefaultPath()
		if err != nil {
			return nil, fmt.Errorf("locate preferences: %w", err)
		}
		path = p
	}
	return prefs.NewFileStore(path), nil
}

func NewRootCmd() *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:   "foliocraft",
		Short: "Organize pages from PDF and Word documents into one PDF",
		Long: `foliocraft uploads documents to a FolioCraft service, lets you pick,
rotate and reorder their pages, and downloads the merged result.

The service address comes from --server or FOLIOCRAFT_SERVER.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
			a.cfg = config.FromEnv()
			if a.server == "" {
				a.server = a.cfg.Client.ServerURL
			}
			logger.Console(a.logLevel, a.pretty)
		},
	}

	cmd.PersistentFlags().StringVar(&a.server, "server", "", "Service base URL (default $FOLIOCRAFT_SERVER or http://localhost:8080)")
	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "warn", "Log level written to stderr")
	cmd.PersistentFlags().BoolVar(&a.pretty, "pretty", true, "Human readable log output")

	cmd.AddCommand(newMergeCmd(a))
	cmd.AddCommand(newInspectCmd(a))
	cmd.AddCommand(newThemeCmd(a))

	return cmd
}
