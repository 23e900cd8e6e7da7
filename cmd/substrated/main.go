package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/substrate-kb/substrate/internal/cli"
	"github.com/substrate-kb/substrate/internal/cli/admin"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "substrated",
		Short: "Substrate daemon and CLI",
		Long:  "Substrate daemon for serving semantic retrieval with decay-aware ranking, plus maintenance commands",
	}

	cli.AddHelpJSONFlag(rootCmd)
	rootCmd.AddCommand(admin.ServeCmd())
	rootCmd.AddCommand(admin.DecayCmd())
	rootCmd.AddCommand(admin.SnapshotCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
