// Command altiumdrc is the CLI front-end over the core: importing Altium
// PCB binaries into the artifact store, running the DRC engine against a
// stored board, and driving the auto-fix engine. Modeled on
// saferwall-pe/cmd/pedumper.go's cobra tree (root command + verb
// subcommands, persistent flags for global knobs).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:   "altiumdrc",
		Short: "Altium PCB import, storage, and design-rule checking",
		Long:  "altiumdrc imports Altium PCB binaries into a versioned artifact store, runs geometric design-rule checks against them, and proposes auto-fixes.",
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to altiumdrc.toml (default: ALTIUMDRC_CONFIG env or ./altiumdrc.toml)")

	rootCmd.AddCommand(newImportCmd())
	rootCmd.AddCommand(newStoreCmd())
	rootCmd.AddCommand(newDRCCmd())
	rootCmd.AddCommand(newFixCmd())
	rootCmd.AddCommand(newClientCmd())
	rootCmd.AddCommand(newVersionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("altiumdrc 0.1.0")
		},
	}
}
