package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/boardcore/altiumdrc/internal/store"
)

func newStoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "store",
		Short: "Inspect the versioned artifact store",
	}
	cmd.AddCommand(newStoreListCmd())
	cmd.AddCommand(newStoreHistoryCmd())
	cmd.AddCommand(newStoreShowCmd())
	cmd.AddCommand(newStoreRelatedCmd())
	return cmd
}

func openStore() (*store.Store, error) {
	cfg, log, err := loadRuntime()
	if err != nil {
		return nil, err
	}
	return store.Open(cfg.Store.Dir, log)
}

func newStoreListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every artifact ID and its current version",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore()
			if err != nil {
				return err
			}
			summaries, err := st.List()
			if err != nil {
				return err
			}
			return printJSON(summaries)
		},
	}
}

func newStoreHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history <artifact-id>",
		Short: "Show every stored version of an artifact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore()
			if err != nil {
				return err
			}
			history, err := st.History(args[0])
			if err != nil {
				return err
			}
			return printJSON(history)
		},
	}
}

func newStoreRelatedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "related <artifact-id>",
		Short: "List every artifact transitively reachable via relations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore()
			if err != nil {
				return err
			}
			related, err := st.Related(args[0])
			if err != nil {
				return err
			}
			return printJSON(related)
		},
	}
}

func newStoreShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <artifact-id>",
		Short: "Print the current version of a stored artifact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore()
			if err != nil {
				return err
			}
			var payload map[string]any
			version, err := st.Read(args[0], &payload)
			if err != nil {
				return err
			}
			fmt.Printf("# version %d\n", version)
			return printJSON(payload)
		},
	}
}
