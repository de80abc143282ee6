package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/boardcore/altiumdrc/internal/cir"
	"github.com/boardcore/altiumdrc/internal/drc"
	"github.com/boardcore/altiumdrc/internal/gir"
	"github.com/boardcore/altiumdrc/internal/store"
)

func newDRCCmd() *cobra.Command {
	var forceUnreliableWidth bool
	var storeReport bool

	cmd := &cobra.Command{
		Use:   "drc <geometry-artifact-id> <constraint-artifact-id>",
		Short: "Run the design-rule check engine against stored G-IR/C-IR",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, log, err := loadRuntime()
			if err != nil {
				return err
			}
			st, err := openStore()
			if err != nil {
				return err
			}

			var geo gir.GeometryIR
			if _, err := st.Read(args[0], &geo); err != nil {
				return fmt.Errorf("reading geometry artifact: %w", err)
			}
			var con cir.ConstraintIR
			if _, err := st.Read(args[1], &con); err != nil {
				return fmt.Errorf("reading constraint artifact: %w", err)
			}

			// Width unreliability is normally derived automatically by
			// Run itself from the track population against the active
			// width rule's band (spec §4.6); --force-unreliable-width
			// only exists to override that when an operator has other
			// reason to distrust the decode.
			report := drc.New(log).Run(cmd.Context(), &geo, &con, drc.Options{ForceUnreliableWidth: forceUnreliableWidth})

			if storeReport {
				id, err := st.Create(store.KindViolations, "cli-drc", report,
					store.WithSourceEngine("altium-drc-engine"),
					store.WithRelations(
						store.Relation{Role: "geometry", TargetID: args[0]},
						store.Relation{Role: "constraint", TargetID: args[1]},
					))
				if err != nil {
					return fmt.Errorf("storing report: %w", err)
				}
				fmt.Printf("violations artifact: %s (%d violations)\n", id, len(report.Violations))
				return nil
			}
			return printJSON(report)
		},
	}
	cmd.Flags().BoolVar(&forceUnreliableWidth, "force-unreliable-width", false, "force width rules to skip even if the automatic band check thinks tracks are reliable")
	cmd.Flags().BoolVar(&storeReport, "store", false, "write the violations report into the artifact store instead of printing it")
	return cmd
}
