package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/boardcore/altiumdrc/internal/autofix"
	"github.com/boardcore/altiumdrc/internal/cir"
	"github.com/boardcore/altiumdrc/internal/drc"
	"github.com/boardcore/altiumdrc/internal/gir"
	"github.com/boardcore/altiumdrc/internal/patch"
	"github.com/boardcore/altiumdrc/internal/store"
)

func newFixCmd() *cobra.Command {
	var explanation string
	var storePatch bool

	cmd := &cobra.Command{
		Use:   "fix <geometry-artifact-id> <constraint-artifact-id> <violations-artifact-id>",
		Short: "Run the auto-fix engine against a stored violations report",
		Args:  cobra.ExactArgs(3),
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
			geoVersion, err := st.Read(args[0], &geo)
			if err != nil {
				return fmt.Errorf("reading geometry artifact: %w", err)
			}
			var con cir.ConstraintIR
			if _, err := st.Read(args[1], &con); err != nil {
				return fmt.Errorf("reading constraint artifact: %w", err)
			}
			var report drc.Report
			if _, err := st.Read(args[2], &report); err != nil {
				return fmt.Errorf("reading violations artifact: %w", err)
			}

			result := autofix.New(log).Fix(&geo, report.Violations, &con)
			fmt.Printf("fixed %d, failed %d\n", result.TotalFixed, result.TotalFailed)

			p := patch.Patch{
				ArtifactID:  args[0],
				FromVersion: geoVersion,
				Explanation: explanation,
				Operations:  result.Operations,
			}

			if storePatch {
				env, err := p.ToEnvelope()
				if err != nil {
					return fmt.Errorf("encoding patch: %w", err)
				}
				id, err := st.Create(store.KindPatch, "cli-fix", env,
					store.WithSourceEngine("altium-drc-autofix"),
					store.WithRelations(store.Relation{Role: "patched-geometry", TargetID: args[0]}))
				if err != nil {
					return fmt.Errorf("storing patch: %w", err)
				}
				fmt.Printf("patch artifact: %s\n", id)
				return nil
			}
			return printJSON(result)
		},
	}
	cmd.Flags().StringVar(&explanation, "explanation", "", "human-readable summary attached to the resulting patch")
	cmd.Flags().BoolVar(&storePatch, "store", false, "write the resulting patch into the artifact store instead of printing the fix result")
	return cmd
}
