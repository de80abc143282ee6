package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/boardcore/altiumdrc/internal/config"
	"github.com/boardcore/altiumdrc/internal/importer"
	"github.com/boardcore/altiumdrc/internal/logging"
	"github.com/boardcore/altiumdrc/internal/store"
)

func newImportCmd() *cobra.Command {
	var companionPath string
	var storeResult bool

	cmd := &cobra.Command{
		Use:   "import <pcb-file>",
		Short: "Import an Altium PCB binary (optionally with a JSON companion) into G-IR/C-IR",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadRuntime()
			if err != nil {
				return err
			}

			var companion *importer.Companion
			if companionPath != "" {
				data, err := os.ReadFile(companionPath)
				if err != nil {
					return fmt.Errorf("reading companion file: %w", err)
				}
				companion, err = importer.ParseCompanionFile(data, json.Unmarshal)
				if err != nil {
					return fmt.Errorf("parsing companion file: %w", err)
				}
			}

			imp := importer.New(log, cfg.Importer.UseDefaultRules)
			result, err := imp.Import(args[0], companion)
			if err != nil {
				return err
			}

			if storeResult {
				st, err := store.Open(cfg.Store.Dir, log)
				if err != nil {
					return fmt.Errorf("opening store: %w", err)
				}
				geoID, err := st.Create(store.KindGeometry, "cli-import", result.Geometry,
					store.WithSourceEngine("altium-drc-importer"), store.WithTags(args[0]))
				if err != nil {
					return fmt.Errorf("storing geometry: %w", err)
				}
				conID, err := st.Create(store.KindConstraint, "cli-import", result.Constraint,
					store.WithSourceEngine("altium-drc-importer"),
					store.WithRelations(store.Relation{Role: "geometry", TargetID: geoID}))
				if err != nil {
					return fmt.Errorf("storing constraints: %w", err)
				}
				// The decode quality signal (internal/drc's automatic
				// width-band check re-derives this from the G-IR track
				// population at DRC time) is still worth surfacing here
				// rather than silently dropping it on the floor.
				for stream, q := range result.Quality {
					if q.Unreliable() {
						log.Infof("decode quality for %s: %.0f%% sane (%d/%d records) — low confidence", stream, q.Score()*100, q.SaneRecords, q.TotalRecords)
					}
				}
				fmt.Printf("geometry artifact: %s\nconstraint artifact: %s\n", geoID, conID)
				return nil
			}

			return printJSON(result)
		},
	}
	cmd.Flags().StringVar(&companionPath, "companion", "", "path to a JSON companion file")
	cmd.Flags().BoolVar(&storeResult, "store", false, "write the imported G-IR/C-IR into the artifact store instead of printing them")
	return cmd
}

func loadRuntime() (*config.Config, *logging.Helper, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	log := logging.NewHelper(logging.ParseLevel(cfg.Log.Level))
	return cfg, log, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
