package cmd

import (
	"fmt"
	"strconv"

	"github.com/AnyUserName/sizefit/internal/config"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newPresetsCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "presets",
		Short:       "List the built-in search presets",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := cmd.OutOrStdout()
			var rows [][]string
			for _, name := range config.PresetNames() {
				p, err := config.LookupPreset(name)
				if err != nil {
					return err
				}
				rows = append(rows, []string{
					p.Name,
					strconv.Itoa(p.Params.InitialQuality),
					strconv.Itoa(p.Params.MinQuality),
					fmt.Sprintf("%d/%d", p.Params.CoarseStep, p.Params.FineStep),
					humanize.IBytes(uint64(p.Params.ToleranceBytes)),
					strconv.Itoa(p.Params.MaxProbes()),
					p.Description,
				})
			}
			fmt.Fprintln(w, renderTable(w,
				[]string{"Preset", "Start", "Floor", "Steps", "Band", "Max encodes", "Notes"},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignLeft},
			))
			return nil
		},
	}
}
