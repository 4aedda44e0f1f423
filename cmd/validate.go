package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/AnyUserName/sizefit/internal/manifest"
	"github.com/spf13/cobra"
)

func newValidateCommand() *cobra.Command {
	var verifyHash bool
	cmd := &cobra.Command{
		Use:         "validate <manifest_or_out_dir>",
		Short:       "Check a sizefit manifest against the files it describes",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := manifestPath(args[0])
			if err != nil {
				return err
			}
			m, err := manifest.ReadJSON(path)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			problems := manifest.Validate(m, filepath.Dir(path), verifyHash)
			if len(problems) == 0 {
				fmt.Fprintln(w, "  ✓ Manifest is valid")
				fmt.Fprintf(w, "  ✓ %d files, %d within budget, all outputs present\n",
					m.Stats.TotalFiles, m.Stats.WithinBudget)
				return nil
			}

			fmt.Fprintf(w, "  ✗ Manifest has %d error(s):\n", len(problems))
			for _, p := range problems {
				fmt.Fprintf(w, "    • %s\n", p)
			}
			return fmt.Errorf("validation failed with %d errors", len(problems))
		},
	}
	cmd.Flags().BoolVar(&verifyHash, "verify-hash", false, "rehash every output and compare with the manifest")
	return cmd
}
