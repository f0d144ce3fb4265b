package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/meigma/iopkg/internal/stamp"
)

func newStampCmd(a *app) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "stamp <salt>",
		Short: "Write salted plugin checksums into plugins.json",
		Long: `stamp hashes the plugin libraries found under each platform
directory (windows/*.dll, linux/*.so) and writes <platform>/plugins.json
with a salted checksum for every plugin present.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			manifests, err := stamp.New(stamp.WithLogger(a.settings.logger)).Stamp(cmd.Context(), dir, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(manifests) == 0 {
				fmt.Fprintf(out, "no platform directories found in %s\n", dir)
				return nil
			}
			for _, m := range manifests {
				stamped := 0
				for _, e := range m.Entries {
					if e.Checksum != nil {
						stamped++
					}
				}
				fmt.Fprintf(out, "%s: %d of %d plugins stamped\n", m.Path, stamped, len(m.Entries))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", ".", "build directory holding the platform directories")
	return cmd
}
