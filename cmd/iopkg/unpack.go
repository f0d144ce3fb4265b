package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/meigma/iopkg"
	"github.com/meigma/iopkg/internal/extract"
)

func newUnpackCmd(a *app) *cobra.Command {
	var (
		dir       string
		overwrite bool
	)

	cmd := &cobra.Command{
		Use:   "unpack <file>",
		Short: "Extract every file of a package",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := iopkg.Open(args[0], a.settings.options()...)
			if err != nil {
				return err
			}
			defer r.Close()

			sink := extract.NewFileSink(dir, extract.WithOverwrite(overwrite))
			if err := r.Extract(cmd.Context(), sink); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: extracted to %s\n", args[0], dir)
			return nil
		},
	}
	cmd.Flags().StringVarP(&dir, "directory", "C", ".", "directory to extract into")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "replace files that already exist")
	return cmd
}
