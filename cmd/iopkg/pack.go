package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/meigma/iopkg"
)

func newPackCmd(a *app) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "pack <source-dir>",
		Short: "Package a directory tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := iopkg.Pack(cmd.Context(), args[0], output, a.settings.options()...)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d files, %d bytes, %s\n",
				output, res.TOC.Len(), res.Size, res.Digest)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "package file to write")
	_ = cmd.MarkFlagRequired("output") //nolint:errcheck // flag defined above
	return cmd
}
