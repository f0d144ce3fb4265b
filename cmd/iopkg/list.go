package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/opencontainers/go-digest"
	"github.com/spf13/cobra"

	"github.com/meigma/iopkg"
)

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list <file>",
		Short: "List the entries of a package",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := iopkg.Open(args[0], a.settings.options()...)
			if err != nil {
				return err
			}
			defer r.Close()

			dgst, err := fileDigest(args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			toc := r.TOC()
			fmt.Fprintf(out, "%s  %d files  %d payload bytes\n\n", dgst, toc.Len(), r.PayloadSize())

			w := tabwriter.NewWriter(out, 2, 0, 3, ' ', 0)
			fmt.Fprintln(w, "PATH\tSIZE\tCOMPRESSED\tOFFSET\tCHECKSUM")
			for path, e := range toc.All() {
				fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\n",
					path, e.SizeUncompressed, e.SizeCompressed, e.ByteOffset, e.Checksum)
			}
			return w.Flush()
		},
	}
}

// fileDigest returns the canonical content digest of the file at path.
func fileDigest(path string) (digest.Digest, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	dgst, err := digest.Canonical.FromReader(f)
	if err != nil {
		return "", fmt.Errorf("digest %s: %w", path, err)
	}
	return dgst, nil
}
