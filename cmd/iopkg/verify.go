package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/meigma/iopkg"
)

func newVerifyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <file>",
		Short: "Check every entry's checksum and size",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := iopkg.Open(args[0], a.settings.options()...)
			if err != nil {
				return err
			}
			defer r.Close()

			out := cmd.OutOrStdout()
			err = r.Verify(cmd.Context())
			if err == nil {
				fmt.Fprintf(out, "%s: ok, %d files\n", args[0], r.TOC().Len())
				return nil
			}
			if iopkg.KindOf(err) == iopkg.KindUnknown {
				return err
			}

			var bad int
			var layout bool
			for _, f := range unjoin(err) {
				fmt.Fprintln(out, f)
				var e *iopkg.Error
				if errors.As(f, &e) && e.Path != "" {
					bad++
				} else {
					layout = true
				}
			}
			msg := fmt.Sprintf("%s: %d of %d files failed verification", args[0], bad, r.TOC().Len())
			if layout {
				msg = fmt.Sprintf("%s: invalid table of contents layout, %d of %d files failed verification",
					args[0], bad, r.TOC().Len())
			}
			return &ExitError{Code: exitCode(err), Err: errors.New(msg)}
		},
	}
}

// unjoin splits an errors.Join result into its parts.
func unjoin(err error) []error {
	if _, ok := err.(*iopkg.Error); !ok {
		if joined, ok := err.(interface{ Unwrap() []error }); ok {
			return joined.Unwrap()
		}
	}
	return []error{err}
}
