package main

import (
	"github.com/spf13/cobra"

	"github.com/meigma/iopkg"
)

// app carries state shared by subcommands.
type app struct {
	configFile string
	settings   *settings
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "iopkg",
		Short: "Build and inspect IOPKG packages",
		Long: `iopkg bundles a directory tree into a single package file.

Each file is compressed as one LZ4 block and checksummed with djb2. The
package starts with a JSON table of contents, so readers can locate any
file without scanning the payload.

Examples:
  iopkg pack ./data -o base.iopkg
  iopkg list base.iopkg
  iopkg verify base.iopkg
  iopkg unpack base.iopkg -C ./out
  iopkg stamp my-salt --dir ./build`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			s, err := loadSettings(cmd.Flags(), a.configFile, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			a.settings = s
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "config file (yaml, toml or json)")
	flags.String(keyLogLevel, "info", "log level: debug, info, warn or error")
	flags.Int(keyWorkers, 1, "files compressed concurrently")
	flags.Uint64(keyMaxFileSize, iopkg.DefaultMaxFileSize, "largest uncompressed file size in bytes")

	root.AddCommand(
		newPackCmd(a),
		newListCmd(a),
		newVerifyCmd(a),
		newUnpackCmd(a),
		newStampCmd(a),
	)
	return root
}
