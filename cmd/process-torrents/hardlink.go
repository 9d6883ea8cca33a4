package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mrmachine/transmission-process-torrents/pkg/filesystem"
	"github.com/mrmachine/transmission-process-torrents/pkg/hardlink"
)

func newHardlinkCmd(root *rootOptions) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:     "hardlink SRC DST",
		Short:   MsgHardlinkShort,
		Long:    MsgHardlinkLong,
		Example: MsgHardlinkExample,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine := hardlink.New(filesystem.NewOS(), root.dryRun)
			res, err := engine.Merge(args[0], args[1], force)
			if err != nil {
				return err
			}
			if root.quiet {
				return nil
			}

			out := cmd.OutOrStdout()
			if _, err := fmt.Fprintf(out, MsgHardlinkFormat,
				res.Source, res.Destination,
				res.Linked, res.Replaced, res.AlreadyLinked,
				res.Collisions, res.DirsCreated, res.Skipped); err != nil {
				return err
			}
			if res.DryRun {
				_, err = fmt.Fprintln(out, MsgDryRunNotice)
			}
			return err
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, MsgFlagForce)
	return cmd
}
