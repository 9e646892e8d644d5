package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newIdentifierCommand(opts *Options) *cobra.Command {
	var anchor string
	var forNew bool
	cmd := &cobra.Command{
		Use:   "identifier <asset path>",
		Short: "Build the identifier an asset path gets when referenced from an anchor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.open(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer s.close()

			var id string
			if forNew {
				id, err = s.engine.CreateIdentifierForNewAsset(args[0], anchor)
			} else {
				id, err = s.engine.CreateIdentifier(s.ctx, args[0], anchor)
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
	cmd.Flags().StringVarP(&anchor, "anchor", "a", "", "path of the document referencing the asset")
	cmd.Flags().BoolVar(&forNew, "new", false, "anchor unconditionally for an asset that does not exist yet")
	return cmd
}
