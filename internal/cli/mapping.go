package cli

import (
	"fmt"
	"sort"

	"github.com/fatih/color"
	"github.com/goliatone/go-resolver/pkg/mappingfile"
	"github.com/spf13/cobra"
)

func newMappingCommand(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mapping",
		Short: "Inspect and edit the mapping document given by --mapping-file",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if opts.MappingFile == "" {
				return fmt.Errorf("--mapping-file is required")
			}
			return nil
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Print the mapping pairs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := opts.open(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer s.close()

			pairs := s.active().MappingPairs()
			keys := make([]string, 0, len(pairs))
			for key := range pairs {
				keys = append(keys, key)
			}
			sort.Strings(keys)
			for _, key := range keys {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s\n", key, color.CyanString("->"), pairs[key])
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set <source> <target>",
		Short: "Pin source to target",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return mappingfile.NewWriter().Update(opts.MappingFile, func(pairs map[string]string) error {
				pairs[args[0]] = args[1]
				return nil
			})
		},
	})

	var byValue bool
	remove := &cobra.Command{
		Use:   "remove <source>",
		Short: "Drop the pin for source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return mappingfile.NewWriter().Update(opts.MappingFile, func(pairs map[string]string) error {
				for key, value := range pairs {
					if (!byValue && key == args[0]) || (byValue && value == args[0]) {
						delete(pairs, key)
					}
				}
				return nil
			})
		},
	}
	remove.Flags().BoolVar(&byValue, "by-value", false, "remove every pair targeting the argument")
	cmd.AddCommand(remove)
	return cmd
}
