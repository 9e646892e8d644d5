package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/goliatone/go-resolver/pkg/mappingfile"
	"github.com/spf13/cobra"
)

func newWatchCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "watch <identifier>...",
		Short: "Re-resolve identifiers whenever the mapping document changes",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.MappingFile == "" {
				return fmt.Errorf("--mapping-file is required")
			}
			s, err := opts.open(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer s.close()
			out := cmd.OutOrStdout()

			report := func() error {
				for _, id := range args {
					resolved, err := s.engine.Resolve(s.ctx, id)
					if err != nil {
						return err
					}
					printResult(out, resolveResult{Identifier: id, Resolved: resolved})
				}
				return nil
			}

			changes := make(chan string, 1)
			watcher, err := mappingfile.NewWatcher(func(path string) {
				select {
				case changes <- path:
				default:
				}
			})
			if err != nil {
				return err
			}
			defer watcher.Close()
			if err := watcher.Add(s.active().MappingFilePath()); err != nil {
				return err
			}

			if err := report(); err != nil {
				return err
			}
			for {
				select {
				case <-s.ctx.Done():
					return nil
				case err := <-watcher.Errors:
					fmt.Fprintln(cmd.ErrOrStderr(), color.YellowString("watch:"), err)
				case path := <-changes:
					fmt.Fprintln(out, color.CyanString("changed:"), path)
					rc := s.active()
					if err := rc.ClearAndReinitialize(s.ctx); err != nil {
						return err
					}
					if err := s.engine.RefreshContext(s.ctx, rc); err != nil {
						return err
					}
					if err := report(); err != nil {
						return err
					}
				}
			}
		},
	}
}
