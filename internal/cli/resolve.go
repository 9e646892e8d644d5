package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"
	resolver "github.com/goliatone/go-resolver"
	"github.com/spf13/cobra"
)

type resolveResult struct {
	Identifier string          `json:"identifier"`
	Resolved   string          `json:"resolved"`
	Trace      *resolver.Trace `json:"trace,omitempty"`
}

func newResolveCommand(opts *Options) *cobra.Command {
	var withTrace, asJSON bool
	cmd := &cobra.Command{
		Use:   "resolve <identifier>...",
		Short: "Resolve identifiers to locations",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.open(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer s.close()

			ctx, scope := s.engine.BeginScopedCache(s.ctx)
			defer scope.Close()

			results := make([]resolveResult, 0, len(args))
			for _, id := range args {
				result := resolveResult{Identifier: id}
				if withTrace {
					resolved, trace, err := s.engine.ResolveWithTrace(ctx, id)
					if err != nil {
						return err
					}
					result.Resolved, result.Trace = resolved, &trace
				} else if result.Resolved, err = s.engine.Resolve(ctx, id); err != nil {
					return err
				}
				results = append(results, result)
			}
			if err := s.capture(); err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(results)
			}
			for _, result := range results {
				printResult(cmd.OutOrStdout(), result)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&withTrace, "trace", "t", false, "print every lookup and probe")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print results as JSON")
	return cmd
}

func printResult(out io.Writer, result resolveResult) {
	if result.Resolved == "" {
		fmt.Fprintf(out, "%s %s\n", result.Identifier, color.RedString("(not found)"))
	} else {
		fmt.Fprintf(out, "%s %s\n", result.Identifier, color.GreenString(result.Resolved))
	}
	if result.Trace == nil {
		return
	}
	for _, step := range result.Trace.Steps {
		mark := color.YellowString("miss")
		if step.Found {
			mark = color.GreenString("hit ")
		}
		fmt.Fprintf(out, "  %s %-20s %s", mark, step.Stage, step.Candidate)
		if step.Location != "" && step.Location != step.Candidate {
			fmt.Fprintf(out, " -> %s", step.Location)
		}
		fmt.Fprintln(out)
	}
}
