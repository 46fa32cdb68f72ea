package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-sqlmap/pkg/di"
)

type runOptions struct {
	config string
	schema string
}

func newRunCmd(global *globalOptions) *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute the workload of a configuration file and print cache statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, flush, err := newLogger(global, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer flush()

			container, err := di.NewContainerFromFile(opts.config, di.WithLogger(logger))
			if err != nil {
				return err
			}
			defer container.Close()

			ctx := cmd.Context()
			if opts.schema != "" {
				if err := applySchema(ctx, container, opts.schema); err != nil {
					return err
				}
			}

			r := newRunner(container, logger)
			if err := r.run(ctx, container.Config().Workload); err != nil {
				return err
			}
			return report(ctx, cmd.OutOrStdout(), r.summary, container)
		},
	}
	cmd.Flags().StringVarP(&opts.config, "config", "c", "sqlmap.yaml", "configuration file")
	cmd.Flags().StringVar(&opts.schema, "schema", "", "SQL file applied before the workload runs")
	return cmd
}

// applySchema runs every semicolon separated statement of the file at path.
func applySchema(ctx context.Context, container *di.Container, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("schema: %w", err)
	}
	for _, stmt := range strings.Split(string(data), ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := container.DB().ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema: %q: %w", stmt, err)
		}
	}
	return nil
}

func report(ctx context.Context, out io.Writer, s summary, container *di.Container) error {
	fmt.Fprintf(out, "steps: %d  statements: %d  rows: %d  affected: %d\n\n", s.steps, s.statements, s.rows, s.affected)

	stats, err := container.Stats(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CACHE\tREQUESTS\tHITS\tRATIO\tSIZE")
	for _, st := range stats {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%.2f\t%d\n", st.ID, st.Requests, st.Hits, st.HitRatio, st.Size)
	}
	return tw.Flush()
}
