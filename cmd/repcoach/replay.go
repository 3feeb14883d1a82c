package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ayusman/repcoach/internal/analysis"
	"github.com/ayusman/repcoach/internal/app"
	"github.com/ayusman/repcoach/internal/profile"
	"github.com/ayusman/repcoach/internal/source"
)

func exercisesCmd(g *globalFlags) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "exercises",
		Short: "List the exercises in the configured catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := g.load()
			if err != nil {
				return err
			}
			reg, err := catalogRegistry(cfg)
			if err != nil {
				return err
			}

			ids := cfg.Catalog.Exercises
			if len(ids) == 0 {
				ids = reg.IDs()
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				for _, id := range ids {
					p, _ := reg.Lookup(id)
					if err := enc.Encode(p); err != nil {
						return err
					}
				}
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tMUSCLE GROUP\tPATTERN\tPRIMARY JOINT")
			for _, id := range ids {
				p, _ := reg.Lookup(id)
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", p.ID, p.Name, p.MuscleGroup, p.Pattern, p.PrimaryJoint)
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print full profiles as JSON")
	return cmd
}

func replayCmd(g *globalFlags) *cobra.Command {
	var (
		exercise  string
		file      string
		estimator []string
		asJSON    bool
		verbose   bool
	)

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Analyze a JSON-lines file of keypoint frames",
		Long: `Replay reads one frame per line, {"keypoints": [...], "timestamp_ms": N},
and prints a summary of the analysis. Use --file - to read from stdin, or
--exec to run a pose estimator that prints frames in the same format:

  repcoach replay -e squat --exec python3 --exec estimate.py --exec clip.mp4

Exercises outside catalog.exercises fall back to the neutral profile, as they
do in serve. Profiles stored through the server API are not consulted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := g.load()
			if err != nil {
				return err
			}
			reg, err := catalogRegistry(cfg)
			if err != nil {
				return err
			}

			p, known := reg.Lookup(exercise)
			if known && !offered(cfg, exercise) {
				p, known = profile.Neutral(exercise), false
			}
			if !known {
				log.Warn("unknown exercise, using neutral profile", "exercise", exercise)
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			var src source.Source
			switch {
			case len(estimator) > 0:
				if src, err = source.StartProcess(ctx, estimator[0], estimator[1:]...); err != nil {
					return err
				}
			case file == "-":
				src = source.NewJSONL(io.NopCloser(cmd.InOrStdin()))
			case file != "":
				if src, err = source.OpenJSONL(file); err != nil {
					return err
				}
			default:
				return fmt.Errorf("one of --file or --exec is required")
			}

			out := cmd.OutOrStdout()
			var onResult func(analysis.Result)
			if verbose {
				enc := json.NewEncoder(out)
				onResult = func(r analysis.Result) { enc.Encode(r) }
			}

			summary, err := app.New(app.Config{
				Source:   src,
				Session:  analysis.NewSession(p),
				Logger:   log,
				OnResult: onResult,
			}).Run(ctx)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(summary)
			}
			printSummary(out, summary)
			return nil
		},
	}

	cmd.Flags().StringVarP(&exercise, "exercise", "e", "", "Exercise ID")
	cmd.Flags().StringVarP(&file, "file", "f", "", "Frames file (JSON lines), or - for stdin")
	cmd.Flags().StringArrayVar(&estimator, "exec", nil, "Pose estimator command and arguments, repeated")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the summary as JSON")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Print every frame result as JSON")
	cmd.MarkFlagRequired("exercise")
	cmd.MarkFlagsMutuallyExclusive("file", "exec")
	return cmd
}

func printSummary(w io.Writer, s app.Summary) {
	fmt.Fprintf(w, "exercise:   %s\n", s.Exercise)
	fmt.Fprintf(w, "frames:     %d (%d rejected)\n", s.Frames, s.Rejected)
	fmt.Fprintf(w, "duration:   %.2fs\n", s.Duration)
	fmt.Fprintf(w, "reps:       %d\n", s.Reps)
	fmt.Fprintf(w, "engagement: %.2f\n", s.MeanEngagement)

	if len(s.Violations) == 0 {
		return
	}
	keys := make([]string, 0, len(s.Violations))
	for k := range s.Violations {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Fprintln(w, "violations:")
	for _, k := range keys {
		fmt.Fprintf(w, "  %-32s %d frames\n", k, s.Violations[k])
	}
}
