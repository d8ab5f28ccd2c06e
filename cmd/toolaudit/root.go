package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	service "github.com/okian/toolaudit/internal/app"
	"github.com/okian/toolaudit/internal/adapters/repository"
	"github.com/okian/toolaudit/internal/config"
	"github.com/okian/toolaudit/internal/testevents"
	"github.com/okian/toolaudit/pkg/logger"
)

// overrides are flag values applied on top of the loaded configuration.
type overrides struct {
	configPath string
	resultDir  string
	interval   time.Duration
	logLevel   string
	sqlitePath string
	noCrossref bool
}

func newRootCmd() *cobra.Command {
	var o overrides
	cmd := &cobra.Command{
		Use:   "toolaudit <event-feed-json> <snapshot-dir-or-zip>",
		Short: "Audit the development tools contest teams used",
		Long: "toolaudit reads a contest event feed and per-team process snapshots, " +
			"finds the dominant tool of every team in each time bucket and " +
			"cross-references submissions against it.",
		Args:         exactArgs(2),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, &o)
			if err != nil {
				return err
			}
			svc, err := service.New(cfg, service.WithLogger(logger.Named("service")))
			if err != nil {
				return err
			}
			res, err := svc.Run(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "run %s\n", res.RunID)
			fmt.Fprintf(out, "teams: %d, snapshot units: %d, buckets: %d\n",
				len(res.Teams), res.Units, len(res.Timeline.Buckets()))
			if res.CrossRef != nil {
				fmt.Fprintf(out, "submissions attributed: %d, excluded: %d, unexpected tools: %d\n",
					len(res.CrossRef.Attributions), res.CrossRef.Excluded, len(res.CrossRef.Mismatches))
			}
			for _, f := range res.Files {
				fmt.Fprintln(out, f)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&o.configPath, "config", "", "YAML config file (default $TOOLAUDIT_CONFIG)")
	f.StringVar(&o.resultDir, "result-dir", "", "directory receiving the reports")
	f.DurationVar(&o.interval, "interval", 0, "time bucket width, whole seconds")
	f.StringVar(&o.logLevel, "log-level", "", "debug, info, warn or error")
	f.StringVar(&o.sqlitePath, "sqlite", "", "also store the run in this SQLite database")
	f.BoolVar(&o.noCrossref, "no-crossref", false, "skip the submission cross-reference")

	cmd.AddCommand(newRunsCmd(), newSampleCmd(), newServeCmd())
	return cmd
}

// exactArgs is cobra.ExactArgs that also prints the usage text. Usage is
// otherwise silenced so that failed runs only print their error.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			fmt.Fprint(cmd.ErrOrStderr(), cmd.UsageString())
			return err
		}
		return nil
	}
}

// loadConfig layers the flags that were set over config.Load.
func loadConfig(cmd *cobra.Command, o *overrides) (*config.Config, error) {
	cfg, err := config.Load(cmd.Context(), o.configPath)
	if err != nil {
		return nil, err
	}
	f := cmd.Flags()
	if f.Changed("result-dir") {
		cfg.ResultDir = o.resultDir
	}
	if f.Changed("interval") {
		cfg.IntervalSeconds = int(o.interval / time.Second)
	}
	if f.Changed("log-level") {
		cfg.LogLevel = o.logLevel
	}
	if f.Changed("sqlite") {
		cfg.SQLitePath = o.sqlitePath
	}
	if o.noCrossref {
		cfg.CrossrefEnabled = false
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newRunsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "runs <sqlite-db>",
		Short: "List audit runs stored in a SQLite database",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := repository.Open(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer st.Close()

			runs, err := st.Runs(cmd.Context())
			if err != nil {
				return err
			}
			t := table.New().
				Border(lipgloss.NormalBorder()).
				Headers("RUN", "STARTED", "INTERVAL", "TEAMS", "SUBMISSIONS", "UNEXPECTED")
			for _, r := range runs {
				t.Row(r.ID, r.StartedAt.Format(time.RFC3339), r.Interval.String(),
					strconv.Itoa(r.Teams), strconv.Itoa(r.Submissions), strconv.Itoa(r.Mismatches))
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), t.String())
			return err
		},
	}
}

func newSampleCmd() *cobra.Command {
	var c testevents.Config
	cmd := &cobra.Command{
		Use:   "sample <dir>",
		Short: "Generate a synthetic contest: an event feed and snapshot dumps",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c.Dir = args[0]
			_, stats, err := testevents.Run(cmd.Context(), &c, nil)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "teams: %d, units: %d, submissions: %d, planned unexpected tools: %d\n",
				stats.Teams, stats.Units, stats.Submissions, stats.Mismatches)
			fmt.Fprintf(out, "toolaudit %s %s\n", c.FeedPath(), c.SnapshotPath())
			return nil
		},
	}

	def := testevents.Default("")
	f := cmd.Flags()
	f.IntVar(&c.Teams, "teams", def.Teams, "number of teams")
	f.IntVar(&c.Workstations, "workstations", def.Workstations, "snapshot units per team")
	f.DurationVar(&c.Duration, "duration", def.Duration, "contest length")
	f.DurationVar(&c.Interval, "interval", def.Interval, "bucket width the tool plan is drawn for")
	f.DurationVar(&c.Sample, "sample", def.Sample, "snapshot sampling period")
	f.IntVar(&c.Submissions, "submissions", def.Submissions, "submissions per team")
	f.Uint64Var(&c.Seed, "seed", def.Seed, "generator seed")
	c.Start = def.Start
	return cmd
}
