package testevents_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	service "github.com/okian/toolaudit/internal/app"
	"github.com/okian/toolaudit/internal/config"
	"github.com/okian/toolaudit/internal/domain/tool"
	"github.com/okian/toolaudit/internal/testevents"
	"github.com/okian/toolaudit/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func audit(cfg *testevents.Config, interval time.Duration) *service.Result {
	c := config.New(context.Background())
	c.ResultDir = filepath.Join(cfg.Dir, "result")
	c.Timezone = "UTC"
	c.IntervalSeconds = int(interval / time.Second)
	c.ChartEnabled = false
	svc, err := service.New(c)
	So(err, ShouldBeNil)
	res, err := svc.Run(context.Background(), cfg.FeedPath(), cfg.SnapshotPath())
	So(err, ShouldBeNil)
	return res
}

func TestGeneratedContest(t *testing.T) {
	Convey("Given a generated contest", t, func() {
		cfg := testevents.Default(t.TempDir())
		plan, stats, err := testevents.Run(context.Background(), cfg, nil)
		So(err, ShouldBeNil)

		Convey("Then every input file should exist", func() {
			So(stats.Units, ShouldEqual, cfg.Teams)
			So(stats.Submissions, ShouldEqual, cfg.Teams*cfg.Submissions)
			So(len(stats.Files), ShouldEqual, cfg.Teams+1)
			for _, f := range stats.Files {
				_, err := os.Stat(f)
				So(err, ShouldBeNil)
			}
		})

		Convey("When it is audited with the planned interval", func() {
			res := audit(cfg, cfg.Interval)

			Convey("Then the audit should match the plan", func() {
				So(testevents.Verify(plan, res.Timeline, res.CrossRef), ShouldBeNil)
				So(len(res.CrossRef.Mismatches), ShouldEqual, stats.Mismatches)
				So(res.Feed.Stats.Accepted, ShouldEqual, stats.Accepted)
				So(res.Unidentified, ShouldResemble, []string{"/usr/bin/bash --login"})
			})
		})

		Convey("When the plan is compared against a different contest", func() {
			other := testevents.Default(t.TempDir())
			other.Seed = 2
			_, _, err := testevents.Run(context.Background(), other, nil)
			So(err, ShouldBeNil)
			res := audit(other, other.Interval)

			Convey("Then verification should report discrepancies", func() {
				err := testevents.Verify(plan, res.Timeline, res.CrossRef)
				So(errors.Is(err, testevents.ErrVerification), ShouldBeTrue)
			})
		})
	})

	Convey("Given a contest with several workstations per team", t, func() {
		cfg := testevents.Default(t.TempDir())
		cfg.Teams = 4
		cfg.Workstations = 3
		plan, stats, err := testevents.Run(context.Background(), cfg, nil)
		So(err, ShouldBeNil)

		Convey("Then the workstations should be summed into their team", func() {
			So(stats.Units, ShouldEqual, 12)
			res := audit(cfg, cfg.Interval)
			So(res.Teams, ShouldResemble, []string{"1", "2", "3", "4"})
			So(testevents.Verify(plan, res.Timeline, res.CrossRef), ShouldBeNil)
		})
	})

	Convey("Given a single team contest where idle buckets are unobserved", t, func() {
		cfg := testevents.Default(t.TempDir())
		cfg.Teams = 1
		cfg.Submissions = 40
		plan, stats, err := testevents.Run(context.Background(), cfg, nil)
		So(err, ShouldBeNil)

		Convey("Then submissions in idle buckets should be planned as excluded", func() {
			for _, s := range plan.Submissions {
				i := (s.Time/1000 - plan.Start) / plan.Width
				So(s.Excluded, ShouldEqual, plan.Dominant["1"][i] == "")
				if s.Excluded {
					So(s.Mismatch, ShouldBeFalse)
				}
			}
		})

		Convey("Then the audit should leave exactly those submissions out", func() {
			res := audit(cfg, cfg.Interval)
			So(testevents.Verify(plan, res.Timeline, res.CrossRef), ShouldBeNil)
			So(res.CrossRef.Excluded, ShouldEqual, stats.Excluded)
			So(len(res.CrossRef.Mismatches), ShouldEqual, stats.Mismatches)
		})
	})
}

func TestNewPlan(t *testing.T) {
	Convey("Given a configuration", t, func() {
		cfg := testevents.Default("out")

		Convey("When two plans are drawn from the same seed", func() {
			a, err := testevents.NewPlan(cfg, tool.Default())
			So(err, ShouldBeNil)
			b, err := testevents.NewPlan(cfg, tool.Default())
			So(err, ShouldBeNil)

			Convey("Then they should be identical", func() {
				So(a, ShouldResemble, b)
			})

			Convey("Then buckets and samples should be aligned to the interval", func() {
				So(a.Start%a.Width, ShouldEqual, 0)
				So(a.Buckets, ShouldEqual, 12)
				So(len(a.Samples), ShouldEqual, 120)
				So(a.Bucket(1), ShouldEqual, a.Start/a.Width+1)
			})

			Convey("Then every submission should fall inside the contest", func() {
				for _, s := range a.Submissions {
					So(s.Time/1000, ShouldBeGreaterThanOrEqualTo, a.Start)
					So(s.Time/1000, ShouldBeLessThan, a.Start+int64(a.Buckets)*a.Width)
				}
			})
		})

		Convey("When the configuration is out of range", func() {
			cases := []struct {
				name   string
				mutate func(*testevents.Config)
			}{
				{"no teams", func(c *testevents.Config) { c.Teams = 0 }},
				{"too many workstations", func(c *testevents.Config) { c.Workstations = 5 }},
				{"sub-second interval", func(c *testevents.Config) { c.Interval = time.Millisecond }},
				{"sample longer than interval", func(c *testevents.Config) { c.Sample = time.Hour }},
				{"no duration", func(c *testevents.Config) { c.Duration = 0 }},
				{"no directory", func(c *testevents.Config) { c.Dir = "" }},
			}
			for _, tc := range cases {
				Convey("Then "+tc.name+" should be rejected", func() {
					c := testevents.Default("out")
					tc.mutate(c)
					_, err := testevents.NewPlan(c, tool.Default())
					So(errors.Is(err, testevents.ErrInvalidConfig), ShouldBeTrue)
				})
			}
		})
	})
}
