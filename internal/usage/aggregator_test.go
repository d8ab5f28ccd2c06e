package usage_test

import (
	"testing"
	"time"

	"github.com/okian/toolaudit/internal/domain/model"
	"github.com/okian/toolaudit/internal/domain/tool"
	"github.com/okian/toolaudit/internal/usage"
	. "github.com/smartystreets/goconvey/convey"
)

func obs(t int64, team string, id model.ToolID, cpu float64) model.Observation {
	return model.Observation{Time: t, Unit: team, Team: team, Tool: id, CPU: cpu}
}

func TestAggregate(t *testing.T) {
	Convey("Given an aggregator with 600 second buckets", t, func() {
		a := usage.New()

		Convey("When two tools tie for a team", func() {
			tl := a.Aggregate([]model.Observation{
				obs(600, "1", tool.Vim, 2),
				obs(610, "1", tool.CLion, 2),
			}, nil)

			Convey("Then the tool registered earlier should be dominant", func() {
				got, ok := tl.Dominant(1, "1")
				So(ok, ShouldBeTrue)
				So(got, ShouldEqual, tool.CLion)
			})
		})

		Convey("When CPU is spread over several samples of a bucket", func() {
			tl := a.Aggregate([]model.Observation{
				obs(0, "1", tool.Vim, 3),
				obs(60, "1", tool.VSCode, 2),
				obs(120, "1", tool.VSCode, 2),
				obs(0, "2", tool.Nano, 0.01),
			}, nil)

			Convey("Then the summed CPU should decide", func() {
				got, _ := tl.Dominant(0, "1")
				So(got, ShouldEqual, tool.VSCode)
				got, _ = tl.Dominant(0, "2")
				So(got, ShouldEqual, tool.Nano)
				So(tl.Counts(0), ShouldResemble, map[model.ToolID]int{tool.VSCode: 1, tool.Nano: 1})
			})
		})

		Convey("When a team has no observations in a bucket", func() {
			tl := a.Aggregate([]model.Observation{
				obs(0, "1", tool.Vim, 1),
				obs(600, "2", tool.Vim, 1),
			}, nil)

			Convey("Then it should have no entry there", func() {
				_, ok := tl.Dominant(1, "1")
				So(ok, ShouldBeFalse)
				So(tl.Teams(1), ShouldResemble, map[string]model.ToolID{"2": tool.Vim})
			})
		})

		Convey("When an observation lies exactly on a bucket boundary", func() {
			tl := a.Aggregate([]model.Observation{
				obs(599, "1", tool.Vim, 1),
				obs(600, "1", tool.Emacs, 1),
			}, nil)

			Convey("Then it should belong to the next bucket", func() {
				first, _ := tl.Dominant(0, "1")
				second, _ := tl.Dominant(1, "1")
				So(first, ShouldEqual, tool.Vim)
				So(second, ShouldEqual, tool.Emacs)
				So(tl.BucketOf(600), ShouldEqual, 1)
				So(tl.BucketOfMillis(599999), ShouldEqual, 0)
			})
		})

		Convey("When observations arrive out of order", func() {
			tl := a.Aggregate([]model.Observation{
				obs(1300, "1", tool.Kate, 1),
				obs(10, "1", tool.Vim, 1),
				obs(20, "1", tool.Vim, 1),
				obs(15, "1", tool.Kate, 1.5),
			}, nil)

			Convey("Then each bucket should be resolved once with all its CPU", func() {
				got, _ := tl.Dominant(0, "1")
				So(got, ShouldEqual, tool.Vim)
				So(tl.Buckets(), ShouldResemble, []int64{0, 2})
			})
		})

		Convey("When the Unknown tool carries activity", func() {
			tl := a.Aggregate([]model.Observation{obs(0, "1", tool.Unknown, 4)}, nil)

			Convey("Then it should be a distinct dominant outcome", func() {
				got, ok := tl.Dominant(0, "1")
				So(ok, ShouldBeTrue)
				So(got, ShouldEqual, tool.Unknown)
			})
		})

		Convey("When observations name a tool outside the registry", func() {
			tl := a.Aggregate([]model.Observation{obs(0, "1", "Notepad", 4)}, []int64{0})

			Convey("Then they should be ignored and the bucket left unobserved", func() {
				_, ok := tl.Dominant(0, "1")
				So(ok, ShouldBeFalse)
				So(tl.Has(0), ShouldBeFalse)
			})
		})

		Convey("When sampled times extend past the observations", func() {
			tl := a.Aggregate([]model.Observation{obs(700, "1", tool.Vim, 1)}, []int64{0, 700, 2500})

			Convey("Then only buckets with observations should be observed", func() {
				first, last, ok := tl.Range()
				So(ok, ShouldBeTrue)
				So(first, ShouldEqual, 1)
				So(last, ShouldEqual, 1)
				So(tl.Buckets(), ShouldResemble, []int64{1})
				So(tl.Has(0), ShouldBeFalse)
				So(tl.Has(1), ShouldBeTrue)
				So(tl.Has(4), ShouldBeFalse)
			})

			Convey("Then the sampled range should span every sample", func() {
				first, last, ok := tl.Sampled()
				So(ok, ShouldBeTrue)
				So(first, ShouldEqual, 0)
				So(last, ShouldEqual, 2500)
			})
		})

		Convey("When observations leave a gap between buckets", func() {
			tl := a.Aggregate([]model.Observation{
				obs(0, "1", tool.Vim, 1),
				obs(1200, "1", tool.Vim, 1),
			}, []int64{0, 600, 1200})

			Convey("Then the gap bucket should not be observed", func() {
				So(tl.Has(0), ShouldBeTrue)
				So(tl.Has(1), ShouldBeFalse)
				So(tl.Has(2), ShouldBeTrue)
			})
		})

		Convey("When nothing was observed", func() {
			tl := a.Aggregate(nil, nil)

			Convey("Then the timeline should be empty", func() {
				_, _, ok := tl.Range()
				So(ok, ShouldBeFalse)
				So(tl.Buckets(), ShouldBeEmpty)
				So(tl.Has(0), ShouldBeFalse)
				_, _, sampled := tl.Sampled()
				So(sampled, ShouldBeFalse)
			})
		})
	})
}

func TestAggregateOptions(t *testing.T) {
	Convey("Given a five minute aggregator grouped by workstation", t, func() {
		a := usage.New(usage.WithWidth(5*time.Minute), usage.WithGroupByUnit(true))
		tl := a.Aggregate([]model.Observation{
			{Time: 300, Unit: "3-1", Team: "3", Tool: tool.Vim, CPU: 1},
			{Time: 300, Unit: "3-2", Team: "3", Tool: tool.Kate, CPU: 1},
		}, nil)

		Convey("Then buckets should be five minutes wide and keyed by unit", func() {
			So(tl.Width(), ShouldEqual, 5*time.Minute)
			So(tl.BucketStart(1).Unix(), ShouldEqual, 300)
			first, _ := tl.Dominant(1, "3-1")
			second, _ := tl.Dominant(1, "3-2")
			So(first, ShouldEqual, tool.Vim)
			So(second, ShouldEqual, tool.Kate)
		})
	})

	Convey("Given an aggregator grouped by team", t, func() {
		a := usage.New()
		tl := a.Aggregate([]model.Observation{
			{Time: 0, Unit: "3-1", Team: "3", Tool: tool.Vim, CPU: 1},
			{Time: 0, Unit: "3-2", Team: "3", Tool: tool.Kate, CPU: 0.5},
			{Time: 0, Unit: "3-3", Team: "3", Tool: tool.Kate, CPU: 0.75},
		}, nil)

		Convey("Then workstations should be summed into their team", func() {
			got, _ := tl.Dominant(0, "3")
			So(got, ShouldEqual, tool.Kate)
		})
	})

	Convey("Given a sub-second width", t, func() {
		a := usage.New(usage.WithWidth(time.Millisecond), usage.WithRegistry(nil))

		Convey("Then the default width should be kept", func() {
			So(a.Aggregate(nil, nil).Width(), ShouldEqual, usage.DefaultWidth)
		})
	})
}
