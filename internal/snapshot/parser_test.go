package snapshot_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/okian/toolaudit/internal/domain/model"
	"github.com/okian/toolaudit/internal/domain/tool"
	"github.com/okian/toolaudit/internal/snapshot"
	"github.com/okian/toolaudit/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

const dump = `1668000000
USER       PID %CPU %MEM    VSZ   RSS TTY      STAT START   TIME COMMAND
team17    1001  3.5  1.0 123456 7890 ?        Sl   10:00   0:01 /opt/clion/bin/clion.sh
team17    1002  1.5  1.0 123456 7890 ?        Sl   10:00   0:01 /opt/clion/jbr/bin/java -cp x
team17    1003  0.0  0.1   1234  567 pts/0    S    10:00   0:00 /usr/bin/geany main.c
team17    1004  0.2  0.1   1234  567 pts/0    S    10:00   0:00 /usr/bin/bash --login
root         1  0.0  0.1   1234  567 ?        Ss   09:00   0:02 /sbin/init
1668000060
team17    1001  7.0  1.0 123456 7890 ?        Sl   10:00   0:02 /opt/clion/bin/clion.sh
team17    1005  abc  1.0 123456 7890 ?        Sl   10:00   0:02 /usr/bin/vim a.c
team17    1006
1668000120
`

func parse(p *snapshot.Parser, unit snapshot.Unit, text string) *snapshot.Result {
	res, err := p.Parse(context.Background(), unit, strings.NewReader(text))
	So(err, ShouldBeNil)
	return res
}

func TestParse(t *testing.T) {
	Convey("Given a parser with the default registry", t, func() {
		p := snapshot.NewParser()
		unit := snapshot.Unit{ID: "17", Team: "17"}

		Convey("When a multi-block dump is parsed", func() {
			res := parse(p, unit, dump)

			Convey("Then CPU should be summed per tool per block", func() {
				So(res.Observations, ShouldResemble, []model.Observation{
					{Time: 1668000000, Unit: "17", Team: "17", Tool: tool.CLion, CPU: 5.0},
					{Time: 1668000000, Unit: "17", Team: "17", Tool: tool.Geany, CPU: 0.01},
					{Time: 1668000060, Unit: "17", Team: "17", Tool: tool.CLion, CPU: 7.0},
				})
			})

			Convey("Then unidentified team commands should be collected", func() {
				So(res.Unidentified, ShouldContainKey, "/usr/bin/bash --login")
				So(res.Unidentified, ShouldNotContainKey, "/sbin/init")
			})

			Convey("Then every sampled block time should be reported", func() {
				So(res.Times, ShouldResemble, []int64{1668000000, 1668000060, 1668000120})
			})

			Convey("Then malformed and foreign rows should be counted, not fatal", func() {
				So(res.Stats.Timestamps, ShouldEqual, 3)
				So(res.Stats.Malformed, ShouldEqual, 2)
				So(res.Stats.ForeignUser, ShouldEqual, 2)
				So(res.Stats.Classified, ShouldEqual, 4)
				So(res.Stats.Unidentified, ShouldEqual, 1)
			})
		})

		Convey("When rows appear before the first timestamp", func() {
			res := parse(p, unit, "team17 1 50.0 0 0 0 ? S 10:00 0:00 vim x\n1668000000\n")

			Convey("Then they should be dropped", func() {
				So(res.Observations, ShouldBeEmpty)
				So(res.Times, ShouldResemble, []int64{1668000000})
			})
		})

		Convey("When a raw CPU value is zero or negative", func() {
			res := parse(p, unit, "100\nteam17 1 -3.0 0 0 0 ? S 10:00 0:00 nano x\n")

			Convey("Then the tool should still be recorded with a positive epsilon", func() {
				So(len(res.Observations), ShouldEqual, 1)
				So(res.Observations[0].Tool, ShouldEqual, tool.Nano)
				So(res.Observations[0].CPU, ShouldEqual, 0.01)
			})
		})

		Convey("When the same timestamp is repeated or revisited", func() {
			text := "100\nteam17 1 1.0 0 0 0 ? S 10:00 0:00 nano x\n" +
				"100\nteam17 1 2.0 0 0 0 ? S 10:00 0:00 nano x\n" +
				"200\nteam17 1 4.0 0 0 0 ? S 10:00 0:00 nano x\n" +
				"100\nteam17 1 8.0 0 0 0 ? S 10:00 0:00 nano x\n"
			res := parse(p, unit, text)

			Convey("Then at most one observation per (time, tool) should be emitted, in time order", func() {
				So(len(res.Observations), ShouldEqual, 2)
				So(res.Observations[0].Time, ShouldEqual, 100)
				So(res.Observations[0].CPU, ShouldEqual, 11.0)
				So(res.Observations[1].Time, ShouldEqual, 200)
				So(res.Observations[1].CPU, ShouldEqual, 4.0)
			})
		})

		Convey("When the dump uses CRLF line endings and no trailing newline", func() {
			res := parse(p, unit, "100\r\nteam17 1 2.5 0 0 0 ? S 10:00 0:00 emacs   -nw  a.c\r\n200")

			Convey("Then lines should still parse", func() {
				So(len(res.Observations), ShouldEqual, 1)
				So(res.Observations[0].Tool, ShouldEqual, tool.Emacs)
				So(res.Times, ShouldResemble, []int64{100, 200})
			})
		})

		Convey("When the unit is a workstation of a team", func() {
			ws := snapshot.Unit{ID: "17-2", Team: "17"}
			res := parse(p, ws, "100\nteam17 1 2.0 0 0 0 ? S 10:00 0:00 kate\n")

			Convey("Then rows of the team user should count and keep the unit id", func() {
				So(len(res.Observations), ShouldEqual, 1)
				So(res.Observations[0].Unit, ShouldEqual, "17-2")
				So(res.Observations[0].Team, ShouldEqual, "17")
			})
		})

		Convey("When the user only shares a prefix with the team user", func() {
			res := parse(p, unit, "100\nteam170 1 2.0 0 0 0 ? S 10:00 0:00 kate\n")

			Convey("Then the row should not count", func() {
				So(res.Observations, ShouldBeEmpty)
				So(res.Stats.ForeignUser, ShouldEqual, 1)
			})
		})
	})
}

func TestParseCleanCommands(t *testing.T) {
	Convey("Given a parser that cleans commands", t, func() {
		p := snapshot.NewParser(snapshot.WithCleanCommands(true), snapshot.WithUserPrefix("contestant"))
		unit := snapshot.Unit{ID: "5", Team: "5"}

		Convey("When wrapped and volatile command lines are parsed", func() {
			text := "100\n" +
				"contestant5 1 1.0 0 0 0 ? S 10:00 0:00 /bin/sh -c /usr/bin/geany /home/contestant5/a.c\n" +
				"contestant5 2 1.0 0 0 0 ? S 10:00 0:00 /opt/app/run --no-sandbox --type=gpu\n"
			res := parse(p, unit, text)

			Convey("Then classification and unidentified reporting should use the cleaned form", func() {
				So(len(res.Observations), ShouldEqual, 1)
				So(res.Observations[0].Tool, ShouldEqual, tool.Geany)
				So(res.Unidentified, ShouldContainKey, "/opt/app/run")
			})
		})
	})
}

func TestParseCustomRegistry(t *testing.T) {
	Convey("Given a registry where two tools tie", t, func() {
		r := tool.NewRegistry(
			tool.Tool{ID: "A", Prefixes: []string{"a"}},
			tool.Tool{ID: "B", Prefixes: []string{"b"}},
		)
		p := snapshot.NewParser(snapshot.WithRegistry(r))
		res := parse(p, snapshot.Unit{ID: "1", Team: "1"}, "10\nteam1 1 1 0 0 0 ? S 0 0 b\nteam1 2 1 0 0 0 ? S 0 0 a\n")

		Convey("Then observations should follow registry order within a block", func() {
			So(len(res.Observations), ShouldEqual, 2)
			So(res.Observations[0].Tool, ShouldEqual, "A")
			So(res.Observations[1].Tool, ShouldEqual, "B")
		})
	})
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk gone") }

func TestParseReadError(t *testing.T) {
	Convey("Given a reader that fails", t, func() {
		p := snapshot.NewParser()
		_, err := p.Parse(context.Background(), snapshot.Unit{ID: "1", Team: "1"}, failingReader{})

		Convey("Then the error should be returned as a read error", func() {
			So(err, ShouldNotBeNil)
			So(errors.Is(err, snapshot.ErrRead), ShouldBeTrue)
		})
	})
}
