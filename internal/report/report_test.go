package report_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/okian/toolaudit/internal/crossref"
	"github.com/okian/toolaudit/internal/domain/model"
	"github.com/okian/toolaudit/internal/domain/tool"
	"github.com/okian/toolaudit/internal/report"
	"github.com/okian/toolaudit/internal/usage"
	"github.com/okian/toolaudit/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

const t0 = int64(1668000000) // 13:20 UTC, 19:20 in Dhaka

func fixture() report.Input {
	tl := usage.New().Aggregate([]model.Observation{
		{Time: t0, Unit: "1", Team: "1", Tool: tool.CLion, CPU: 3},
		{Time: t0 + 60, Unit: "2", Team: "2", Tool: tool.Vim, CPU: 1},
		{Time: t0 + 1200, Unit: "1", Team: "1", Tool: tool.Idea, CPU: 2},
	}, []int64{t0, t0 + 600, t0 + 1200})
	subs := []model.Submission{
		{ID: "a", TeamID: "1", Language: model.Java, Time: (t0 + 30) * 1000, Accepted: true},
		{ID: "b", TeamID: "2", Language: model.Python, Time: (t0 + 40) * 1000},
		{ID: "c", TeamID: "1", Language: model.Kotlin, Time: (t0 + 1300) * 1000, Accepted: true},
		{ID: "d", TeamID: "1", Language: model.C, Time: (t0 - 5) * 1000},
	}
	return report.Input{
		Teams:        []string{"1", "2"},
		TeamNames:    map[string]string{"1": "Andalus", "2": "Bits, Bytes"},
		Unidentified: []string{"/usr/bin/bash", "/usr/bin/top"},
		Timeline:     tl,
		CrossRef:     crossref.New().Analyze(context.Background(), subs, tl),
	}
}

func readFile(dir, name string) string {
	b, err := os.ReadFile(filepath.Join(dir, name))
	So(err, ShouldBeNil)
	return string(b)
}

func TestWrite(t *testing.T) {
	Convey("Given a writer in the contest time zone", t, func() {
		dir := filepath.Join(t.TempDir(), "result")
		w := report.NewWriter(dir, report.WithLocation(time.FixedZone("BDT", 6*3600)), report.WithChart(true, 4))

		Convey("When the full report is written", func() {
			paths, err := w.Write(context.Background(), fixture())
			So(err, ShouldBeNil)

			Convey("Then every file should be created", func() {
				So(len(paths), ShouldEqual, 8)
			})

			Convey("Then unidentified commands should be listed one per line", func() {
				So(readFile(dir, report.UnidentifiedToolsFile), ShouldEqual, "/usr/bin/bash\n/usr/bin/top\n")
			})

			Convey("Then tool counts should skip buckets without a dominant tool", func() {
				text := readFile(dir, report.ToolsFile)
				lines := strings.Split(strings.TrimSpace(text), "\n")
				So(len(lines), ShouldEqual, 3)
				So(lines[0], ShouldStartWith, "TIME,CLion,Idea,Pycharm")
				So(lines[0], ShouldNotContainSubstring, "Unknown")
				So(lines[1], ShouldStartWith, "19:20,1,0,")
				So(lines[2], ShouldStartWith, "19:40,0,1,")
			})

			Convey("Then the team timeline should mark idle teams", func() {
				So(readFile(dir, report.TeamsTimeFile), ShouldEqual, "TIME,1,2\n19:20,CLion,Vim\n19:40,Idea,--\n")
			})

			Convey("Then team names should be quoted when needed", func() {
				So(readFile(dir, report.TeamsNameFile), ShouldEqual, "TEAM,NAME\n1,Andalus\n2,\"Bits, Bytes\"\n")
			})

			Convey("Then mismatches should carry epoch seconds", func() {
				text := readFile(dir, report.UnexpectedSubmissionToolsFile)
				So(text, ShouldEqual, "TIME,TEAM,LANGUAGE,TOOL\n1668000030,1,Java,CLion\n")
			})

			Convey("Then language tables should include Unknown and skip empty languages", func() {
				sub := strings.Split(strings.TrimSpace(readFile(dir, report.LangsSubmittedFile)), "\n")
				So(sub[0], ShouldEndWith, ",Nano,Unknown")
				So(len(sub), ShouldEqual, 4)
				So(sub[1], ShouldStartWith, "Java,1,")
				So(sub[2], ShouldStartWith, "Kotlin,0,1,")
				So(sub[3], ShouldStartWith, "Python,")
				acc := strings.Split(strings.TrimSpace(readFile(dir, report.LangsAcceptedFile)), "\n")
				So(len(acc), ShouldEqual, 3)
			})

			Convey("Then the chart should plot every used tool", func() {
				text := readFile(dir, report.ToolsChartFile)
				So(text, ShouldContainSubstring, "CLion teams, 19:20 - 19:40")
				So(text, ShouldContainSubstring, "Vim teams")
				So(text, ShouldNotContainSubstring, "Nano teams")
			})
		})

		Convey("When cross-referencing is disabled", func() {
			in := fixture()
			in.CrossRef = nil
			_, err := report.NewWriter(dir).Write(context.Background(), in)

			Convey("Then the cross-reference files should not be written", func() {
				So(err, ShouldBeNil)
				_, statErr := os.Stat(filepath.Join(dir, report.UnexpectedSubmissionToolsFile))
				So(os.IsNotExist(statErr), ShouldBeTrue)
				_, statErr = os.Stat(filepath.Join(dir, report.ToolsChartFile))
				So(os.IsNotExist(statErr), ShouldBeTrue)
			})
		})
	})

	Convey("Given a result path blocked by a file", t, func() {
		blocker := filepath.Join(t.TempDir(), "result")
		So(os.WriteFile(blocker, []byte("x"), 0o600), ShouldBeNil)
		_, err := report.NewWriter(blocker).Write(context.Background(), fixture())

		Convey("Then the result directory should be reported unavailable", func() {
			So(errors.Is(err, report.ErrResultDir), ShouldBeTrue)
		})
	})
}
