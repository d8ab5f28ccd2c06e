package tool_test

import (
	"testing"

	"github.com/okian/toolaudit/internal/domain/model"
	"github.com/okian/toolaudit/internal/domain/tool"
	. "github.com/smartystreets/goconvey/convey"
)

func TestClassify(t *testing.T) {
	Convey("Given the default registry", t, func() {
		r := tool.Default()

		Convey("When every registered prefix is used verbatim as a command line", func() {
			Convey("Then it should classify to the tool that registered it", func() {
				for _, tl := range r.Tools() {
					for _, p := range tl.Prefixes {
						So(r.Classify(p).ID, ShouldEqual, tl.ID)
					}
				}
			})
		})

		Convey("When a command line carries arguments after a prefix", func() {
			Convey("Then prefix matching should ignore them", func() {
				So(r.Classify("/opt/clion/bin/clion.sh").ID, ShouldEqual, tool.CLion)
				So(r.Classify("/usr/share/code/code --unity-launch /home/team1/a.cpp").ID, ShouldEqual, tool.VSCode)
				So(r.Classify("/usr/bin/java -Dosgi.requiredJavaVersion=1.8 -Xms256m").ID, ShouldEqual, tool.Eclipse)
				So(r.Classify("gvim a.c").ID, ShouldEqual, tool.Vim)
			})
		})

		Convey("When prefixes of several tools could match", func() {
			Convey("Then the earlier registered tool should win", func() {
				So(r.Classify("vim main.py").ID, ShouldEqual, tool.Vim)
				So(r.Classify("vi main.py").ID, ShouldEqual, tool.Vi)
			})
		})

		Convey("When nothing matches", func() {
			got := r.Classify("/usr/bin/bash")

			Convey("Then Unknown should be returned", func() {
				So(got.ID, ShouldEqual, tool.Unknown)
				So(got.IsUnknown(), ShouldBeTrue)
				So(got.Index(), ShouldEqual, r.Len()-1)
				So(r.Classify("").IsUnknown(), ShouldBeTrue)
			})
		})
	})
}

func TestExpectedLanguages(t *testing.T) {
	Convey("Given the default registry", t, func() {
		r := tool.Default()

		Convey("Then language-specific IDEs should expect only their languages", func() {
			So(r.ExpectedLanguages(tool.CLion), ShouldResemble, []model.Language{model.C})
			So(r.ExpectedLanguages(tool.Idea), ShouldResemble, []model.Language{model.Java, model.Kotlin})

			clion, _ := r.Lookup(tool.CLion)
			So(clion.Expects(model.C), ShouldBeTrue)
			So(clion.Expects(model.Java), ShouldBeFalse)
		})

		Convey("Then generic editors should expect every language", func() {
			So(r.ExpectedLanguages(tool.Vim), ShouldResemble, model.Languages())
			nano, ok := r.Lookup(tool.Nano)
			So(ok, ShouldBeTrue)
			So(nano.Expects(model.Kotlin), ShouldBeTrue)
		})

		Convey("Then Unknown should expect nothing", func() {
			So(r.ExpectedLanguages(tool.Unknown), ShouldBeEmpty)
			So(r.Unknown().Expects(model.C), ShouldBeFalse)
			So(r.ExpectedLanguages("Notepad"), ShouldBeNil)
		})
	})
}

func TestRegistryOrder(t *testing.T) {
	Convey("Given a custom registry", t, func() {
		r := tool.NewRegistry(
			tool.Tool{ID: "A", Prefixes: []string{"a"}},
			tool.Tool{ID: tool.Unknown, Prefixes: []string{"x"}},
			tool.Tool{ID: "B", Prefixes: []string{"b"}},
		)

		Convey("Then declaration order should be kept and Unknown should be last", func() {
			all := r.ToolsWithUnknown()
			So(len(all), ShouldEqual, 3)
			So(all[0].ID, ShouldEqual, "A")
			So(all[1].ID, ShouldEqual, "B")
			So(all[2].ID, ShouldEqual, tool.Unknown)
			So(all[1].Index(), ShouldEqual, 1)
			So(len(r.Tools()), ShouldEqual, 2)
		})

		Convey("Then a caller-supplied Unknown should never match", func() {
			So(r.Classify("x").IsUnknown(), ShouldBeTrue)
			So(r.Classify("x").Prefixes, ShouldBeEmpty)
		})
	})
}

func TestNormalize(t *testing.T) {
	Convey("Given raw command lines from different workstations", t, func() {
		Convey("When a shell wrapper launches the tool", func() {
			Convey("Then the wrapper should be dropped", func() {
				So(tool.Normalize("/bin/sh -c /usr/bin/geany main.c"), ShouldEqual, "/usr/bin/geany main.c")
				So(tool.Normalize(`bash -c "/opt/clion/bin/clion.sh"`), ShouldEqual, "/opt/clion/bin/clion.sh")
			})
		})

		Convey("When volatile segments follow the command", func() {
			a := tool.Normalize("/usr/share/code/code --type=renderer --field-trial-handle=123")
			b := tool.Normalize("/usr/share/code/code   --type=zygote --no-sandbox")
			c := tool.Normalize("/usr/bin/gedit /home/team17/a.cpp")

			Convey("Then the line should be truncated at the first volatile token", func() {
				So(a, ShouldEqual, "/usr/share/code/code")
				So(b, ShouldEqual, a)
				So(c, ShouldEqual, "/usr/bin/gedit")
			})
		})

		Convey("When the command itself lives in a volatile path", func() {
			Convey("Then the first token should be kept", func() {
				So(tool.Normalize("/tmp/.mount_x/AppRun --no-sandbox"), ShouldEqual, "/tmp/.mount_x/AppRun")
			})
		})

		Convey("Then normalized commands should still classify", func() {
			r := tool.Default()
			So(r.Classify(tool.Normalize("sh -c vscode --user-data-dir=/home/t/.vs")).ID, ShouldEqual, tool.VSCode)
		})
	})
}
