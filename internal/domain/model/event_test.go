package model_test

import (
	"testing"

	model "github.com/okian/toolaudit/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestParseLanguage(t *testing.T) {
	convey.Convey("Given feed language ids", t, func() {
		convey.Convey("When the id starts with a known prefix", func() {
			cases := map[string]model.Language{
				"c":        model.C,
				"cpp":      model.C,
				"java":     model.Java,
				"java17":   model.Java,
				"kotlin":   model.Kotlin,
				"python3":  model.Python,
				"python2":  model.Python,
				"c11-gnu":  model.C,
				"kotlin19": model.Kotlin,
			}

			convey.Convey("Then it should map to that language", func() {
				for id, want := range cases {
					got, ok := model.ParseLanguage(id)
					convey.So(ok, convey.ShouldBeTrue)
					convey.So(got, convey.ShouldEqual, want)
				}
			})
		})

		convey.Convey("When the id matches no prefix", func() {
			_, ok := model.ParseLanguage("rust")
			_, okEmpty := model.ParseLanguage("")

			convey.Convey("Then it should not match", func() {
				convey.So(ok, convey.ShouldBeFalse)
				convey.So(okEmpty, convey.ShouldBeFalse)
			})
		})
	})
}

func TestLanguageNames(t *testing.T) {
	convey.Convey("Given the language table", t, func() {
		convey.So(model.Languages(), convey.ShouldResemble, []model.Language{model.C, model.Java, model.Kotlin, model.Python})
		convey.So(model.Java.String(), convey.ShouldEqual, "Java")
		convey.So(model.Python.Prefix(), convey.ShouldEqual, "python")
		convey.So(model.Language(42).String(), convey.ShouldEqual, "Language(42)")
		convey.So(model.Language(42).Prefix(), convey.ShouldEqual, "")
	})
}

func TestTeamSortKey(t *testing.T) {
	convey.Convey("Given team ids of different widths", t, func() {
		convey.So(model.TeamSortKey("7"), convey.ShouldEqual, "007")
		convey.So(model.TeamSortKey("42"), convey.ShouldEqual, "042")
		convey.So(model.TeamSortKey("123"), convey.ShouldEqual, "123")
		convey.So(model.TeamSortKey("tobi"), convey.ShouldEqual, "tobi")
		convey.So(model.TeamSortKey("7") < model.TeamSortKey("42"), convey.ShouldBeTrue)
	})
}

func TestSubmissionTeamProblem(t *testing.T) {
	convey.Convey("Given two submissions", t, func() {
		a := model.Submission{TeamID: "1", ProblemID: "23"}
		b := model.Submission{TeamID: "12", ProblemID: "3"}

		convey.Convey("Then their pair keys should not collide", func() {
			convey.So(a.TeamProblem(), convey.ShouldNotEqual, b.TeamProblem())
		})
	})
}
