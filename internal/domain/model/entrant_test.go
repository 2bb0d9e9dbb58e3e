package model_test

import (
	"errors"
	"math"
	"testing"

	model "github.com/okian/arena/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func validAttrs() model.Attributes {
	return model.Attributes{Name: "Ali", Weight: 180, Height: 75, Reach: 78, Age: 30}
}

func TestAttributesValidate(t *testing.T) {
	convey.Convey("Given boxer attributes", t, func() {
		convey.Convey("When every field is in range", func() {
			convey.So(validAttrs().Validate(), convey.ShouldBeNil)
		})

		convey.Convey("When boundary values are used", func() {
			a := validAttrs()
			a.Weight, a.Age = model.MinWeight, model.MinAge
			convey.So(a.Validate(), convey.ShouldBeNil)
			a.Age = model.MaxAge
			convey.So(a.Validate(), convey.ShouldBeNil)
		})

		invalid := map[string]func(*model.Attributes){
			"blank name":     func(a *model.Attributes) { a.Name = "   " },
			"light weight":   func(a *model.Attributes) { a.Weight = 124 },
			"zero height":    func(a *model.Attributes) { a.Height = 0 },
			"negative reach": func(a *model.Attributes) { a.Reach = -1 },
			"zero reach":     func(a *model.Attributes) { a.Reach = 0 },
			"nan reach":      func(a *model.Attributes) { a.Reach = math.NaN() },
			"inf reach":      func(a *model.Attributes) { a.Reach = math.Inf(1) },
			"too young":      func(a *model.Attributes) { a.Age = 17 },
			"too old":        func(a *model.Attributes) { a.Age = 41 },
		}
		for name, mutate := range invalid {
			convey.Convey("When the attributes have a "+name, func() {
				a := validAttrs()
				mutate(&a)
				err := a.Validate()

				convey.Convey("Then a validation error is returned", func() {
					convey.So(errors.Is(err, model.ErrValidation), convey.ShouldBeTrue)
				})
			})
		}
	})
}

func TestAttributesNormalize(t *testing.T) {
	convey.Convey("Given a padded name", t, func() {
		a := validAttrs()
		a.Name = "  Ali \t"
		convey.So(a.Normalize().Name, convey.ShouldEqual, "Ali")
		convey.So(a.Name, convey.ShouldEqual, "  Ali \t")
	})
}

func TestClassifyWeight(t *testing.T) {
	convey.Convey("Given weights on class boundaries", t, func() {
		cases := []struct {
			weight int
			want   model.WeightClass
		}{
			{125, model.Featherweight},
			{132, model.Featherweight},
			{133, model.Lightweight},
			{165, model.Lightweight},
			{166, model.Middleweight},
			{202, model.Middleweight},
			{203, model.Heavyweight},
			{300, model.Heavyweight},
		}
		for _, tc := range cases {
			convey.So(model.ClassifyWeight(tc.weight), convey.ShouldEqual, tc.want)
		}
	})
}

func TestEntrantRecord(t *testing.T) {
	convey.Convey("Given an entrant with a record", t, func() {
		e := model.Entrant{ID: 1, Name: "Ali", Weight: 210, Fights: 4, Wins: 3}

		convey.Convey("Then derived values follow the record", func() {
			convey.So(e.Losses(), convey.ShouldEqual, int64(1))
			convey.So(e.WinPct(), convey.ShouldEqual, 0.75)
			convey.So(e.WeightClass(), convey.ShouldEqual, model.Heavyweight)
			convey.So(e.Attributes().Name, convey.ShouldEqual, "Ali")
		})

		convey.Convey("When the entrant has never fought", func() {
			e.Fights, e.Wins = 0, 0
			convey.So(e.WinPct(), convey.ShouldEqual, 0.0)
		})
	})
}

func TestParseMetric(t *testing.T) {
	convey.Convey("Given metric names", t, func() {
		m, err := model.ParseMetric("wins")
		convey.So(err, convey.ShouldBeNil)
		convey.So(m, convey.ShouldEqual, model.MetricWins)

		m, err = model.ParseMetric("win_pct")
		convey.So(err, convey.ShouldBeNil)
		convey.So(m, convey.ShouldEqual, model.MetricWinPct)

		_, err = model.ParseMetric("bogus")
		convey.So(errors.Is(err, model.ErrInvalidSort), convey.ShouldBeTrue)
	})
}
