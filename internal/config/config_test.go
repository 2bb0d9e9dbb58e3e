package config_test

import (
	"errors"
	"testing"
	"time"

	"github.com/okian/arena/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.StorageDriver, convey.ShouldEqual, config.DriverMemory)
			convey.So(cfg.RandomSource, convey.ShouldEqual, config.RandomLocal)
			convey.So(cfg.SkillNormalizer, convey.ShouldEqual, 20.0)
			convey.So(cfg.WeightCoefficient, convey.ShouldEqual, 1.0)
			convey.So(cfg.ReachBaseline, convey.ShouldEqual, 70.0)
			convey.So(cfg.ReachCoefficient, convey.ShouldEqual, 0.5)
			convey.So(cfg.CacheTTL(), convey.ShouldEqual, time.Minute)
			convey.So(cfg.RandomTimeout(), convey.ShouldEqual, 5*time.Second)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given a default config", t, func() {
		cases := []struct {
			name   string
			mutate func(*config.Config)
		}{
			{"empty addr", func(c *config.Config) { c.Addr = " " }},
			{"unknown driver", func(c *config.Config) { c.StorageDriver = "mongo" }},
			{"sqlite without path", func(c *config.Config) { c.StorageDriver = config.DriverSQLite; c.SQLitePath = "" }},
			{"postgres without dsn", func(c *config.Config) { c.StorageDriver = config.DriverPostgres }},
			{"unknown random source", func(c *config.Config) { c.RandomSource = "dice" }},
			{"random.org without url", func(c *config.Config) { c.RandomSource = config.RandomOrg; c.RandomOrgURL = "" }},
			{"zero normalizer", func(c *config.Config) { c.SkillNormalizer = 0 }},
			{"negative weight coefficient", func(c *config.Config) { c.WeightCoefficient = -1 }},
			{"negative rate", func(c *config.Config) { c.RateLimitRPS = -1 }},
		}
		for _, tc := range cases {
			convey.Convey("When it has "+tc.name, func() {
				cfg := config.New()
				tc.mutate(cfg)
				err := cfg.Validate()

				convey.Convey("Then validation fails with ErrInvalidConfig", func() {
					convey.So(err, convey.ShouldNotBeNil)
					convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				})
			})
		}

		convey.Convey("When postgres has a dsn", func() {
			cfg := config.New()
			cfg.StorageDriver = config.DriverPostgres
			cfg.PostgresDSN = "postgres://arena@localhost/arena"
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}
