package main

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/arena/internal/adapters/http/api"
	service "github.com/okian/arena/internal/app"
	"github.com/okian/arena/pkg/logger"
)

func TestSmoketestCommand(t *testing.T) {
	if err := logger.Init(); err != nil {
		t.Fatal(err)
	}
	convey.Convey("Given a running service", t, func() {
		ctx := context.Background()
		svc := service.New()
		convey.So(svc.Start(ctx), convey.ShouldBeNil)
		defer svc.Stop()
		srv := httptest.NewServer(api.NewServer(svc, svc).Handler(ctx))
		defer srv.Close()

		convey.Convey("The command passes against it", func() {
			err := newApp().RunContext(ctx, []string{"smoketest", "--url", srv.URL, "--boxers", "4", "--rounds", "5", "--seed", "3"})
			convey.So(err, convey.ShouldBeNil)
		})

		convey.Convey("Bad flags fail before any request", func() {
			err := newApp().RunContext(ctx, []string{"smoketest", "--url", srv.URL, "--boxers", "1"})
			convey.So(err, convey.ShouldNotBeNil)
		})

		convey.Convey("An unknown log level is rejected", func() {
			err := newApp().RunContext(ctx, []string{"smoketest", "--url", srv.URL, "--log-level", "loud"})
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}
