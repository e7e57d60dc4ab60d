package e2e

import (
	"fmt"

	"github.com/cucumber/godog"

	"contactlink/e2e/steps/identify"
	"contactlink/e2e/steps/ratelimit"
)

// RegisterSteps registers all step definitions from modular packages
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	ctx.Step(`^the response status should be (\d+)$`, func(status int) error {
		if got := tc.GetLastResponseStatus(); got != status {
			return fmt.Errorf("expected status %d, got %d: %s", status, got, tc.GetLastResponseBody())
		}
		return nil
	})
	ctx.Step(`^the response field "([^"]*)" should be "([^"]*)"$`, func(field, want string) error {
		v, err := tc.GetResponseField(field)
		if err != nil {
			return err
		}
		if got := fmt.Sprint(v); got != tc.Expand(want) {
			return fmt.Errorf("expected %s=%q, got %q", field, want, got)
		}
		return nil
	})

	identify.RegisterSteps(ctx, tc)
	ratelimit.RegisterSteps(ctx, tc)
}
