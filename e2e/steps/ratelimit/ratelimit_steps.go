package ratelimit

import (
	"fmt"
	"strconv"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body any) error
	GET(path string) error
	Expand(s string) string
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
	GetLastResponseHeader(name string) string
}

// RegisterSteps registers rate-limiting step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &ratelimitSteps{tc: tc}

	ctx.Step(`^I send (\d+) identify requests$`, steps.sendIdentifyRequests)
	ctx.Step(`^the response should carry rate limit headers$`, steps.shouldCarryHeaders)
	ctx.Step(`^the response should ask me to retry later$`, steps.shouldAskToRetry)
	ctx.Step(`^(\d+) requests? should have been accepted$`, steps.acceptedShouldBe)
}

type ratelimitSteps struct {
	tc       TestContext
	accepted int
}

// sendIdentifyRequests repeats one observation from the scenario's client
// address, stopping at the first rejection.
func (s *ratelimitSteps) sendIdentifyRequests(n int) error {
	s.accepted = 0
	body := map[string]string{"email": s.tc.Expand("burst-{run}@hillvalley.edu")}
	for i := 0; i < n; i++ {
		if err := s.tc.POST("/identify", body); err != nil {
			return err
		}
		if s.tc.GetLastResponseStatus() != 200 {
			return nil
		}
		s.accepted++
	}
	return nil
}

func (s *ratelimitSteps) shouldCarryHeaders() error {
	for _, h := range []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"} {
		if s.tc.GetLastResponseHeader(h) == "" {
			return fmt.Errorf("missing header %s", h)
		}
	}
	return nil
}

func (s *ratelimitSteps) shouldAskToRetry() error {
	if status := s.tc.GetLastResponseStatus(); status != 429 {
		return fmt.Errorf("expected status 429, got %d", status)
	}
	retry, err := strconv.Atoi(s.tc.GetLastResponseHeader("Retry-After"))
	if err != nil || retry < 1 {
		return fmt.Errorf("expected a positive Retry-After, got %q", s.tc.GetLastResponseHeader("Retry-After"))
	}
	return nil
}

func (s *ratelimitSteps) acceptedShouldBe(n int) error {
	if s.accepted != n {
		return fmt.Errorf("expected %d accepted requests, got %d", n, s.accepted)
	}
	return nil
}
