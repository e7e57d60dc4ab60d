package identify

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body any) error
	GET(path string) error
	Expand(s string) string
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
}

type identity struct {
	PrimaryContactID    int64    `json:"primaryContactId"`
	Emails              []string `json:"emails"`
	PhoneNumbers        []string `json:"phoneNumbers"`
	SecondaryContactIDs []int64  `json:"secondaryContactIds"`
}

// RegisterSteps registers identify step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &identifySteps{tc: tc, primaries: map[string]int64{}}

	ctx.Step(`^I identify with email "([^"]*)" and phone "([^"]*)"$`, steps.identifyEmailAndPhone)
	ctx.Step(`^I identify with email "([^"]*)"$`, steps.identifyEmail)
	ctx.Step(`^I identify with phone "([^"]*)"$`, steps.identifyPhone)
	ctx.Step(`^I look up the identity of contact (\d+)$`, steps.lookUp)
	ctx.Step(`^I look up the identity of primary "([^"]*)"$`, steps.lookUpRemembered)

	ctx.Step(`^I remember the primary contact as "([^"]*)"$`, steps.rememberPrimary)
	ctx.Step(`^the primary contact should be "([^"]*)"$`, steps.primaryShouldBe)
	ctx.Step(`^the primary contact id should be (\d+)$`, steps.primaryIDShouldBe)
	ctx.Step(`^the emails should be "([^"]*)"$`, steps.emailsShouldBe)
	ctx.Step(`^the phone numbers should be "([^"]*)"$`, steps.phonesShouldBe)
	ctx.Step(`^there should be (\d+) secondary contacts?$`, steps.secondaryCountShouldBe)
	ctx.Step(`^the error should be "([^"]*)"$`, steps.errorShouldBe)
}

type identifySteps struct {
	tc        TestContext
	primaries map[string]int64
}

func (s *identifySteps) identifyEmailAndPhone(email, phone string) error {
	return s.tc.POST("/identify", map[string]string{
		"email":       s.tc.Expand(email),
		"phoneNumber": s.tc.Expand(phone),
	})
}

func (s *identifySteps) identifyEmail(email string) error {
	return s.tc.POST("/identify", map[string]string{"email": s.tc.Expand(email)})
}

func (s *identifySteps) identifyPhone(phone string) error {
	return s.tc.POST("/identify", map[string]string{"phoneNumber": s.tc.Expand(phone)})
}

func (s *identifySteps) lookUp(id int64) error {
	return s.tc.GET(fmt.Sprintf("/contacts/%d/identity", id))
}

func (s *identifySteps) lookUpRemembered(name string) error {
	id, ok := s.primaries[name]
	if !ok {
		return fmt.Errorf("no primary remembered as %q", name)
	}
	return s.lookUp(id)
}

func (s *identifySteps) identity() (*identity, error) {
	if status := s.tc.GetLastResponseStatus(); status != 200 {
		return nil, fmt.Errorf("expected an identity, got status %d: %s", status, s.tc.GetLastResponseBody())
	}
	var body struct {
		Contact identity `json:"contact"`
	}
	if err := json.Unmarshal(s.tc.GetLastResponseBody(), &body); err != nil {
		return nil, fmt.Errorf("decode identity: %w", err)
	}
	return &body.Contact, nil
}

func (s *identifySteps) rememberPrimary(name string) error {
	id, err := s.identity()
	if err != nil {
		return err
	}
	s.primaries[name] = id.PrimaryContactID
	return nil
}

func (s *identifySteps) primaryShouldBe(name string) error {
	id, err := s.identity()
	if err != nil {
		return err
	}
	want, ok := s.primaries[name]
	if !ok {
		return fmt.Errorf("no primary remembered as %q", name)
	}
	if id.PrimaryContactID != want {
		return fmt.Errorf("expected primary %d (%s), got %d", want, name, id.PrimaryContactID)
	}
	return nil
}

func (s *identifySteps) primaryIDShouldBe(want int64) error {
	id, err := s.identity()
	if err != nil {
		return err
	}
	if id.PrimaryContactID != want {
		return fmt.Errorf("expected primary %d, got %d", want, id.PrimaryContactID)
	}
	return nil
}

func (s *identifySteps) emailsShouldBe(list string) error {
	id, err := s.identity()
	if err != nil {
		return err
	}
	return compareList("emails", s.tc.Expand(list), id.Emails)
}

func (s *identifySteps) phonesShouldBe(list string) error {
	id, err := s.identity()
	if err != nil {
		return err
	}
	return compareList("phone numbers", s.tc.Expand(list), id.PhoneNumbers)
}

func (s *identifySteps) secondaryCountShouldBe(n int) error {
	id, err := s.identity()
	if err != nil {
		return err
	}
	if len(id.SecondaryContactIDs) != n {
		return fmt.Errorf("expected %d secondary contacts, got %v", n, id.SecondaryContactIDs)
	}
	return nil
}

func (s *identifySteps) errorShouldBe(code string) error {
	var body map[string]string
	if err := json.Unmarshal(s.tc.GetLastResponseBody(), &body); err != nil {
		return fmt.Errorf("decode error body: %w", err)
	}
	if body["error"] != code {
		return fmt.Errorf("expected error %q, got %q", code, body["error"])
	}
	return nil
}

// compareList checks order as well as membership; the first entry is the
// primary's value.
func compareList(name, want string, got []string) error {
	expected := []string{}
	for _, v := range strings.Split(want, ",") {
		if v = strings.TrimSpace(v); v != "" {
			expected = append(expected, v)
		}
	}
	if strings.Join(expected, ",") != strings.Join(got, ",") {
		return fmt.Errorf("expected %s %v, got %v", name, expected, got)
	}
	return nil
}
