package httptransport

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	contacthandler "contactlink/internal/contact/handler"
	contactmodels "contactlink/internal/contact/models"
	"contactlink/internal/contact/seed"
	"contactlink/internal/contact/service"
	contactstore "contactlink/internal/contact/store/contact"
	"contactlink/internal/platform/metrics"
	ratelimitmw "contactlink/internal/ratelimit/middleware"
	"contactlink/internal/ratelimit/models"
	ratelimitsvc "contactlink/internal/ratelimit/service"
	"contactlink/internal/ratelimit/store/bucket"
	"contactlink/pkg/testutil"
)

type identifyBody struct {
	Email       string `json:"email,omitempty"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
}

func newTestRouter(t *testing.T, limit int, readiness map[string]HealthCheck) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store := contactstore.NewInMemory()
	svc := service.New(store, service.WithLogger(logger))
	demo, err := seed.Demo()
	require.NoError(t, err)
	require.NoError(t, svc.ImportContacts(context.Background(), demo))

	limiter, err := ratelimitsvc.New(bucket.NewInMemoryBucketStore(),
		ratelimitsvc.WithLogger(logger),
		ratelimitsvc.WithLimit(models.Limit{Requests: limit, Window: time.Minute}),
	)
	require.NoError(t, err)

	return NewRouter(Deps{
		Logger:      logger,
		Contacts:    contacthandler.New(svc, logger),
		RateLimit:   ratelimitmw.New(limiter, logger),
		HTTPMetrics: metrics.New(prometheus.NewRegistry()),
		Readiness:   readiness,
	})
}

func TestRouter_IdentifyFlow(t *testing.T) {
	router := newTestRouter(t, 100, nil)

	testutil.Given(t, "the demo dataset", func(t *testing.T) {
		testutil.When(t, "a known secondary pair is identified", func(t *testing.T) {
			rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/identify",
				identifyBody{Email: "mcfly@hillvalley.edu", PhoneNumber: "123456"}))

			testutil.Then(t, "the consolidated identity is returned", func(t *testing.T) {
				require.Equal(t, http.StatusOK, rr.Code)
				resp := testutil.UnmarshalResponse[contacthandler.IdentifyResponse](t, rr)
				assert.EqualValues(t, 1, resp.Contact.PrimaryContactID)
				assert.Equal(t, []string{"lorraine@hillvalley.edu", "mcfly@hillvalley.edu"}, resp.Contact.Emails)
				assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
				assert.Equal(t, "99", rr.Header().Get("X-RateLimit-Remaining"))
			})
		})

		testutil.When(t, "the identity of the secondary is looked up", func(t *testing.T) {
			rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, "/contacts/23/identity", nil))

			testutil.Then(t, "it resolves to the primary", func(t *testing.T) {
				require.Equal(t, http.StatusOK, rr.Code)
				resp := testutil.UnmarshalResponse[contacthandler.IdentifyResponse](t, rr)
				assert.Equal(t, []contactmodels.ContactID{23}, resp.Contact.SecondaryContactIDs)
			})
		})

		testutil.When(t, "the contact table is listed", func(t *testing.T) {
			rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, "/contacts", nil))

			testutil.Then(t, "both demo records are present", func(t *testing.T) {
				resp := testutil.UnmarshalResponse[contacthandler.ListContactsResponse](t, rr)
				assert.Equal(t, 2, resp.Total)
			})
		})

		testutil.When(t, "an empty observation is sent", func(t *testing.T) {
			rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/identify", identifyBody{}))

			testutil.Then(t, "it is rejected as invalid input", func(t *testing.T) {
				testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "invalid_input")
			})
		})
	})
}

func TestRouter_RateLimitsIdentifyOnly(t *testing.T) {
	router := newTestRouter(t, 1, nil)
	body := identifyBody{Email: "doc@hillvalley.edu"}

	rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/identify", body))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/identify", body))
	testutil.AssertStatusAndError(t, rr, http.StatusTooManyRequests, "rate_limit_exceeded")
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))

	rr = testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, "/contacts", nil))
	assert.Equal(t, http.StatusOK, rr.Code, "reads are not limited")
}

func TestRouter_Probes(t *testing.T) {
	router := newTestRouter(t, 10, map[string]HealthCheck{
		"contacts": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return errors.New("dial tcp: refused") },
	})

	rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	report := testutil.UnmarshalResponse[map[string]string](t, rr)
	assert.Equal(t, "ok", (*report)["contacts"])
	assert.Equal(t, "unavailable", (*report)["redis"])

	rr = testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, "/unknown", nil))
	testutil.AssertStatusAndError(t, rr, http.StatusNotFound, "not_found")

	rr = testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodDelete, "/contacts", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}
