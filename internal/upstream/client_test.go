package upstream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xela07ax/prabandh-gateway/internal/domain"
	"github.com/xela07ax/prabandh-gateway/internal/infra"
)

type staticTokens struct {
	header string
	ok     bool
}

func (s staticTokens) AuthHeader() (string, bool) { return s.header, s.ok }

func newTestClient(t *testing.T, baseURL string, tokens TokenSource) *Client {
	t.Helper()
	cfg := infra.UpstreamConfig{
		BaseURL:       baseURL,
		Timeout:       2 * time.Second,
		RateLimit:     100,
		RateBurst:     100,
		RetryCount:    3,
		CBMaxRequests: 3,
		CBInterval:    time.Minute,
		CBTimeout:     time.Minute,
	}
	return NewClient(cfg, tokens, zap.NewNop())
}

func TestAuthorizationHeaderForwarded(t *testing.T) {
	var gotHeader string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	c := newTestClient(t, ts.URL, staticTokens{header: "Bearer abc", ok: true})
	require.NoError(t, c.CheckAuth(context.Background()))
	assert.Equal(t, "Bearer abc", gotHeader)

	c = newTestClient(t, ts.URL, staticTokens{header: "Token legacy-1", ok: true})
	require.NoError(t, c.CheckAuth(context.Background()))
	assert.Equal(t, "Token legacy-1", gotHeader)
}

func TestUnauthenticatedShortCircuit(t *testing.T) {
	hits := int32(0)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer ts.Close()

	c := newTestClient(t, ts.URL, staticTokens{ok: false})
	_, err := c.ListApplications(context.Background(), ListQuery{})
	assert.ErrorIs(t, err, domain.ErrNotAuthenticated)
	assert.Zero(t, atomic.LoadInt32(&hits), "no session means no network traffic")
}

func TestLoginParsesJWTPair(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/auth/login/", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"access":  "acc-1",
			"refresh": "ref-1",
			"emptype": "hr",
			"user":    map[string]any{"id": 42, "name": "Asha"},
		})
	}))
	defer ts.Close()

	c := newTestClient(t, ts.URL, staticTokens{})
	result, err := c.Login(context.Background(), domain.Credentials{PrimaryEmail: "a@u.edu", Password: "pw"})
	require.NoError(t, err)

	assert.Equal(t, "acc-1", result.Tokens.AccessToken)
	assert.Equal(t, "ref-1", result.Tokens.RefreshToken)
	assert.Equal(t, domain.RoleHR, result.Identity.Role)
	assert.Equal(t, "42", result.Identity.ActorID)
}

func TestLoginLegacyTokenShape(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"token":   "legacy-1",
			"emptype": "dean",
			"user":    map[string]any{"id": "7", "name": "Ravi"},
		})
	}))
	defer ts.Close()

	c := newTestClient(t, ts.URL, staticTokens{})
	result, err := c.Login(context.Background(), domain.Credentials{})
	require.NoError(t, err)

	assert.Equal(t, "legacy-1", result.Tokens.LegacyToken)
	assert.Empty(t, result.Tokens.AccessToken)
	assert.Equal(t, domain.RoleDean, result.Identity.Role)
}

func TestLoginRejected(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer ts.Close()

	c := newTestClient(t, ts.URL, staticTokens{})
	_, err := c.Login(context.Background(), domain.Credentials{})
	assert.ErrorIs(t, err, domain.ErrAuth)
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name string
		code int
		want error
	}{
		{"session expired", http.StatusUnauthorized, domain.ErrSessionExpired},
		{"permission denied", http.StatusForbidden, domain.ErrPermissionDenied},
		{"lost race", http.StatusBadRequest, domain.ErrInvalidTransition},
		{"conflict", http.StatusConflict, domain.ErrInvalidTransition},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.code)
				json.NewEncoder(w).Encode(map[string]string{"error": "invalid status"})
			}))
			defer ts.Close()

			c := newTestClient(t, ts.URL, staticTokens{header: "Bearer abc", ok: true})
			err := c.Transition(context.Background(), 1, domain.ActionHRApprove, "")
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestRetriesTransientServerErrors(t *testing.T) {
	attempts := int32(0)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode([]domain.LeaveApplication{{ID: 1, Status: domain.StatusPending}})
	}))
	defer ts.Close()

	c := newTestClient(t, ts.URL, staticTokens{header: "Bearer abc", ok: true})
	apps, err := c.ListApplications(context.Background(), ListQuery{Status: "pending"})
	require.NoError(t, err)
	assert.Len(t, apps, 1)
	assert.Equal(t, int32(2), atomic.LoadInt32(&attempts))
}

func TestClientErrorsAreNotRetried(t *testing.T) {
	attempts := int32(0)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer ts.Close()

	c := newTestClient(t, ts.URL, staticTokens{header: "Bearer abc", ok: true})
	err := c.Transition(context.Background(), 1, domain.ActionHRApprove, "")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts), "4xx is a final answer, not a transient failure")
}

func TestTransitionRequestShape(t *testing.T) {
	var gotPath string
	var gotBody map[string]string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	c := newTestClient(t, ts.URL, staticTokens{header: "Bearer abc", ok: true})
	require.NoError(t, c.Transition(context.Background(), 15, domain.ActionForwardToDean, "looks fine"))

	assert.Equal(t, "/api/faculty/leave/applications/15/forward_to_dean/", gotPath)
	assert.Equal(t, "looks fine", gotBody["remarks"])
}

func TestDecideEventRequestShape(t *testing.T) {
	var gotMethod, gotPath string
	var gotBody map[string]string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	c := newTestClient(t, ts.URL, staticTokens{header: "Bearer abc", ok: true})
	require.NoError(t, c.DecideEvent(context.Background(), 3, domain.EventApproved))

	assert.Equal(t, http.MethodPatch, gotMethod)
	assert.Equal(t, "/api/facultyservices/vc/events/3/approve/", gotPath)
	assert.Equal(t, "Approved", gotBody["vcapproval_status"])
}

func TestListQueryEncoding(t *testing.T) {
	var gotQuery string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		json.NewEncoder(w).Encode([]domain.LeaveApplication{})
	}))
	defer ts.Close()

	c := newTestClient(t, ts.URL, staticTokens{header: "Bearer abc", ok: true})

	_, err := c.ListApplications(context.Background(), ListQuery{Status: "pending,forwarded_to_hr"})
	require.NoError(t, err)
	assert.Equal(t, "status=pending%2Cforwarded_to_hr", gotQuery)

	_, err = c.ListApplications(context.Background(), ListQuery{DeanApprovals: true})
	require.NoError(t, err)
	assert.Equal(t, "dean_approvals=true", gotQuery)
}
