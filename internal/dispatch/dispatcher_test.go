package dispatch

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xela07ax/prabandh-gateway/internal/audit"
	"github.com/xela07ax/prabandh-gateway/internal/domain"
	"github.com/xela07ax/prabandh-gateway/internal/infra"
)

type fakeAPI struct {
	transitionErr error
	decideErr     error

	transitions []domain.Action
	decisions   []domain.EventStatus
}

func (a *fakeAPI) Transition(_ context.Context, _ int64, action domain.Action, _ string) error {
	a.transitions = append(a.transitions, action)
	return a.transitionErr
}

func (a *fakeAPI) DecideEvent(_ context.Context, _ int64, decision domain.EventStatus) error {
	a.decisions = append(a.decisions, decision)
	return a.decideErr
}

type fixedIdentity struct {
	identity domain.Identity
	ok       bool
}

func (f fixedIdentity) Identity() (domain.Identity, bool) { return f.identity, f.ok }

type captureRecorder struct {
	mu        sync.Mutex
	decisions []audit.Decision
}

func (r *captureRecorder) Record(d audit.Decision) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decisions = append(r.decisions, d)
}

func (r *captureRecorder) last(t *testing.T) audit.Decision {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	require.NotEmpty(t, r.decisions)
	return r.decisions[len(r.decisions)-1]
}

func newDispatcher(api *fakeAPI, role domain.Role, trail audit.Recorder) *Dispatcher {
	if trail == nil {
		trail = audit.NopRecorder{}
	}
	ident := fixedIdentity{identity: domain.Identity{ActorID: "op-1", Role: role}, ok: true}
	return NewDispatcher(api, ident, trail, infra.NewMetrics(nil), zap.NewNop())
}

func TestApplyLeaveActionSuccess(t *testing.T) {
	api := &fakeAPI{}
	trail := &captureRecorder{}
	d := newDispatcher(api, domain.RoleHR, trail)

	refreshed := ""
	d.Refresh = func(view string) { refreshed = view }

	app := domain.LeaveApplication{ID: 10, Status: domain.StatusPending}
	err := d.ApplyLeaveAction(context.Background(), app, domain.ActionHRApprove, "ok")
	require.NoError(t, err)

	assert.Equal(t, []domain.Action{domain.ActionHRApprove}, api.transitions)
	assert.Equal(t, ViewLeave, refreshed, "applied action must trigger a loud refresh")

	dec := trail.last(t)
	assert.Equal(t, audit.OutcomeApplied, dec.Outcome)
	assert.Equal(t, domain.StatusPending, dec.FromStatus)
	assert.Equal(t, domain.StatusApproved, dec.ToStatus)
}

func TestApplyLeaveActionGateRejectsWithoutNetwork(t *testing.T) {
	api := &fakeAPI{}
	trail := &captureRecorder{}
	// Декан не может hr_approve
	d := newDispatcher(api, domain.RoleDean, trail)

	refreshed := false
	d.Refresh = func(string) { refreshed = true }

	app := domain.LeaveApplication{ID: 10, Status: domain.StatusPending}
	err := d.ApplyLeaveAction(context.Background(), app, domain.ActionHRApprove, "")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	assert.Empty(t, api.transitions, "illegal action must never reach the wire")
	assert.False(t, refreshed)
	assert.Equal(t, audit.OutcomeGateRejected, trail.last(t).Outcome)
}

func TestApplyLeaveActionStaleSnapshotServerDecides(t *testing.T) {
	// Снимок еще pending, но сервер уже провел переход: gate пропускает,
	// сервер отвечает отказом, и именно его слово финально.
	api := &fakeAPI{transitionErr: domain.ErrInvalidTransition}
	trail := &captureRecorder{}
	d := newDispatcher(api, domain.RoleHR, trail)

	refreshed := false
	d.Refresh = func(string) { refreshed = true }

	app := domain.LeaveApplication{ID: 10, Status: domain.StatusPending}
	err := d.ApplyLeaveAction(context.Background(), app, domain.ActionHRApprove, "")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	assert.Len(t, api.transitions, 1)
	assert.False(t, refreshed, "failed action must not refresh the snapshot")
	assert.Equal(t, audit.OutcomeUpstreamError, trail.last(t).Outcome)
}

func TestApplyLeaveActionSessionExpired(t *testing.T) {
	api := &fakeAPI{transitionErr: domain.ErrSessionExpired}
	d := newDispatcher(api, domain.RoleHR, nil)

	authFailed := false
	d.OnAuthFailure = func(context.Context) { authFailed = true }

	app := domain.LeaveApplication{ID: 10, Status: domain.StatusPending}
	err := d.ApplyLeaveAction(context.Background(), app, domain.ActionHRApprove, "")
	assert.ErrorIs(t, err, domain.ErrSessionExpired)
	assert.True(t, authFailed)
}

func TestApplyLeaveActionUnauthenticated(t *testing.T) {
	api := &fakeAPI{}
	d := NewDispatcher(api, fixedIdentity{}, audit.NopRecorder{}, infra.NewMetrics(nil), zap.NewNop())

	app := domain.LeaveApplication{ID: 10, Status: domain.StatusPending}
	err := d.ApplyLeaveAction(context.Background(), app, domain.ActionHRApprove, "")
	assert.ErrorIs(t, err, domain.ErrNotAuthenticated)
	assert.Empty(t, api.transitions)
}

func TestApplyEventDecision(t *testing.T) {
	api := &fakeAPI{}
	trail := &captureRecorder{}
	d := newDispatcher(api, domain.RoleVC, trail)

	refreshed := ""
	d.Refresh = func(view string) { refreshed = view }

	// Пустой статус нормализуется в Pending
	ev := domain.Event{ID: 5}
	err := d.ApplyEventDecision(context.Background(), ev, domain.EventApproved)
	require.NoError(t, err)

	assert.Equal(t, []domain.EventStatus{domain.EventApproved}, api.decisions)
	assert.Equal(t, ViewEvent, refreshed)
	assert.Equal(t, audit.OutcomeApplied, trail.last(t).Outcome)
}

func TestApplyEventDecisionTerminalRejected(t *testing.T) {
	api := &fakeAPI{}
	d := newDispatcher(api, domain.RoleVC, nil)

	ev := domain.Event{ID: 5, ApprovalStatus: domain.EventApproved}
	err := d.ApplyEventDecision(context.Background(), ev, domain.EventRejected)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.Empty(t, api.decisions)
}

func TestApplyEventDecisionWrongRole(t *testing.T) {
	api := &fakeAPI{}
	d := newDispatcher(api, domain.RoleHR, nil)

	ev := domain.Event{ID: 5}
	err := d.ApplyEventDecision(context.Background(), ev, domain.EventApproved)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.Empty(t, api.decisions)
}
