package account

import (
	"context"

	"github.com/pkg/errors"

	"github.com/globalitacademy/yscip/core"
)

type (
	// SessionHandle is the minimal identity a transport layer can hand over,
	// typically decoded from token claims.
	SessionHandle struct {
		AccountID string
		Email     string
		Name      string
		Role      string
	}

	AuthEventKind string

	// AuthEvent is emitted by the session tracker on every state transition.
	AuthEvent struct {
		Kind  AuthEventKind
		State SessionState
	}

	// SessionState is an immutable snapshot of the tracked session.
	SessionState struct {
		Account         *Account
		IsAuthenticated bool
		IsApproved      bool
		Loading         bool
	}

	// Tracker serializes auth state transitions for a single session. All
	// mutations go through Refresh and SignOut; State returns a copy so
	// concurrent readers never observe a partial update.
	Tracker struct {
		svc    Service
		logger core.Logger

		mut    chan func()
		events chan AuthEvent
		state  SessionState
	}
)

const (
	EventSignIn         AuthEventKind = "signed_in"
	EventSignOut        AuthEventKind = "signed_out"
	EventTokenRefresh   AuthEventKind = "token_refreshed"
	EventAccountUpdated AuthEventKind = "account_updated"
)

func NewTracker(svc Service, logger core.Logger) *Tracker {
	return &Tracker{
		svc:    svc,
		logger: logger,
		mut:    make(chan func()),
		events: make(chan AuthEvent, 16),
		state:  SessionState{Loading: true},
	}
}

// Events exposes the transition stream. The channel is buffered; events are
// dropped, not blocked on, when no consumer keeps up.
func (t *Tracker) Events() <-chan AuthEvent { return t.events }

// Run consumes state mutations until ctx is done. Exactly one Run loop must
// be active per Tracker; transitions are applied in the order received.
func (t *Tracker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-t.mut:
			fn()
		}
	}
}

// Refresh resolves the handle against storage and installs the result as the
// current session state. A nil handle clears the session. When the account
// read fails, the session degrades to a minimal account built from the handle
// instead of signing the caller out.
func (t *Tracker) Refresh(ctx context.Context, h *SessionHandle) {
	done := make(chan struct{})
	mut := func() {
		defer close(done)
		if h == nil {
			t.state = SessionState{}
			t.emit(EventSignOut)
			return
		}

		wasAuthed := t.state.IsAuthenticated
		t.state = ResolveState(ctx, t.svc, t.logger, h)
		if wasAuthed {
			t.emit(EventAccountUpdated)
		} else {
			t.emit(EventSignIn)
		}
	}

	select {
	case <-ctx.Done():
	case t.mut <- mut:
		<-done
	}
}

// SignOut clears the session state.
func (t *Tracker) SignOut(ctx context.Context) { t.Refresh(ctx, nil) }

// NotifyTokenRefresh records a token rotation without touching identity.
func (t *Tracker) NotifyTokenRefresh(ctx context.Context) {
	done := make(chan struct{})
	mut := func() {
		defer close(done)
		if t.state.IsAuthenticated {
			t.emit(EventTokenRefresh)
		}
	}
	select {
	case <-ctx.Done():
	case t.mut <- mut:
		<-done
	}
}

// State returns a snapshot of the current session. The account is copied so
// callers cannot mutate tracked state.
func (t *Tracker) State(ctx context.Context) SessionState {
	res := make(chan SessionState, 1)
	mut := func() {
		st := t.state
		if st.Account != nil {
			acct := *st.Account
			st.Account = &acct
		}
		res <- st
	}
	select {
	case <-ctx.Done():
		return SessionState{Loading: true}
	case t.mut <- mut:
		return <-res
	}
}

// Destination resolves the landing route for the current state.
func (t *Tracker) Destination(ctx context.Context) Destination {
	return Route(t.State(ctx))
}

// ResolveState resolves a handle against storage into a session state. When
// the account read fails, the state degrades to a minimal account built from
// the handle instead of signing the caller out.
func ResolveState(ctx context.Context, svc Service, logger core.Logger, h *SessionHandle) SessionState {
	if h == nil {
		return SessionState{}
	}
	acct, err := svc.GetByID(ctx, h.AccountID)
	if err != nil {
		logger.Warn("loading session account, falling back to token identity", err)
		acct = minimalAccount(h)
	}
	return SessionState{
		Account:         &acct,
		IsAuthenticated: true,
		IsApproved:      svc.Approved(acct),
	}
}

// minimalAccount builds a stand-in account from the token identity when the
// stored record cannot be read. The stand-in defaults to an approved student
// so a transient storage fault never locks a session out.
func minimalAccount(h *SessionHandle) Account {
	role := h.Role
	if !ValidRole(role) {
		role = RoleStudent
	}
	return Account{
		ID:                   h.AccountID,
		Name:                 h.Name,
		Email:                h.Email,
		Role:                 role,
		RegistrationApproved: true,
		EmailVerified:        true,
	}
}

func (t *Tracker) emit(kind AuthEventKind) {
	select {
	case t.events <- AuthEvent{Kind: kind, State: t.state}:
	default:
		t.logger.Warn("auth event dropped, no consumer", errors.Errorf("kind=%s", kind))
	}
}
