package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/delinked/delinked/core"
)

// ErrFlowBusy is returned when Login is called while another Login is
// already in flight.
var ErrFlowBusy = errors.New("login already in progress")

// ErrRoleRequired is returned when a first-time login needs a role but no
// selector was configured, or the selector returned nothing.
var ErrRoleRequired = errors.New("role selection required for new user")

// RoleSelector is invoked during a first-time login to ask which side of the
// platform the user joins. It may block on user input; cancelling ctx aborts
// the login.
type RoleSelector func(ctx context.Context) (core.Role, error)

// State is the flow's view of the current session.
type State struct {
	Authenticated bool
	Address       string
	User          *UserInfo
	Token         string
}

// Flow drives the wallet login sequence: connect, probe newness, select a
// role when new, fetch the nonce, sign the challenge, authenticate and
// persist the token. Any failure before the token is persisted leaves the
// previous state untouched.
type Flow struct {
	api        *Client
	wallet     Wallet
	tokens     TokenStore
	selectRole RoleSelector
	logger     *slog.Logger

	mu    sync.Mutex
	busy  bool
	state State
}

// NewFlow assembles a Flow. selectRole may be nil when only returning users
// are expected. logger may be nil.
func NewFlow(api *Client, wallet Wallet, tokens TokenStore, selectRole RoleSelector, logger *slog.Logger) *Flow {
	if logger == nil {
		logger = slog.Default()
	}
	return &Flow{
		api:        api,
		wallet:     wallet,
		tokens:     tokens,
		selectRole: selectRole,
		logger:     logger.With("component", "client.flow"),
	}
}

// State returns a snapshot of the session state.
func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Login runs the full challenge-response sequence. On success the token is
// persisted and the returned state reflects the new session. A concurrent
// Login returns ErrFlowBusy.
func (f *Flow) Login(ctx context.Context) (State, error) {
	f.mu.Lock()
	if f.busy {
		f.mu.Unlock()
		return State{}, ErrFlowBusy
	}
	f.busy = true
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.busy = false
		f.mu.Unlock()
	}()

	state, err := f.login(ctx)
	if err != nil {
		return f.State(), err
	}

	f.mu.Lock()
	f.state = state
	f.mu.Unlock()
	return state, nil
}

func (f *Flow) login(ctx context.Context) (State, error) {
	address, err := f.wallet.Connect(ctx)
	if err != nil {
		return State{}, fmt.Errorf("wallet connect failed: %w", err)
	}
	address = core.NormalizeAddress(address)

	challenge, err := f.api.Nonce(ctx, address)
	if err != nil {
		return State{}, fmt.Errorf("failed to fetch nonce: %w", err)
	}

	var role core.Role
	if challenge.IsNewUser {
		if f.selectRole == nil {
			return State{}, ErrRoleRequired
		}
		role, err = f.selectRole(ctx)
		if err != nil {
			return State{}, fmt.Errorf("role selection failed: %w", err)
		}
		if role == "" {
			return State{}, ErrRoleRequired
		}
	}

	signature, err := f.wallet.SignMessage(ctx, address, core.ChallengeMessage(challenge.Nonce))
	if err != nil {
		return State{}, fmt.Errorf("signing rejected: %w", err)
	}

	resp, err := f.api.Authenticate(ctx, AuthenticateRequest{
		Address:   address,
		Signature: signature,
		Nonce:     challenge.Nonce,
		Role:      string(role),
	})
	if err != nil {
		return State{}, fmt.Errorf("authentication failed: %w", err)
	}

	if err := f.tokens.Save(resp.Token); err != nil {
		return State{}, fmt.Errorf("failed to persist token: %w", err)
	}

	f.logger.Info("logged in", "address", resp.User.Address, "role", resp.User.Role, "new_user", resp.IsNewUser)
	user := resp.User
	return State{
		Authenticated: true,
		Address:       user.Address,
		User:          &user,
		Token:         resp.Token,
	}, nil
}

// Logout discards the persisted token and resets the session state.
func (f *Flow) Logout() error {
	if err := f.tokens.Clear(); err != nil {
		return fmt.Errorf("failed to clear token: %w", err)
	}
	f.mu.Lock()
	f.state = State{}
	f.mu.Unlock()
	f.logger.Info("logged out")
	return nil
}

// Restore loads a previously persisted token and validates it against the
// server, rebuilding the session state. An invalid or expired token is
// cleared and leaves the flow logged out.
func (f *Flow) Restore(ctx context.Context) (State, error) {
	token, err := f.tokens.Load()
	if err != nil {
		return State{}, fmt.Errorf("failed to load token: %w", err)
	}
	if token == "" {
		return State{}, nil
	}

	user, err := f.api.Me(ctx)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status == 401 {
			_ = f.tokens.Clear()
			return State{}, nil
		}
		return State{}, err
	}

	state := State{
		Authenticated: true,
		Address:       user.Address,
		User:          user,
		Token:         token,
	}
	f.mu.Lock()
	f.state = state
	f.mu.Unlock()
	return state, nil
}

// Watch consumes wallet events until ctx is done or the event channel
// closes. An account or chain switch, or a disconnect, forces an immediate
// logout; the session bound to the old account must not survive the switch.
func (f *Flow) Watch(ctx context.Context) {
	events := f.wallet.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			switch ev.Kind {
			case EventAccountsChanged, EventChainChanged, EventDisconnected:
				f.logger.Info("wallet event forces logout", "kind", string(ev.Kind))
				if err := f.Logout(); err != nil {
					f.logger.Error("forced logout failed", "error", err)
				}
			}
		}
	}
}
