package stepAuth

import (
	"context"
	"time"

	"github.com/MrEthical07/stepAuth/internal/limiters"
	"github.com/MrEthical07/stepAuth/internal/rate"
	"github.com/MrEthical07/stepAuth/internal/stores"
)

// Role is an account's authorization role. RoleAdmin is the only privileged role.
type Role string

const (
	RoleUser     Role = "user"
	RoleEmployer Role = "employer"
	RoleAdmin    Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleEmployer, RoleAdmin:
		return true
	default:
		return false
	}
}

// Privileged reports whether r must pass step-up before privileged access.
func (r Role) Privileged() bool { return r == RoleAdmin }

// Account is the stored account record.
//
// PasswordHash may be empty for externally provisioned accounts; such
// accounts can never log in with a password. SessionVersion only grows.
type Account struct {
	ID              string
	Email           string
	PasswordHash    string
	Name            string
	Role            Role
	Suspended       bool
	EmailVerifiedAt *time.Time
	SessionVersion  int64
	CreatedAt       time.Time
}

// NewAccount is the input to AccountStore.CreateAccount.
type NewAccount struct {
	Email        string
	PasswordHash string
	Name         string
	Role         Role
}

// AccountStore persists accounts. Implementations return ErrNotFound for a
// missing account and ErrAccountExists for a duplicate email. Emails are
// passed already normalized to lower case.
type AccountStore interface {
	GetAccountByEmail(ctx context.Context, email string) (Account, error)
	GetAccountByID(ctx context.Context, id string) (Account, error)
	CreateAccount(ctx context.Context, in NewAccount) (Account, error)
	UpdatePasswordHash(ctx context.Context, id, hash string) (Account, error)
	MarkEmailVerified(ctx context.Context, id string, at time.Time) (Account, error)
	SetRole(ctx context.Context, id string, role Role) (Account, error)
	SetSuspended(ctx context.Context, id string, suspended bool) (Account, error)
	IncrementSessionVersion(ctx context.Context, id string) (Account, error)
}

type (
	VerificationToken = stores.VerificationToken
	OneTimeCode       = stores.OneTimeCode
	TokenPurpose      = stores.Purpose
)

const (
	PurposeEmailVerification = stores.PurposeEmailVerification
	PurposePasswordReset     = stores.PurposePasswordReset
	PurposePasswordChange    = stores.PurposePasswordChange
)

// TokenStore persists verification tokens and one-time codes.
//
// SaveVerificationToken replaces any live token for the same (email, purpose).
// SaveOneTimeCode upserts by email. Getters return ErrNotFound when absent and
// must return expired records that have not been deleted yet. The Delete
// methods report whether this call removed the record; exactly one concurrent
// caller may observe true. DeleteOneTimeCode removes the code only when it
// still equals code.
type TokenStore interface {
	SaveVerificationToken(ctx context.Context, t VerificationToken) error
	GetVerificationToken(ctx context.Context, value string) (VerificationToken, error)
	DeleteVerificationToken(ctx context.Context, value string) (bool, error)
	SaveOneTimeCode(ctx context.Context, c OneTimeCode) error
	GetOneTimeCode(ctx context.Context, email string) (OneTimeCode, error)
	DeleteOneTimeCode(ctx context.Context, email, code string) (bool, error)
}

// NewMemoryTokenStore returns a process-local TokenStore. It does not share
// state across instances; use the Redis or Postgres store for that.
func NewMemoryTokenStore() TokenStore {
	return stores.NewMemoryTokenStore()
}

// RateLimitStore counts hits in fixed windows. Incr must be atomic per key.
type RateLimitStore = rate.WindowStore

// AllowResult is the outcome of Engine.Allow.
type AllowResult = rate.Result

// RateLimitAction names a throttled operation.
type RateLimitAction = limiters.Action

const (
	ActionLogin              = limiters.ActionLogin
	ActionLoginAccount       = limiters.ActionLoginAccount
	ActionSignup             = limiters.ActionSignup
	ActionCodeResend         = limiters.ActionCodeResend
	ActionCodeVerify         = limiters.ActionCodeVerify
	ActionVerificationResend = limiters.ActionVerificationResend
	ActionPasswordReset      = limiters.ActionPasswordReset
)

// Channel is the credential channel an identity was resolved from.
type Channel string

const (
	ChannelBrowser Channel = "browser"
	ChannelMobile  Channel = "mobile"
)

// StepUpState is the position of an identity in the step-up state machine.
type StepUpState uint8

const (
	// StepUpNotRequired is terminal for non-privileged roles.
	StepUpNotRequired StepUpState = iota
	StepUpPending
	StepUpVerified
)

func (s StepUpState) String() string {
	switch s {
	case StepUpNotRequired:
		return "not_required"
	case StepUpPending:
		return "pending"
	case StepUpVerified:
		return "verified"
	default:
		return "unknown"
	}
}

func stepUpState(role Role, completed bool) StepUpState {
	if !role.Privileged() {
		return StepUpNotRequired
	}
	if completed {
		return StepUpVerified
	}
	return StepUpPending
}

// Identity is the canonical caller produced by Engine.Resolve. Role and
// suspension come from the account store at resolve time, not from the
// credential.
type Identity struct {
	AccountID      string
	Email          string
	Name           string
	Role           Role
	Channel        Channel
	StepUp         StepUpState
	SessionVersion int64
	ExpiresAt      time.Time
}

func (i *Identity) IsAdmin() bool {
	return i != nil && i.Role.Privileged()
}

// HomePath returns the landing path for the identity's role.
func (i *Identity) HomePath(routes RoutesConfig) string {
	if i.IsAdmin() {
		return routes.AdminHome
	}
	return routes.UserHome
}

// Credential is a freshly minted browser session token or mobile bearer token.
type Credential struct {
	Channel   Channel
	Token     string
	ExpiresAt time.Time
}

// LoginResult is returned by LoginBrowser and LoginMobile.
type LoginResult struct {
	Account    Account
	Identity   Identity
	Credential Credential
	// CodeSent is true when a step-up code was issued as part of the login.
	CodeSent bool
}

// SignupRequest is the input to Engine.Signup. Role defaults to RoleUser.
type SignupRequest struct {
	Email    string
	Password string
	Name     string
	Role     Role
}
