package accounts

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"github.com/warden-auth/warden/internal/credential"
	"github.com/warden-auth/warden/internal/session"
	"github.com/warden-auth/warden/internal/shared"
)

// Service wraps account lifecycle business rules: registration, login,
// profile maintenance, and deactivation.
type Service struct {
	repo     Repository
	hasher   *credential.Hasher
	sessions *session.Service
	audit    *shared.AuditLogger
	folder   cases.Caser
	now      func() time.Time
}

// NewService constructs a Service. audit may be nil.
func NewService(repo Repository, hasher *credential.Hasher, sessions *session.Service, audit *shared.AuditLogger) *Service {
	return &Service{
		repo:     repo,
		hasher:   hasher,
		sessions: sessions,
		audit:    audit,
		folder:   cases.Fold(),
		now:      time.Now,
	}
}

// RegisterInput carries the fields accepted at registration.
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	RoleID    int64
}

// Register creates a new account. The email is case-folded before uniqueness
// applies; a taken email fails with ErrDuplicateEmail, an unknown role with
// ErrInvalidRole. The plaintext password is hashed before anything persists.
func (s *Service) Register(ctx context.Context, input RegisterInput) (User, error) {
	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return User{}, err
	}
	user := User{
		Email:        s.normalizeEmail(input.Email),
		FirstName:    strings.TrimSpace(input.FirstName),
		LastName:     strings.TrimSpace(input.LastName),
		PasswordHash: hash,
	}
	created, err := s.repo.CreateUser(ctx, user, input.RoleID)
	if err != nil {
		return User{}, err
	}
	_ = s.audit.Record(ctx, shared.AuditEntry{
		ActorID: created.ID, Action: shared.AuditRegister, Entity: "user",
		EntityID: strconv.FormatInt(created.ID, 10),
	})
	return created, nil
}

// Login validates credentials and issues a session. Unknown email and wrong
// password produce the identical ErrInvalidCredentials; the inactive check
// runs only after the password verified so the error order leaks nothing to
// callers without the secret.
func (s *Service) Login(ctx context.Context, email, password, ip, ua string) (session.Session, User, error) {
	user, err := s.repo.FindByEmail(ctx, s.normalizeEmail(email))
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return session.Session{}, User{}, shared.ErrInvalidCredentials
		}
		return session.Session{}, User{}, err
	}
	if !s.hasher.Verify(user.PasswordHash, password) {
		return session.Session{}, User{}, shared.ErrInvalidCredentials
	}
	if !user.IsActive {
		return session.Session{}, User{}, shared.ErrInactiveAccount
	}
	// The session is the credential, so it is written first; last_login is
	// only stamped for logins that actually produced one. If the stamp fails
	// the fresh session is revoked so a failed login leaves nothing usable.
	sess, err := s.sessions.Create(ctx, user.ID, ip, ua)
	if err != nil {
		return session.Session{}, User{}, err
	}
	now := s.now().UTC()
	if err := s.repo.RecordLogin(ctx, user.ID, now); err != nil {
		_ = s.sessions.Invalidate(ctx, sess.Token)
		return session.Session{}, User{}, err
	}
	user.LastLogin = &now
	_ = s.audit.Record(ctx, shared.AuditEntry{
		ActorID: user.ID, Action: shared.AuditLogin, Entity: "session", EntityID: sess.ID,
	})
	return sess, user, nil
}

// Logout invalidates the actor's current session. Logging out twice is a
// no-op success.
func (s *Service) Logout(ctx context.Context, actor shared.Actor) error {
	if err := s.sessions.Invalidate(ctx, actor.Token); err != nil {
		return err
	}
	_ = s.audit.Record(ctx, shared.AuditEntry{
		ActorID: actor.UserID, Action: shared.AuditLogout, Entity: "session", EntityID: actor.SessionID,
	})
	return nil
}

// UpdateProfileInput carries optional profile changes. Nil name pointers keep
// the current value; a non-empty Password requires a matching confirmation.
type UpdateProfileInput struct {
	FirstName       *string
	LastName        *string
	Password        string
	PasswordConfirm string
}

// UpdateProfile applies name and password changes to the account.
func (s *Service) UpdateProfile(ctx context.Context, userID int64, input UpdateProfileInput) (User, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return User{}, err
	}
	if input.FirstName != nil {
		user.FirstName = strings.TrimSpace(*input.FirstName)
	}
	if input.LastName != nil {
		user.LastName = strings.TrimSpace(*input.LastName)
	}
	if input.Password != "" {
		if input.Password != input.PasswordConfirm {
			return User{}, shared.ErrPasswordMismatch
		}
		hash, err := s.hasher.Hash(input.Password)
		if err != nil {
			return User{}, err
		}
		user.PasswordHash = hash
	}
	return s.repo.UpdateProfile(ctx, user)
}

// Deactivate disables the account and expires every live session it holds, so
// no usable credential survives the operation.
func (s *Service) Deactivate(ctx context.Context, userID int64) error {
	if err := s.repo.SetActive(ctx, userID, false); err != nil {
		return err
	}
	if err := s.sessions.InvalidateAllForUser(ctx, userID); err != nil {
		return err
	}
	_ = s.audit.Record(ctx, shared.AuditEntry{
		ActorID: userID, Action: shared.AuditDeactivate, Entity: "user",
		EntityID: strconv.FormatInt(userID, 10),
	})
	return nil
}

// FindByID fetches an account by ID.
func (s *Service) FindByID(ctx context.Context, id int64) (User, error) {
	return s.repo.FindByID(ctx, id)
}

// FindActor satisfies the session guard's actor lookup.
func (s *Service) FindActor(ctx context.Context, userID int64) (shared.Actor, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return shared.Actor{}, err
	}
	return shared.Actor{UserID: user.ID, Email: user.Email, IsActive: user.IsActive}, nil
}

// normalizeEmail trims and Unicode case-folds the address so uniqueness and
// lookups agree regardless of input casing.
func (s *Service) normalizeEmail(email string) string {
	return s.folder.String(strings.TrimSpace(email))
}
