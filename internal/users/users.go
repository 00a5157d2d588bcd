package users

import (
	"context"
	"errors"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/feniix/family-gallery-sub002/internal/catalog"
	"github.com/feniix/family-gallery-sub002/internal/store"
)

var ErrUserNotFound = errors.New("user not found")

// Role is the permission level of an account, lowest to highest
// privilege: guest < member < family < admin.
type Role string

const (
	RoleGuest  Role = "guest"
	RoleMember Role = "member"
	RoleFamily Role = "family"
	RoleAdmin  Role = "admin"
)

var roleRank = map[Role]int{
	RoleGuest:  0,
	RoleMember: 1,
	RoleFamily: 2,
	RoleAdmin:  3,
}

func (r Role) Valid() bool {
	_, ok := roleRank[r]
	return ok
}

func (r Role) AtLeast(other Role) bool {
	return roleRank[r] >= roleRank[other]
}

// CanView maps the role ladder onto record visibility. Private records
// are admin-only here; ownership grants are checked by the caller.
func (r Role) CanView(v catalog.Visibility) bool {
	switch v {
	case catalog.VisibilityPublic:
		return true
	case catalog.VisibilityExtended:
		return r.AtLeast(RoleMember)
	case catalog.VisibilityFamily:
		return r.AtLeast(RoleFamily)
	case catalog.VisibilityPrivate:
		return r.AtLeast(RoleAdmin)
	}
	return false
}

// Status is the approval state of an account. Suspension is preferred
// over deletion for audit continuity.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusSuspended Status = "suspended"
)

// User is one account, keyed by the identity-provider-issued ID. At
// most one record exists per ID; email uniqueness is eventual, enforced
// by CleanupDuplicateEmails rather than a write-time check.
type User struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	DisplayName string     `json:"display_name,omitempty"`
	Role        Role       `json:"role"`
	Status      Status     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	ApprovedBy  string     `json:"approved_by,omitempty"`
	ApprovedAt  *time.Time `json:"approved_at,omitempty"`
}

// Store keeps every account in the single "users" document.
type Store struct {
	col *store.Collection[[]User]
	log *zap.SugaredLogger
	now func() time.Time
}

const usersDoc = "users"

func NewStore(docs *store.DocStore, log *zap.SugaredLogger) *Store {
	return &Store{
		col: store.NewCollection[[]User](docs, usersDoc),
		log: log,
		now: time.Now,
	}
}

// WithRetryConfig overrides the retry policy for user mutations.
func (s *Store) WithRetryConfig(cfg store.RetryConfig) *Store {
	s.col.WithRetryConfig(cfg)
	return s
}

// EnsureUser returns the account for the given identity, creating a
// pending guest account on first sight. Existing accounts pick up a
// changed email from the provider.
func (s *Store) EnsureUser(ctx context.Context, id, email, displayName string) (User, error) {
	var out User
	_, err := s.col.Update(ctx, func(all []User) []User {
		for i := range all {
			if all[i].ID == id {
				if email != "" {
					all[i].Email = email
				}
				if displayName != "" && all[i].DisplayName == "" {
					all[i].DisplayName = displayName
				}
				out = all[i]
				return all
			}
		}
		out = User{
			ID:          id,
			Email:       email,
			DisplayName: displayName,
			Role:        RoleGuest,
			Status:      StatusPending,
			CreatedAt:   s.now().UTC(),
		}
		return append(all, out)
	})
	return out, err
}

func (s *Store) Get(ctx context.Context, id string) (User, error) {
	all, err := s.col.Read(ctx)
	if err != nil {
		return User{}, err
	}
	for _, u := range all {
		if u.ID == id {
			return u, nil
		}
	}
	return User{}, ErrUserNotFound
}

// List returns all accounts, oldest first.
func (s *Store) List(ctx context.Context) ([]User, error) {
	all, err := s.col.Read(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].CreatedAt.Before(all[j].CreatedAt)
	})
	return all, nil
}

func (s *Store) mutateUser(ctx context.Context, id string, mutate func(*User)) (User, error) {
	var out User
	found := false
	_, err := s.col.Update(ctx, func(all []User) []User {
		found = false
		for i := range all {
			if all[i].ID == id {
				mutate(&all[i])
				out = all[i]
				found = true
				break
			}
		}
		return all
	})
	if err != nil {
		return User{}, err
	}
	if !found {
		return User{}, ErrUserNotFound
	}
	return out, nil
}

// Approve activates a pending account. Guests are promoted to member;
// an already-assigned higher role is kept.
func (s *Store) Approve(ctx context.Context, id, approverID string) (User, error) {
	now := s.now().UTC()
	return s.mutateUser(ctx, id, func(u *User) {
		u.Status = StatusApproved
		u.ApprovedBy = approverID
		u.ApprovedAt = &now
		if u.Role == RoleGuest {
			u.Role = RoleMember
		}
	})
}

func (s *Store) Suspend(ctx context.Context, id string) (User, error) {
	return s.mutateUser(ctx, id, func(u *User) {
		u.Status = StatusSuspended
	})
}

func (s *Store) SetRole(ctx context.Context, id string, role Role) (User, error) {
	return s.mutateUser(ctx, id, func(u *User) {
		u.Role = role
	})
}

// CleanupDuplicateEmails merges accounts sharing an email, keeping the
// earliest-created record per address. Reactive enforcement: concurrent
// signups can race to the same email and are cleaned up here, not
// prevented at write time. Returns the number of records removed.
func (s *Store) CleanupDuplicateEmails(ctx context.Context) (int, error) {
	removed := 0
	_, err := s.col.Update(ctx, func(all []User) []User {
		removed = 0
		sort.SliceStable(all, func(i, j int) bool {
			return all[i].CreatedAt.Before(all[j].CreatedAt)
		})
		seen := make(map[string]bool, len(all))
		kept := all[:0]
		for _, u := range all {
			if u.Email != "" && seen[u.Email] {
				removed++
				continue
			}
			if u.Email != "" {
				seen[u.Email] = true
			}
			kept = append(kept, u)
		}
		return kept
	})
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		s.log.Infow("removed duplicate user records", "count", removed)
	}
	return removed, nil
}
