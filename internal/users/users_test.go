package users

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/feniix/family-gallery-sub002/internal/catalog"
	"github.com/feniix/family-gallery-sub002/internal/store"
)

func newTestUserStore(t *testing.T) *Store {
	t.Helper()
	docs, err := store.NewDocStore(t.TempDir(), zap.NewNop().Sugar())
	if err != nil {
		t.Fatalf("NewDocStore: %v", err)
	}
	return NewStore(docs, zap.NewNop().Sugar()).
		WithRetryConfig(store.RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond})
}

func TestRoleCanView(t *testing.T) {
	cases := []struct {
		role Role
		vis  catalog.Visibility
		want bool
	}{
		{RoleGuest, catalog.VisibilityPublic, true},
		{RoleGuest, catalog.VisibilityExtended, false},
		{RoleGuest, catalog.VisibilityFamily, false},
		{RoleGuest, catalog.VisibilityPrivate, false},
		{RoleMember, catalog.VisibilityPublic, true},
		{RoleMember, catalog.VisibilityExtended, true},
		{RoleMember, catalog.VisibilityFamily, false},
		{RoleMember, catalog.VisibilityPrivate, false},
		{RoleFamily, catalog.VisibilityPublic, true},
		{RoleFamily, catalog.VisibilityExtended, true},
		{RoleFamily, catalog.VisibilityFamily, true},
		{RoleFamily, catalog.VisibilityPrivate, false},
		{RoleAdmin, catalog.VisibilityPublic, true},
		{RoleAdmin, catalog.VisibilityExtended, true},
		{RoleAdmin, catalog.VisibilityFamily, true},
		{RoleAdmin, catalog.VisibilityPrivate, true},
	}
	for _, tc := range cases {
		if got := tc.role.CanView(tc.vis); got != tc.want {
			t.Errorf("%s.CanView(%s) = %v, want %v", tc.role, tc.vis, got, tc.want)
		}
	}
}

func TestUserStore(t *testing.T) {
	ctx := context.Background()

	t.Run("first sight creates a pending guest", func(t *testing.T) {
		s := newTestUserStore(t)

		u, err := s.EnsureUser(ctx, "uid-1", "ann@example.com", "Ann")
		if err != nil {
			t.Fatalf("EnsureUser: %v", err)
		}
		if u.Status != StatusPending || u.Role != RoleGuest {
			t.Errorf("Expected pending guest, got %s %s", u.Status, u.Role)
		}
		if u.CreatedAt.IsZero() {
			t.Error("Expected CreatedAt to be set")
		}
	})

	t.Run("ensure is idempotent per identity", func(t *testing.T) {
		s := newTestUserStore(t)

		if _, err := s.EnsureUser(ctx, "uid-1", "ann@example.com", "Ann"); err != nil {
			t.Fatalf("EnsureUser: %v", err)
		}
		if _, err := s.EnsureUser(ctx, "uid-1", "ann@new.example.com", ""); err != nil {
			t.Fatalf("EnsureUser again: %v", err)
		}
		all, err := s.List(ctx)
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if len(all) != 1 {
			t.Fatalf("Expected 1 user, got %d", len(all))
		}
		if all[0].Email != "ann@new.example.com" {
			t.Errorf("Expected refreshed email, got %s", all[0].Email)
		}
	})

	t.Run("approve promotes guest to member with audit fields", func(t *testing.T) {
		s := newTestUserStore(t)
		if _, err := s.EnsureUser(ctx, "uid-1", "ann@example.com", "Ann"); err != nil {
			t.Fatalf("EnsureUser: %v", err)
		}

		u, err := s.Approve(ctx, "uid-1", "admin-1")
		if err != nil {
			t.Fatalf("Approve: %v", err)
		}
		if u.Status != StatusApproved || u.Role != RoleMember {
			t.Errorf("Expected approved member, got %s %s", u.Status, u.Role)
		}
		if u.ApprovedBy != "admin-1" || u.ApprovedAt == nil {
			t.Errorf("Expected audit fields, got %q %v", u.ApprovedBy, u.ApprovedAt)
		}
	})

	t.Run("suspend keeps the record", func(t *testing.T) {
		s := newTestUserStore(t)
		if _, err := s.EnsureUser(ctx, "uid-1", "ann@example.com", "Ann"); err != nil {
			t.Fatalf("EnsureUser: %v", err)
		}

		u, err := s.Suspend(ctx, "uid-1")
		if err != nil {
			t.Fatalf("Suspend: %v", err)
		}
		if u.Status != StatusSuspended {
			t.Errorf("Expected suspended, got %s", u.Status)
		}
		if _, err := s.Get(ctx, "uid-1"); err != nil {
			t.Errorf("Expected suspended record to remain readable: %v", err)
		}
	})

	t.Run("mutations on unknown users report not found", func(t *testing.T) {
		s := newTestUserStore(t)

		if _, err := s.Approve(ctx, "ghost", "admin-1"); !errors.Is(err, ErrUserNotFound) {
			t.Errorf("Approve: expected ErrUserNotFound, got %v", err)
		}
		if _, err := s.SetRole(ctx, "ghost", RoleFamily); !errors.Is(err, ErrUserNotFound) {
			t.Errorf("SetRole: expected ErrUserNotFound, got %v", err)
		}
	})

	t.Run("cleanup keeps the earliest record per email", func(t *testing.T) {
		s := newTestUserStore(t)
		base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

		i := 0
		s.now = func() time.Time {
			i++
			return base.Add(time.Duration(i) * time.Hour)
		}

		for _, id := range []string{"uid-1", "uid-2", "uid-3"} {
			if _, err := s.EnsureUser(ctx, id, "same@example.com", ""); err != nil {
				t.Fatalf("EnsureUser %s: %v", id, err)
			}
		}

		removed, err := s.CleanupDuplicateEmails(ctx)
		if err != nil {
			t.Fatalf("CleanupDuplicateEmails: %v", err)
		}
		if removed != 2 {
			t.Errorf("Expected 2 removed, got %d", removed)
		}
		all, err := s.List(ctx)
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if len(all) != 1 || all[0].ID != "uid-1" {
			t.Errorf("Expected earliest record uid-1 to survive, got %v", all)
		}
	})
}
