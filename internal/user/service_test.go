package user

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeRepo struct {
	upsertFn func(context.Context, string, Profile, string, time.Time) (User, bool, error)
	updateFn func(context.Context, string, Profile, time.Time) (User, error)
	deleteFn func(context.Context, string, string, time.Time) (User, error)
	getFn    func(context.Context, string) (User, error)
}

func (f *fakeRepo) Upsert(ctx context.Context, externalID string, profile Profile, newID string, at time.Time) (User, bool, error) {
	if f.upsertFn != nil {
		return f.upsertFn(ctx, externalID, profile, newID, at)
	}
	return User{}, false, errors.New("upsertFn not provided")
}

func (f *fakeRepo) Update(ctx context.Context, externalID string, profile Profile, at time.Time) (User, error) {
	if f.updateFn != nil {
		return f.updateFn(ctx, externalID, profile, at)
	}
	return User{}, errors.New("updateFn not provided")
}

func (f *fakeRepo) Delete(ctx context.Context, externalID string, newID string, at time.Time) (User, error) {
	if f.deleteFn != nil {
		return f.deleteFn(ctx, externalID, newID, at)
	}
	return User{}, errors.New("deleteFn not provided")
}

func (f *fakeRepo) GetByExternalID(ctx context.Context, externalID string) (User, error) {
	if f.getFn != nil {
		return f.getFn(ctx, externalID)
	}
	return User{}, ErrNotFound
}

type linkerFunc func(ctx context.Context, externalID, localID string) error

func (f linkerFunc) LinkUser(ctx context.Context, externalID, localID string) error {
	return f(ctx, externalID, localID)
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type sequenceIDs struct{ ids []string }

func (s *sequenceIDs) NewID() string {
	id := s.ids[0]
	s.ids = s.ids[1:]
	return id
}

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func strPtr(s string) *string { return &s }

func newTestService(t *testing.T, repo Repository, linker Linker, ids ...string) *Service {
	t.Helper()
	if len(ids) == 0 {
		ids = []string{"local-1", "local-2", "local-3"}
	}
	svc, err := NewService(repo, linker, fixedClock{testNow}, &sequenceIDs{ids: ids})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestNewService_RequiresCollaborators(t *testing.T) {
	if _, err := NewService(nil, nil, fixedClock{}, &sequenceIDs{}); err == nil {
		t.Fatal("expected error for nil repo")
	}
	if _, err := NewService(NewMemoryRepository(), nil, nil, &sequenceIDs{}); err == nil {
		t.Fatal("expected error for nil clock")
	}
	if _, err := NewService(NewMemoryRepository(), nil, fixedClock{}, nil); err == nil {
		t.Fatal("expected error for nil id generator")
	}
}

func TestServiceCreate_UpsertsThenLinks(t *testing.T) {
	var linked [2]string
	repo := &fakeRepo{
		upsertFn: func(_ context.Context, externalID string, profile Profile, newID string, at time.Time) (User, bool, error) {
			if externalID != "user_123" || newID != "local-1" || !at.Equal(testNow) {
				t.Fatalf("unexpected upsert args: %s %s %s", externalID, newID, at)
			}
			u := User{ID: newID, ExternalID: externalID}
			profile.apply(&u)
			return u, true, nil
		},
	}
	linker := linkerFunc(func(_ context.Context, externalID, localID string) error {
		linked = [2]string{externalID, localID}
		return nil
	})

	svc := newTestService(t, repo, linker)
	u, err := svc.Create(context.Background(), "user_123", Profile{FirstName: strPtr("Ann")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.ID != "local-1" || u.FirstName == nil || *u.FirstName != "Ann" {
		t.Fatalf("unexpected user: %+v", u)
	}
	if linked != [2]string{"user_123", "local-1"} {
		t.Fatalf("expected write-back of local-1, got %v", linked)
	}
}

func TestServiceCreate_LinkFailureKeepsRecord(t *testing.T) {
	repo := NewMemoryRepository()
	linker := linkerFunc(func(context.Context, string, string) error {
		return errors.New("clerk unavailable")
	})

	svc := newTestService(t, repo, linker)
	u, err := svc.Create(context.Background(), "user_123", Profile{})
	if !errors.Is(err, ErrLinkFailed) {
		t.Fatalf("expected ErrLinkFailed, got %v", err)
	}
	if u.ID != "local-1" {
		t.Fatalf("expected created record to be returned, got %+v", u)
	}

	stored, err := repo.GetByExternalID(context.Background(), "user_123")
	if err != nil || stored.ID != "local-1" {
		t.Fatalf("expected record to survive link failure, got %+v, %v", stored, err)
	}
}

func TestServiceCreate_StoreFailureSkipsLink(t *testing.T) {
	repo := &fakeRepo{
		upsertFn: func(context.Context, string, Profile, string, time.Time) (User, bool, error) {
			return User{}, false, errors.New("store down")
		},
	}
	linker := linkerFunc(func(context.Context, string, string) error {
		t.Fatal("linker must not be called when the store fails")
		return nil
	})

	svc := newTestService(t, repo, linker)
	if _, err := svc.Create(context.Background(), "user_123", Profile{}); err == nil || errors.Is(err, ErrLinkFailed) {
		t.Fatalf("expected store error, got %v", err)
	}
}

func TestServiceCreate_DuplicateDeliveryKeepsOneRecord(t *testing.T) {
	repo := NewMemoryRepository()
	var links []string
	linker := linkerFunc(func(_ context.Context, _ string, localID string) error {
		links = append(links, localID)
		return nil
	})
	svc := newTestService(t, repo, linker)

	first, err := svc.Create(context.Background(), "user_123", Profile{Email: strPtr("ann@example.com")})
	if err != nil {
		t.Fatalf("first create: %v", err)
	}
	second, err := svc.Create(context.Background(), "user_123", Profile{Email: strPtr("ann@example.com")})
	if err != nil {
		t.Fatalf("second create: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected duplicate create to reuse %s, got %s", first.ID, second.ID)
	}
	if len(links) != 2 || links[0] != links[1] {
		t.Fatalf("expected write-back of the same id twice, got %v", links)
	}
}

func TestService_RejectsBlankExternalID(t *testing.T) {
	svc := newTestService(t, NewMemoryRepository(), nil)
	ctx := context.Background()

	if _, err := svc.Create(ctx, "  ", Profile{}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("create: expected ErrInvalidInput, got %v", err)
	}
	if _, err := svc.Update(ctx, "", Profile{}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("update: expected ErrInvalidInput, got %v", err)
	}
	if _, err := svc.Delete(ctx, ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("delete: expected ErrInvalidInput, got %v", err)
	}
}

func TestServiceUpdate_FullReplace(t *testing.T) {
	repo := NewMemoryRepository()
	svc := newTestService(t, repo, nil)
	ctx := context.Background()

	if _, err := svc.Create(ctx, "user_123", Profile{
		FirstName: strPtr("Ann"),
		LastName:  strPtr("Lee"),
		Username:  strPtr("ann"),
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	u, err := svc.Update(ctx, "user_123", Profile{FirstName: strPtr("Anna")})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if u.FirstName == nil || *u.FirstName != "Anna" {
		t.Fatalf("expected first name Anna, got %v", u.FirstName)
	}
	if u.LastName != nil || u.Username != nil {
		t.Fatalf("expected absent fields to be reset to the unknown value, got %+v", u)
	}
}

func TestField(t *testing.T) {
	if Field(nil) != nil {
		t.Fatal("nil should stay nil")
	}
	if Field(strPtr("   ")) != nil {
		t.Fatal("blank should become nil")
	}
	if got := Field(strPtr("  Ann ")); got == nil || *got != "Ann" {
		t.Fatalf("expected trimmed value, got %v", got)
	}
}

func TestServiceDelete_PassesGeneratedIDForTombstone(t *testing.T) {
	var gotID string
	repo := &fakeRepo{
		deleteFn: func(_ context.Context, externalID, newID string, at time.Time) (User, error) {
			gotID = newID
			deletedAt := at
			return User{ID: newID, ExternalID: externalID, DeletedAt: &deletedAt}, nil
		},
	}
	svc := newTestService(t, repo, nil)

	if _, err := svc.Delete(context.Background(), "user_123"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if gotID != "local-1" {
		t.Fatalf("expected generated id local-1, got %q", gotID)
	}
}

func TestServiceDelete_UnseenIDGetsLocalID(t *testing.T) {
	svc := newTestService(t, NewMemoryRepository(), nil)

	u, err := svc.Delete(context.Background(), "user_never_created")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if u.ID != "local-1" || !u.Deleted() {
		t.Fatalf("expected tombstone with a local id, got %+v", u)
	}
}
