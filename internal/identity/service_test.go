package identity

import (
	"context"
	"testing"
)

func TestRegisterAndAuthenticate(t *testing.T) {
	svc := NewService(NewMemoryRepository())
	ctx := context.Background()

	user, err := svc.Register(ctx, Credentials{Phone: "9876543210", Password: "s3cret-pass", Name: "Asha"})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if user.ID == "" || user.Phone != "9876543210" {
		t.Fatalf("unexpected user: %+v", user)
	}

	authed, err := svc.Authenticate(ctx, Credentials{Phone: "9876543210", Password: "s3cret-pass"})
	if err != nil {
		t.Fatalf("authenticate failed: %v", err)
	}
	if authed.ID != user.ID {
		t.Fatalf("expected user %s, got %s", user.ID, authed.ID)
	}
	if authed.LastLogin.IsZero() {
		t.Fatal("expected last login to be recorded")
	}
}

func TestAuthenticateRejectsWrongPassword(t *testing.T) {
	svc := NewService(NewMemoryRepository())
	ctx := context.Background()

	if _, err := svc.Register(ctx, Credentials{Phone: "9876543210", Password: "s3cret-pass"}); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	if _, err := svc.Authenticate(ctx, Credentials{Phone: "9876543210", Password: "wrong"}); err == nil {
		t.Fatal("expected authentication failure")
	}
}

func TestRegisterValidatesInput(t *testing.T) {
	svc := NewService(NewMemoryRepository())
	ctx := context.Background()

	if _, err := svc.Register(ctx, Credentials{Phone: "123", Password: "s3cret-pass"}); err == nil {
		t.Fatal("expected short phone rejection")
	}
	if _, err := svc.Register(ctx, Credentials{Phone: "9876543210", Password: "abc"}); err == nil {
		t.Fatal("expected short password rejection")
	}
}

func TestUpdateProfile(t *testing.T) {
	svc := NewService(NewMemoryRepository())
	ctx := context.Background()

	user, err := svc.Register(ctx, Credentials{Phone: "9876543210", Password: "s3cret-pass", Name: "Asha"})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}

	updated, err := svc.UpdateProfile(ctx, user.ID, "  Asha Verma ")
	if err != nil {
		t.Fatalf("update profile failed: %v", err)
	}
	if updated.Name != "Asha Verma" {
		t.Fatalf("expected trimmed name, got %q", updated.Name)
	}
	if updated.ID != user.ID || updated.Phone != user.Phone {
		t.Fatalf("identity changed on profile update: %+v", updated)
	}

	if _, err := svc.UpdateProfile(ctx, user.ID, "   "); err == nil {
		t.Fatal("expected empty name rejection")
	}
	if _, err := svc.UpdateProfile(ctx, "missing-user", "Ravi"); err == nil {
		t.Fatal("expected unknown user rejection")
	}
}

func TestRegisterRejectsDuplicatePhone(t *testing.T) {
	svc := NewService(NewMemoryRepository())
	ctx := context.Background()

	if _, err := svc.Register(ctx, Credentials{Phone: "9876543210", Password: "s3cret-pass"}); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if _, err := svc.Register(ctx, Credentials{Phone: "9876543210", Password: "other-pass"}); err == nil {
		t.Fatal("expected duplicate phone rejection")
	}
}
