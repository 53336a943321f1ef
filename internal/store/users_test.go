package store

import (
	"context"
	"testing"

	"github.com/erazemk/komponente/internal/db"
	"github.com/erazemk/komponente/internal/model"
)

func TestCreateAndGetUser(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	user, err := CreateUser(ctx, database, "testuser", "hash123", model.RoleUser, nil)
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if user.Username != "testuser" {
		t.Errorf("expected username 'testuser', got %q", user.Username)
	}
	if user.Role != model.RoleUser {
		t.Errorf("expected role 'user', got %q", user.Role)
	}

	got, err := GetUser(ctx, database, user.ID)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if got.Username != "testuser" {
		t.Errorf("expected username 'testuser', got %q", got.Username)
	}
}

func TestGetUserByUsername(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	CreateUser(ctx, database, "alice", "hash", model.RoleAdmin, nil)

	user, err := GetUserByUsername(ctx, database, "alice")
	if err != nil {
		t.Fatalf("GetUserByUsername: %v", err)
	}
	if user == nil {
		t.Fatal("expected user, got nil")
	}
	if user.Username != "alice" {
		t.Errorf("expected 'alice', got %q", user.Username)
	}

	missing, err := GetUserByUsername(ctx, database, "bob")
	if err != nil {
		t.Fatalf("GetUserByUsername: %v", err)
	}
	if missing != nil {
		t.Error("expected nil for missing user")
	}
}

func TestListUsers(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	CreateUser(ctx, database, "a", "hash", model.RoleUser, nil)
	CreateUser(ctx, database, "b", "hash", model.RoleManager, nil)

	users, err := ListUsers(ctx, database)
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(users) != 2 {
		t.Errorf("expected 2 users, got %d", len(users))
	}
}

func TestDeleteUser(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	user, _ := CreateUser(ctx, database, "deleteme", "hash", model.RoleUser, nil)
	DeleteUser(ctx, database, user.ID)

	users, _ := ListUsers(ctx, database)
	if len(users) != 0 {
		t.Errorf("expected 0 users after delete, got %d", len(users))
	}
}

func TestUpdateUserPassword(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	user, _ := CreateUser(ctx, database, "pwuser", "oldhash", model.RoleUser, nil)
	UpdateUserPassword(ctx, database, user.ID, "newhash")

	got, _ := GetUser(ctx, database, user.ID)
	if got.PasswordHash != "newhash" {
		t.Errorf("expected password hash 'newhash', got %q", got.PasswordHash)
	}
}

func TestUpdateUserCompany(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	company, err := CreateCompany(ctx, database, "Acme")
	if err != nil {
		t.Fatalf("CreateCompany: %v", err)
	}
	user, _ := CreateUser(ctx, database, "bob", "hash", model.RoleUser, nil)

	if err := UpdateUser(ctx, database, user.ID, model.RoleManager, &company.ID); err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}

	got, _ := GetUser(ctx, database, user.ID)
	if got.Role != model.RoleManager {
		t.Errorf("expected role 'manager', got %q", got.Role)
	}
	if got.CompanyID == nil || *got.CompanyID != company.ID {
		t.Errorf("expected company %d, got %v", company.ID, got.CompanyID)
	}

	actor := ActorForUser(got)
	if actor.UserID != user.ID || actor.CompanyID == nil || *actor.CompanyID != company.ID {
		t.Errorf("unexpected actor %+v", actor)
	}
}

func TestDeletedUsernameCanBeReused(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	first, _ := CreateUser(ctx, database, "carol", "hash", model.RoleUser, nil)
	DeleteUser(ctx, database, first.ID)

	second, err := CreateUser(ctx, database, "carol", "hash2", model.RoleUser, nil)
	if err != nil {
		t.Fatalf("CreateUser after delete: %v", err)
	}

	got, _ := GetUserByUsername(ctx, database, "carol")
	if got == nil || got.ID != second.ID {
		t.Errorf("expected active user %d, got %v", second.ID, got)
	}
}
