package store

import (
	"context"
	"testing"

	"github.com/erazemk/komponente/internal/db"
)

func TestCreateAndListCompanies(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	acme, err := CreateCompany(ctx, database, "Acme")
	if err != nil {
		t.Fatalf("CreateCompany: %v", err)
	}
	if acme.Name != "Acme" {
		t.Errorf("expected name 'Acme', got %q", acme.Name)
	}
	CreateCompany(ctx, database, "Globex")

	if _, err := CreateCompany(ctx, database, "Acme"); err == nil {
		t.Error("expected duplicate company name to fail")
	}

	companies, err := ListCompanies(ctx, database)
	if err != nil {
		t.Fatalf("ListCompanies: %v", err)
	}
	if len(companies) != 2 || companies[0].Name != "Acme" {
		t.Errorf("expected [Acme Globex], got %v", companies)
	}

	missing, _ := GetCompany(ctx, database, 99)
	if missing != nil {
		t.Error("expected nil for missing company")
	}
}
