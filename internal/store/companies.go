package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/erazemk/komponente/internal/model"
)

// CreateCompany creates a new company (tenant).
func CreateCompany(ctx context.Context, q DBTX, name string) (*model.Company, error) {
	result, err := q.ExecContext(ctx, `INSERT INTO companies (name) VALUES (?)`, name)
	if err != nil {
		return nil, fmt.Errorf("creating company: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting company id: %w", err)
	}

	return GetCompany(ctx, q, id)
}

// GetCompany returns a company by ID.
func GetCompany(ctx context.Context, q DBTX, id int64) (*model.Company, error) {
	c := &model.Company{}
	err := q.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM companies WHERE id = ?`, id,
	).Scan(&c.ID, &c.Name, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting company: %w", err)
	}
	return c, nil
}

// ListCompanies returns all companies ordered by name.
func ListCompanies(ctx context.Context, q DBTX) ([]model.Company, error) {
	rows, err := q.QueryContext(ctx, `SELECT id, name, created_at FROM companies ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing companies: %w", err)
	}
	defer rows.Close()

	var companies []model.Company
	for rows.Next() {
		var c model.Company
		if err := rows.Scan(&c.ID, &c.Name, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning company: %w", err)
		}
		companies = append(companies, c)
	}
	return companies, rows.Err()
}
