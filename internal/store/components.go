package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/erazemk/komponente/internal/db"
	"github.com/erazemk/komponente/internal/model"
)

const componentColumns = `id, name, category_id, location_id, company_id, manufacturer_id, supplier_id,
	model_number, order_number, serial, notes, purchase_date, purchase_cost, min_amt, qty, image,
	created_by, version, created_at, updated_at, deleted_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanComponent(row rowScanner) (model.Component, error) {
	var c model.Component
	err := row.Scan(&c.ID, &c.Name, &c.CategoryID, &c.LocationID, &c.CompanyID, &c.ManufacturerID, &c.SupplierID,
		&c.ModelNumber, &c.OrderNumber, &c.Serial, &c.Notes, &c.PurchaseDate, &c.PurchaseCost, &c.MinAmt, &c.Qty, &c.Image,
		&c.CreatedBy, &c.Version, &c.CreatedAt, &c.UpdatedAt, &c.DeletedAt)
	return c, err
}

// InsertComponent stores a new component and returns its ID.
func InsertComponent(ctx context.Context, q DBTX, c *model.Component) (int64, error) {
	result, err := q.ExecContext(ctx,
		`INSERT INTO components (name, category_id, location_id, company_id, manufacturer_id, supplier_id,
		     model_number, order_number, serial, notes, purchase_date, purchase_cost, min_amt, qty, image, created_by)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.Name, c.CategoryID, c.LocationID, c.CompanyID, c.ManufacturerID, c.SupplierID,
		c.ModelNumber, c.OrderNumber, c.Serial, c.Notes, c.PurchaseDate, c.PurchaseCost, c.MinAmt, c.Qty, c.Image, c.CreatedBy,
	)
	if err != nil {
		return 0, fmt.Errorf("creating component: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting component id: %w", err)
	}
	return id, nil
}

// GetComponent returns a non-deleted component by ID, or nil if there is none.
func GetComponent(ctx context.Context, q DBTX, id int64) (*model.Component, error) {
	c, err := scanComponent(q.QueryRowContext(ctx,
		`SELECT `+componentColumns+` FROM components WHERE id = ? AND deleted_at IS NULL`, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting component: %w", err)
	}
	return &c, nil
}

// LockComponent reads a component inside tx, holding the row lock until the
// transaction ends. Returns nil if there is no such component.
func LockComponent(ctx context.Context, tx *sql.Tx, d db.Dialect, id int64) (*model.Component, error) {
	c, err := scanComponent(tx.QueryRowContext(ctx,
		`SELECT `+componentColumns+` FROM components WHERE id = ? AND deleted_at IS NULL`+d.ForUpdate(), id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("locking component: %w", err)
	}
	return &c, nil
}

// ListComponents lazily enumerates non-deleted components matching f,
// ordered by name. The query runs when iteration starts.
func ListComponents(ctx context.Context, q DBTX, f model.ComponentFilter) iter.Seq2[model.Component, error] {
	return func(yield func(model.Component, error) bool) {
		query := `SELECT ` + componentColumns + ` FROM components WHERE deleted_at IS NULL`
		var args []any

		if f.ScopeCompany {
			if f.CompanyID == nil {
				query += ` AND company_id IS NULL`
			} else {
				query += ` AND company_id = ?`
				args = append(args, *f.CompanyID)
			}
		}
		if f.CategoryID != nil {
			query += ` AND category_id = ?`
			args = append(args, *f.CategoryID)
		}
		if f.LocationID != nil {
			query += ` AND location_id = ?`
			args = append(args, *f.LocationID)
		}
		if f.Search != "" {
			like := "%" + escapeLike(f.Search) + "%"
			query += ` AND (name LIKE ? ESCAPE '!' OR serial LIKE ? ESCAPE '!' OR model_number LIKE ? ESCAPE '!')`
			args = append(args, like, like, like)
		}
		query += ` ORDER BY name, id`

		rows, err := q.QueryContext(ctx, query, args...)
		if err != nil {
			yield(model.Component{}, fmt.Errorf("listing components: %w", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			c, err := scanComponent(rows)
			if err != nil {
				yield(model.Component{}, fmt.Errorf("scanning component: %w", err))
				return
			}
			if !yield(c, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(model.Component{}, fmt.Errorf("listing components: %w", err))
		}
	}
}

// UpdateComponent overwrites every stored field of c. The write only applies
// if the stored version still equals c.Version; otherwise ErrVersionConflict.
func UpdateComponent(ctx context.Context, q DBTX, c *model.Component) error {
	result, err := q.ExecContext(ctx,
		`UPDATE components SET name = ?, category_id = ?, location_id = ?, company_id = ?, manufacturer_id = ?,
		     supplier_id = ?, model_number = ?, order_number = ?, serial = ?, notes = ?, purchase_date = ?,
		     purchase_cost = ?, min_amt = ?, qty = ?, image = ?, version = version + 1, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND version = ? AND deleted_at IS NULL`,
		c.Name, c.CategoryID, c.LocationID, c.CompanyID, c.ManufacturerID,
		c.SupplierID, c.ModelNumber, c.OrderNumber, c.Serial, c.Notes, c.PurchaseDate,
		c.PurchaseCost, c.MinAmt, c.Qty, c.Image,
		c.ID, c.Version,
	)
	if err != nil {
		return fmt.Errorf("updating component: %w", err)
	}
	return checkAffected(result)
}

// BumpComponentVersion marks a component as changed without touching its
// fields, so concurrent version-checked writers notice the change.
func BumpComponentVersion(ctx context.Context, q DBTX, id, version int64) error {
	result, err := q.ExecContext(ctx,
		`UPDATE components SET version = version + 1 WHERE id = ? AND version = ? AND deleted_at IS NULL`,
		id, version,
	)
	if err != nil {
		return fmt.Errorf("bumping component version: %w", err)
	}
	return checkAffected(result)
}

// DeleteComponent soft-deletes a component at the given version.
func DeleteComponent(ctx context.Context, q DBTX, id, version int64) error {
	result, err := q.ExecContext(ctx,
		`UPDATE components SET deleted_at = CURRENT_TIMESTAMP, version = version + 1
		 WHERE id = ? AND version = ? AND deleted_at IS NULL`,
		id, version,
	)
	if err != nil {
		return fmt.Errorf("deleting component: %w", err)
	}
	return checkAffected(result)
}

// likeEscaper quotes LIKE wildcards with '!', the ESCAPE character used in
// search queries.
var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
