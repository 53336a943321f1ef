package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/erazemk/komponente/internal/model"
)

// AllocatedCount returns the number of units of a component currently checked
// out. Pass the transaction that will write the component so the count and
// the write see the same state.
func AllocatedCount(ctx context.Context, q DBTX, componentID int64) (int, error) {
	var count int
	err := q.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(quantity), 0) FROM allocations
		 WHERE component_id = ? AND checked_in_at IS NULL`, componentID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting allocated units: %w", err)
	}
	return count, nil
}

// InsertAllocation records a checkout. Callers must hold the component lock
// and have checked the remaining quantity.
func InsertAllocation(ctx context.Context, q DBTX, a *model.Allocation) (int64, error) {
	if a.Quantity <= 0 {
		return 0, fmt.Errorf("quantity must be positive")
	}

	result, err := q.ExecContext(ctx,
		`INSERT INTO allocations (component_id, assigned_type, assigned_to, quantity, note, created_by)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		a.ComponentID, a.AssignedType, a.AssignedTo, a.Quantity, a.Note, a.CreatedBy,
	)
	if err != nil {
		return 0, fmt.Errorf("recording allocation: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting allocation id: %w", err)
	}
	return id, nil
}

const allocationQuery = `SELECT a.id, a.component_id, a.assigned_type, a.assigned_to, a.quantity, a.note,
	        a.created_by, a.created_at, a.checked_in_at, c.name AS component_name
	 FROM allocations a
	 JOIN components c ON c.id = a.component_id`

func scanAllocation(row rowScanner) (model.Allocation, error) {
	var a model.Allocation
	var note sql.NullString
	err := row.Scan(&a.ID, &a.ComponentID, &a.AssignedType, &a.AssignedTo, &a.Quantity, &note,
		&a.CreatedBy, &a.CreatedAt, &a.CheckedInAt, &a.ComponentName)
	a.Note = note.String
	return a, err
}

// GetAllocation returns an allocation by ID, or nil if there is none.
func GetAllocation(ctx context.Context, q DBTX, id int64) (*model.Allocation, error) {
	a, err := scanAllocation(q.QueryRowContext(ctx, allocationQuery+` WHERE a.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting allocation: %w", err)
	}
	return &a, nil
}

// ListAllocations returns a component's allocations, newest first.
func ListAllocations(ctx context.Context, q DBTX, componentID int64, activeOnly bool) ([]model.Allocation, error) {
	query := allocationQuery + ` WHERE a.component_id = ?`
	if activeOnly {
		query += ` AND a.checked_in_at IS NULL`
	}
	query += ` ORDER BY a.created_at DESC, a.id DESC`

	rows, err := q.QueryContext(ctx, query, componentID)
	if err != nil {
		return nil, fmt.Errorf("listing allocations: %w", err)
	}
	defer rows.Close()

	var allocations []model.Allocation
	for rows.Next() {
		a, err := scanAllocation(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning allocation: %w", err)
		}
		allocations = append(allocations, a)
	}
	return allocations, rows.Err()
}

// CheckinAllocation returns quantity units of an active allocation. Returning
// every unit closes the allocation; fewer units shrink it.
func CheckinAllocation(ctx context.Context, q DBTX, a *model.Allocation, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("quantity must be positive")
	}
	if quantity > a.Quantity {
		return fmt.Errorf("cannot check in %d units: only %d checked out", quantity, a.Quantity)
	}

	var result sql.Result
	var err error
	if quantity == a.Quantity {
		result, err = q.ExecContext(ctx,
			`UPDATE allocations SET checked_in_at = CURRENT_TIMESTAMP
			 WHERE id = ? AND quantity = ? AND checked_in_at IS NULL`, a.ID, a.Quantity,
		)
	} else {
		result, err = q.ExecContext(ctx,
			`UPDATE allocations SET quantity = quantity - ?
			 WHERE id = ? AND quantity = ? AND checked_in_at IS NULL`,
			quantity, a.ID, a.Quantity,
		)
	}
	if err != nil {
		return fmt.Errorf("checking in allocation: %w", err)
	}
	return checkAffected(result)
}
