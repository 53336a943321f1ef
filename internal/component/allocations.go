package component

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/komponente/internal/model"
	"github.com/erazemk/komponente/internal/store"
)

// Checkout allocates units of a component to an asset or user. It takes the
// same row lock as Update and bumps the component version, so a quantity
// edit and a checkout can never both pass against the same count.
func (s *Service) Checkout(ctx context.Context, actor model.Actor, componentID int64, a model.Assignment) (*model.Allocation, error) {
	current, err := s.visible(ctx, actor, componentID)
	if err != nil {
		return nil, err
	}
	if !s.Authz.CanCheckout(actor, current) {
		return nil, fmt.Errorf("checking out component %d: %w", componentID, ErrForbidden)
	}
	if err := validateAssignment(&a); err != nil {
		return nil, err
	}

	var allocationID int64
	err = s.inTx(ctx, "checking out component", func(tx *sql.Tx) error {
		c, err := s.lock(ctx, tx, actor, componentID)
		if err != nil {
			return err
		}

		allocated, err := store.AllocatedCount(ctx, tx, componentID)
		if err != nil {
			return err
		}
		if remaining := c.Qty - allocated; a.Quantity > remaining {
			return invalid("quantity", "not enough remaining units: %d available", max(remaining, 0))
		}

		allocationID, err = store.InsertAllocation(ctx, tx, &model.Allocation{
			ComponentID:  componentID,
			AssignedType: a.AssignedType,
			AssignedTo:   a.AssignedTo,
			Quantity:     a.Quantity,
			Note:         a.Note,
			CreatedBy:    actorRef(actor),
		})
		if err != nil {
			return err
		}
		return store.BumpComponentVersion(ctx, tx, componentID, c.Version)
	})
	if err != nil {
		return nil, classify("checking out component", err)
	}

	s.logger().Info("component checked out", "component", componentID, "allocation", allocationID,
		"quantity", a.Quantity, "assigned_type", a.AssignedType, "assigned_to", a.AssignedTo, "user", actor.Username)
	return s.reloadAllocation(ctx, allocationID)
}

// Checkin returns units of an allocation. A quantity of zero returns every
// unit.
func (s *Service) Checkin(ctx context.Context, actor model.Actor, allocationID int64, quantity int) (*model.Allocation, error) {
	if quantity < 0 {
		return nil, invalid("quantity", "quantity must not be negative")
	}

	a, err := s.reloadAllocation(ctx, allocationID)
	if err != nil {
		return nil, err
	}
	current, err := s.visible(ctx, actor, a.ComponentID)
	if err != nil {
		return nil, err
	}
	if !s.Authz.CanCheckout(actor, current) {
		return nil, fmt.Errorf("checking in allocation %d: %w", allocationID, ErrForbidden)
	}

	err = s.inTx(ctx, "checking in allocation", func(tx *sql.Tx) error {
		c, err := s.lock(ctx, tx, actor, a.ComponentID)
		if err != nil {
			return err
		}

		a, err := store.GetAllocation(ctx, tx, allocationID)
		if err != nil {
			return err
		}
		if a == nil {
			return fmt.Errorf("allocation %d: %w", allocationID, ErrNotFound)
		}
		if a.CheckedInAt != nil {
			return invalid("allocation", "allocation is already checked in")
		}

		n := quantity
		if n == 0 {
			n = a.Quantity
		}
		if n > a.Quantity {
			return invalid("quantity", "only %d units are checked out", a.Quantity)
		}

		if err := store.CheckinAllocation(ctx, tx, a, n); err != nil {
			return err
		}
		return store.BumpComponentVersion(ctx, tx, c.ID, c.Version)
	})
	if err != nil {
		return nil, classify("checking in allocation", err)
	}

	s.logger().Info("allocation checked in", "allocation", allocationID, "component", a.ComponentID, "user", actor.Username)
	return s.reloadAllocation(ctx, allocationID)
}

// Allocations lists the allocations of a component, newest first.
func (s *Service) Allocations(ctx context.Context, actor model.Actor, componentID int64, activeOnly bool) ([]model.Allocation, error) {
	if _, err := s.visible(ctx, actor, componentID); err != nil {
		return nil, err
	}

	allocations, err := store.ListAllocations(ctx, s.DB, componentID, activeOnly)
	if err != nil {
		return nil, unavailable("listing allocations", err)
	}
	return allocations, nil
}

func (s *Service) reloadAllocation(ctx context.Context, id int64) (*model.Allocation, error) {
	a, err := store.GetAllocation(ctx, s.DB, id)
	if err != nil {
		return nil, unavailable("getting allocation", err)
	}
	if a == nil {
		return nil, fmt.Errorf("allocation %d: %w", id, ErrNotFound)
	}
	return a, nil
}
