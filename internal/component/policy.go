package component

import (
	"fmt"

	"github.com/erazemk/komponente/internal/model"
)

// Authorizer decides what an actor may do with components.
type Authorizer interface {
	CanView(actor model.Actor, c *model.Component) bool
	CanCreate(actor model.Actor) bool
	CanUpdate(actor model.Actor, c *model.Component) bool
	CanDelete(actor model.Actor, c *model.Component) bool
	CanCheckout(actor model.Actor, c *model.Component) bool
}

// TenantResolver maps tenant hints to the tenant an actor may act in.
type TenantResolver interface {
	// ResolveTenant returns the company to store on a component the actor
	// creates or updates. requested is the caller's hint.
	ResolveTenant(actor model.Actor, requested *int64) (*int64, error)

	// VisibleTenant returns the only company whose components the actor may
	// see, with restricted false when the actor sees every company.
	VisibleTenant(actor model.Actor) (companyID *int64, restricted bool)
}

// CompanyScope implements TenantResolver. With FullCompanySupport disabled
// tenants are informational and pass through. With it enabled, admins may
// pick any company and everyone else is pinned to their own.
type CompanyScope struct {
	FullCompanySupport bool
}

// ResolveTenant implements TenantResolver.
func (s CompanyScope) ResolveTenant(actor model.Actor, requested *int64) (*int64, error) {
	if !s.FullCompanySupport || actor.Role == model.RoleAdmin {
		return requested, nil
	}
	if requested != nil && !model.SameCompany(requested, actor.CompanyID) {
		return nil, fmt.Errorf("company %d: %w", *requested, ErrForbidden)
	}
	return actor.CompanyID, nil
}

// VisibleTenant implements TenantResolver.
func (s CompanyScope) VisibleTenant(actor model.Actor) (*int64, bool) {
	if !s.FullCompanySupport || actor.Role == model.RoleAdmin {
		return nil, false
	}
	return actor.CompanyID, true
}

// RolePolicy implements Authorizer on top of user roles: every role can view
// and check out, managers and admins can create, edit and delete. Tenant
// visibility comes from Scope.
type RolePolicy struct {
	Scope TenantResolver
}

func (p RolePolicy) inTenant(actor model.Actor, c *model.Component) bool {
	if p.Scope == nil {
		return true
	}
	company, restricted := p.Scope.VisibleTenant(actor)
	return !restricted || model.SameCompany(company, c.CompanyID)
}

// CanView implements Authorizer.
func (p RolePolicy) CanView(actor model.Actor, c *model.Component) bool {
	return model.RoleAtLeast(actor.Role, model.RoleUser) && p.inTenant(actor, c)
}

// CanCreate implements Authorizer.
func (p RolePolicy) CanCreate(actor model.Actor) bool {
	return model.RoleAtLeast(actor.Role, model.RoleManager)
}

// CanUpdate implements Authorizer.
func (p RolePolicy) CanUpdate(actor model.Actor, c *model.Component) bool {
	return model.RoleAtLeast(actor.Role, model.RoleManager) && p.inTenant(actor, c)
}

// CanDelete implements Authorizer.
func (p RolePolicy) CanDelete(actor model.Actor, c *model.Component) bool {
	return model.RoleAtLeast(actor.Role, model.RoleManager) && p.inTenant(actor, c)
}

// CanCheckout implements Authorizer.
func (p RolePolicy) CanCheckout(actor model.Actor, c *model.Component) bool {
	return p.CanView(actor, c)
}
