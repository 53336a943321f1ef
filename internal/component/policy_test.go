package component

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/erazemk/komponente/internal/model"
)

func ptr(v int64) *int64 { return &v }

func TestCompanyScopeResolveTenant(t *testing.T) {
	own := ptr(1)
	other := ptr(2)

	tests := []struct {
		name      string
		scope     CompanyScope
		actor     model.Actor
		requested *int64
		want      *int64
		forbidden bool
	}{
		{"disabled passes hint", CompanyScope{}, model.Actor{Role: model.RoleUser, CompanyID: own}, other, other, false},
		{"disabled passes nil", CompanyScope{}, model.Actor{Role: model.RoleUser, CompanyID: own}, nil, nil, false},
		{"admin picks any", CompanyScope{true}, model.Actor{Role: model.RoleAdmin, CompanyID: own}, other, other, false},
		{"manager pinned to own", CompanyScope{true}, model.Actor{Role: model.RoleManager, CompanyID: own}, nil, own, false},
		{"manager may name own", CompanyScope{true}, model.Actor{Role: model.RoleManager, CompanyID: own}, ptr(1), own, false},
		{"manager refused other", CompanyScope{true}, model.Actor{Role: model.RoleManager, CompanyID: own}, other, nil, true},
		{"companyless refused any", CompanyScope{true}, model.Actor{Role: model.RoleManager}, other, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.scope.ResolveTenant(tt.actor, tt.requested)
			if tt.forbidden {
				assert.ErrorIs(t, err, ErrForbidden)
				return
			}
			assert.NoError(t, err)
			assert.True(t, model.SameCompany(tt.want, got), "got %v, want %v", got, tt.want)
		})
	}
}

func TestRolePolicy(t *testing.T) {
	p := RolePolicy{Scope: CompanyScope{FullCompanySupport: true}}
	inA := &model.Component{CompanyID: ptr(1)}
	inB := &model.Component{CompanyID: ptr(2)}

	managerA := model.Actor{Role: model.RoleManager, CompanyID: ptr(1)}
	userA := model.Actor{Role: model.RoleUser, CompanyID: ptr(1)}
	adminA := model.Actor{Role: model.RoleAdmin, CompanyID: ptr(1)}

	assert.True(t, p.CanView(managerA, inA))
	assert.False(t, p.CanView(managerA, inB))
	assert.True(t, p.CanUpdate(managerA, inA))
	assert.False(t, p.CanDelete(managerA, inB))

	assert.True(t, p.CanView(userA, inA))
	assert.True(t, p.CanCheckout(userA, inA))
	assert.False(t, p.CanUpdate(userA, inA))
	assert.False(t, p.CanCreate(userA))

	assert.True(t, p.CanDelete(adminA, inB))
	assert.False(t, p.CanView(model.Actor{Role: "guest"}, inA))
}
