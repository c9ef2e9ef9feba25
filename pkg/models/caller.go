package models

// Role determines which row-level scoping rules apply to a caller.
type Role string

const (
	// RoleUnrestricted bypasses tenant scoping but never the
	// forbidden-statement check.
	RoleUnrestricted Role = "unrestricted"
	// RoleTenant requires a tenant-id filter on protected tables.
	RoleTenant Role = "tenant"
	// RoleSubTenant additionally requires a sub-tenant-id filter.
	RoleSubTenant Role = "sub_tenant"
)

// CallerContext identifies the scope a request runs under. Derived
// per-request from the authenticated session or from a static fallback
// configuration; never persisted.
type CallerContext struct {
	TenantID    int64  `json:"tenant_id"`
	TenantName  string `json:"tenant_name,omitempty"`
	SubTenantID *int64 `json:"sub_tenant_id,omitempty"`
	Role        Role   `json:"role"`
}

// Unrestricted reports whether the caller bypasses tenant scoping.
func (c CallerContext) Unrestricted() bool {
	return c.Role == RoleUnrestricted
}

// Unrestricted returns a caller context that bypasses tenant scoping.
func Unrestricted() CallerContext {
	return CallerContext{Role: RoleUnrestricted}
}
