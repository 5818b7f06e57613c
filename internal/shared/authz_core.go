package shared

// Platform permissions guarding the permission administration surface.
const (
	PermPermissionsView   = "permissions.view"
	PermPermissionsManage = "permissions.manage"
)

// CoreScopes lists all permissions related to the core platform.
func CoreScopes() []string {
	return []string{
		PermPermissionsView,
		PermPermissionsManage,
	}
}
