package shared

// Marketplace permissions. Each sensitive domain declares a general permission
// and a controlled counterpart addressing controlled resources.
const (
	// Product permissions
	PermProductView              = "product.view"
	PermProductControlledView    = "product.controlled.view"
	PermProductApprove           = "product.approve"
	PermProductControlledApprove = "product.controlled.approve"
	PermProductManage            = "product.manage"
	PermProductControlledManage  = "product.controlled.manage"

	// Order permissions
	PermOrderView              = "order.view"
	PermOrderControlledView    = "order.controlled.view"
	PermOrderManage            = "order.manage"
	PermOrderControlledApprove = "order.controlled.approve"

	// Vendor profile permissions
	PermVendorView              = "vendor.view"
	PermVendorControlledView    = "vendor.controlled.view"
	PermVendorApprove           = "vendor.approve"
	PermVendorControlledApprove = "vendor.controlled.approve"

	// Customer profile permissions
	PermCustomerView              = "customer.view"
	PermCustomerControlledView    = "customer.controlled.view"
	PermCustomerApprove           = "customer.approve"
	PermCustomerControlledApprove = "customer.controlled.approve"
)

// ProductScopes lists all product permissions.
func ProductScopes() []string {
	return []string{
		PermProductView,
		PermProductControlledView,
		PermProductApprove,
		PermProductControlledApprove,
		PermProductManage,
		PermProductControlledManage,
	}
}

// OrderScopes lists all order permissions.
func OrderScopes() []string {
	return []string{
		PermOrderView,
		PermOrderControlledView,
		PermOrderManage,
		PermOrderControlledApprove,
	}
}

// ProfileScopes lists vendor and customer profile permissions.
func ProfileScopes() []string {
	return []string{
		PermVendorView,
		PermVendorControlledView,
		PermVendorApprove,
		PermVendorControlledApprove,
		PermCustomerView,
		PermCustomerControlledView,
		PermCustomerApprove,
		PermCustomerControlledApprove,
	}
}

// AllMarketplaceScopes returns every marketplace permission.
func AllMarketplaceScopes() []string {
	scopes := append(ProductScopes(), OrderScopes()...)
	return append(scopes, ProfileScopes()...)
}
