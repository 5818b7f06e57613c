package rbac

import (
	"fmt"
	"sort"
	"strings"

	"github.com/odyssey-erp/souq/internal/shared"
)

type pairKey struct {
	kind   ResourceKind
	action Action
}

// Catalog is the closed set of permissions the engine understands.
type Catalog struct {
	perms map[string]Permission
	pairs map[pairKey]Pair
	names []string
}

// NewCatalog validates and indexes permissions and their general/controlled pairs.
func NewCatalog(perms []Permission, pairs []Pair) (*Catalog, error) {
	c := &Catalog{
		perms: make(map[string]Permission, len(perms)),
		pairs: make(map[pairKey]Pair, len(pairs)),
	}
	for _, p := range perms {
		name := NormalizeName(p.Name)
		if name == "" {
			return nil, fmt.Errorf("rbac: catalog: empty permission name")
		}
		if _, dup := c.perms[name]; dup {
			return nil, fmt.Errorf("rbac: catalog: duplicate permission %s", name)
		}
		p.Name = name
		c.perms[name] = p
		c.names = append(c.names, name)
	}
	sort.Strings(c.names)
	for _, pair := range pairs {
		general, ok := c.perms[pair.General]
		if !ok || general.IsControlledVariant {
			return nil, fmt.Errorf("rbac: catalog: pair %s/%s: invalid general permission %q", pair.Kind, pair.Action, pair.General)
		}
		controlled, ok := c.perms[pair.Controlled]
		if !ok || !controlled.IsControlledVariant {
			return nil, fmt.Errorf("rbac: catalog: pair %s/%s: invalid controlled permission %q", pair.Kind, pair.Action, pair.Controlled)
		}
		c.pairs[pairKey{kind: pair.Kind, action: pair.Action}] = pair
	}
	return c, nil
}

// DefaultCatalog returns the marketplace catalog.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(defaultPermissions(), defaultPairs())
	if err != nil {
		panic(err)
	}
	return c
}

// Lookup returns the permission registered under name.
func (c *Catalog) Lookup(name string) (Permission, bool) {
	p, ok := c.perms[NormalizeName(name)]
	return p, ok
}

// Known reports whether name belongs to the catalog.
func (c *Catalog) Known(name string) bool {
	_, ok := c.Lookup(name)
	return ok
}

// Names returns all permission names in sorted order.
func (c *Catalog) Names() []string {
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}

// Permissions returns all permissions in name order.
func (c *Catalog) Permissions() []Permission {
	out := make([]Permission, 0, len(c.names))
	for _, name := range c.names {
		out = append(out, c.perms[name])
	}
	return out
}

// Pair returns the general/controlled pair governing kind and action.
func (c *Catalog) Pair(kind ResourceKind, action Action) (Pair, bool) {
	p, ok := c.pairs[pairKey{kind: kind, action: action}]
	return p, ok
}

// Validate normalizes names, drops duplicates and rejects unknown permissions.
func (c *Catalog) Validate(names []string) ([]string, error) {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, raw := range names {
		name := NormalizeName(raw)
		if name == "" {
			continue
		}
		if !c.Known(name) {
			return nil, fmt.Errorf("%w: %s", shared.ErrUnknownPermission, name)
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

// NormalizeName lowercases and trims a permission name.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func defaultPermissions() []Permission {
	return []Permission{
		{Name: shared.PermPermissionsView, Description: "View the permission catalog and actor grants"},
		{Name: shared.PermPermissionsManage, Description: "Replace the permission set of an actor"},

		{Name: shared.PermProductView, Description: "View products", Kind: KindProduct},
		{Name: shared.PermProductControlledView, Description: "View controlled products", Kind: KindProduct, IsControlledVariant: true},
		{Name: shared.PermProductApprove, Description: "Approve or reject products", Kind: KindProduct},
		{Name: shared.PermProductControlledApprove, Description: "Approve or reject controlled products", Kind: KindProduct, IsControlledVariant: true},
		{Name: shared.PermProductManage, Description: "Publish and unpublish products", Kind: KindProduct},
		{Name: shared.PermProductControlledManage, Description: "Publish and unpublish controlled products", Kind: KindProduct, IsControlledVariant: true},

		{Name: shared.PermOrderView, Description: "View orders", Kind: KindOrder},
		{Name: shared.PermOrderControlledView, Description: "View orders containing controlled items", Kind: KindOrder, IsControlledVariant: true},
		{Name: shared.PermOrderManage, Description: "Change order, payment and shipment status", Kind: KindOrder},
		{Name: shared.PermOrderControlledApprove, Description: "Change status of orders containing controlled items", Kind: KindOrder, IsControlledVariant: true},

		{Name: shared.PermVendorView, Description: "View vendor profiles", Kind: KindVendor},
		{Name: shared.PermVendorControlledView, Description: "View controlled vendor profiles", Kind: KindVendor, IsControlledVariant: true},
		{Name: shared.PermVendorApprove, Description: "Approve or reject vendor onboarding", Kind: KindVendor},
		{Name: shared.PermVendorControlledApprove, Description: "Approve or reject controlled vendor onboarding", Kind: KindVendor, IsControlledVariant: true},

		{Name: shared.PermCustomerView, Description: "View customer profiles", Kind: KindCustomer},
		{Name: shared.PermCustomerControlledView, Description: "View controlled customer profiles", Kind: KindCustomer, IsControlledVariant: true},
		{Name: shared.PermCustomerApprove, Description: "Approve or reject customer onboarding", Kind: KindCustomer},
		{Name: shared.PermCustomerControlledApprove, Description: "Approve or reject controlled customer onboarding", Kind: KindCustomer, IsControlledVariant: true},
	}
}

func defaultPairs() []Pair {
	return []Pair{
		{Kind: KindProduct, Action: ActionView, General: shared.PermProductView, Controlled: shared.PermProductControlledView},
		{Kind: KindProduct, Action: ActionApprove, General: shared.PermProductApprove, Controlled: shared.PermProductControlledApprove},
		{Kind: KindProduct, Action: ActionManage, General: shared.PermProductManage, Controlled: shared.PermProductControlledManage},

		{Kind: KindOrder, Action: ActionView, General: shared.PermOrderView, Controlled: shared.PermOrderControlledView},
		{Kind: KindOrder, Action: ActionManage, General: shared.PermOrderManage, Controlled: shared.PermOrderControlledApprove},

		{Kind: KindVendor, Action: ActionView, General: shared.PermVendorView, Controlled: shared.PermVendorControlledView},
		{Kind: KindVendor, Action: ActionApprove, General: shared.PermVendorApprove, Controlled: shared.PermVendorControlledApprove},

		{Kind: KindCustomer, Action: ActionView, General: shared.PermCustomerView, Controlled: shared.PermCustomerControlledView},
		{Kind: KindCustomer, Action: ActionApprove, General: shared.PermCustomerApprove, Controlled: shared.PermCustomerControlledApprove},
	}
}
