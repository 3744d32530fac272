package shared

// Staff permissions checked by rbac.Middleware.
const (
	PermPOSSell         = "pos.sell"
	PermCatalogView     = "catalog.view"
	PermCatalogEdit     = "catalog.edit"
	PermInventoryView   = "inventory.view"
	PermInventoryEdit   = "inventory.edit"
	PermProcurementEdit = "procurement.edit"
	PermInvoicesView    = "invoices.view"
	PermInvoicesVoid    = "invoices.void"
	PermReportsView     = "reports.view"
	PermPromotionsEdit  = "promotions.edit"
	PermMasterDataEdit  = "masterdata.edit"
	PermUsersAdmin      = "users.admin"
)

// AllPermissions lists every permission known to the service.
func AllPermissions() []string {
	return []string{
		PermPOSSell,
		PermCatalogView,
		PermCatalogEdit,
		PermInventoryView,
		PermInventoryEdit,
		PermProcurementEdit,
		PermInvoicesView,
		PermInvoicesVoid,
		PermReportsView,
		PermPromotionsEdit,
		PermMasterDataEdit,
		PermUsersAdmin,
	}
}
