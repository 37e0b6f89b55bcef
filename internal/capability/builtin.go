package capability

// builtinEntries is the shipped capability catalog. Tier is always derived,
// never listed here; scope defaults to org.
var builtinEntries = []Entry{
	// Contacts
	{
		Key:    "contacts.create",
		Intent: "Create a contact record",
		Risk:   []RiskTag{RiskPII},
		Produces: []Effect{
			{Kind: EffectSearch, Event: "entity.created"},
			{Kind: EffectWebhook, Event: "entity.created"},
		},
	},
	{
		Key:    "contacts.update",
		Intent: "Edit contact fields",
		Risk:   []RiskTag{RiskPII},
		Produces: []Effect{
			{Kind: EffectSearch, Event: "entity.updated"},
			{Kind: EffectWebhook, Event: "entity.updated"},
		},
	},
	{
		Key:    "contacts.delete",
		Intent: "Soft-delete a contact",
		Risk:   []RiskTag{RiskPII},
		Produces: []Effect{
			{Kind: EffectSearch, Event: "entity.deleted"},
			{Kind: EffectWebhook, Event: "entity.deleted"},
		},
	},
	{
		Key:    "contacts.restore",
		Intent: "Restore a soft-deleted contact",
		Risk:   []RiskTag{RiskPII},
		Produces: []Effect{
			{Kind: EffectSearch, Event: "entity.restored"},
		},
	},
	{Key: "contacts.get", Intent: "Read one contact"},
	{Key: "contacts.list", Intent: "List contacts"},

	// Invoices
	{
		Key:    "invoices.create",
		Intent: "Create a draft invoice",
		Risk:   []RiskTag{RiskFinancial},
		Produces: []Effect{
			{Kind: EffectSearch, Event: "entity.created"},
			{Kind: EffectWorkflow, Event: "invoice.drafted"},
		},
	},
	{
		Key:    "invoices.update",
		Intent: "Edit draft invoice fields",
		Risk:   []RiskTag{RiskFinancial},
		Produces: []Effect{
			{Kind: EffectSearch, Event: "entity.updated"},
		},
	},
	{
		Key:    "invoices.submit",
		Intent: "Submit an invoice for processing",
		Risk:   []RiskTag{RiskFinancial, RiskIrreversible},
		Produces: []Effect{
			{Kind: EffectWorkflow, Event: "invoice.submitted"},
			{Kind: EffectWebhook, Event: "entity.submitted"},
			{Kind: EffectIntegration, Event: "erp.invoice.sync"},
		},
	},
	{
		Key:    "invoices.cancel",
		Intent: "Cancel an invoice",
		Risk:   []RiskTag{RiskFinancial, RiskIrreversible},
		Produces: []Effect{
			{Kind: EffectWorkflow, Event: "invoice.cancelled"},
			{Kind: EffectWebhook, Event: "entity.cancelled"},
		},
	},
	{
		Key:    "invoices.transfer",
		Intent: "Transfer invoice ownership to another account",
		Risk:   []RiskTag{RiskFinancial, RiskAudit},
		Produces: []Effect{
			{Kind: EffectWebhook, Event: "entity.transferred"},
		},
	},
	{Key: "invoices.get", Intent: "Read one invoice"},
	{Key: "invoices.list", Intent: "List invoices"},

	// Orders
	{
		Key:    "orders.create",
		Intent: "Create a draft order",
		Produces: []Effect{
			{Kind: EffectSearch, Event: "entity.created"},
		},
	},
	{
		Key:    "orders.update",
		Intent: "Edit draft order fields",
		Produces: []Effect{
			{Kind: EffectSearch, Event: "entity.updated"},
		},
	},
	{
		Key:    "orders.submit",
		Intent: "Submit an order for fulfilment",
		Risk:   []RiskTag{RiskIrreversible},
		Produces: []Effect{
			{Kind: EffectWorkflow, Event: "order.submitted"},
			{Kind: EffectIntegration, Event: "fulfilment.order.sync"},
		},
	},
	{
		Key:    "orders.cancel",
		Intent: "Cancel an order",
		Produces: []Effect{
			{Kind: EffectWorkflow, Event: "order.cancelled"},
		},
	},
	{
		Key:    "orders.assign",
		Intent: "Assign an order to an owner",
		Produces: []Effect{
			{Kind: EffectWebhook, Event: "entity.assigned"},
		},
	},
	{Key: "orders.get", Intent: "Read one order"},
	{Key: "orders.list", Intent: "List orders"},

	// Namespaced actions
	{Key: "search.contacts.query", Intent: "Full-text search over contacts"},
	{Key: "search.invoices.query", Intent: "Full-text search over invoices"},
	{Key: "search.reindex", Intent: "Rebuild a search index", Scope: ScopeGlobal},
	{Key: "admin.capabilities.configure", Intent: "Manage the capability catalog", Scope: ScopeGlobal, Risk: []RiskTag{RiskAudit}},
	{Key: "admin.roles.grant", Intent: "Grant a role to an actor", Risk: []RiskTag{RiskAudit}},
	{Key: "admin.roles.revoke", Intent: "Revoke a role from an actor", Risk: []RiskTag{RiskAudit}},
	{Key: "system.jobs.migrate", Intent: "Run schema migrations", Scope: ScopeGlobal, Risk: []RiskTag{RiskIrreversible}},
	{Key: "system.jobs.seed", Intent: "Seed reference data", Scope: ScopeGlobal},
	{Key: "auth.sessions.impersonate", Intent: "Impersonate another actor", Scope: ScopeGlobal, Risk: []RiskTag{RiskAudit}},
	{Key: "storage.files.upload", Intent: "Attach a file to an entity"},
	{Key: "storage.files.download", Intent: "Download an attached file"},
	{Key: "workflow.runs.view", Intent: "Inspect workflow runs", Status: StatusPlanned},
}
