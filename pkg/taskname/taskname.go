package taskname

const (
	// Tracking tasks
	ClickLog = "event:click:log"

	// Enrichment tasks
	EnrichmentSession = "enrichment:session"

	// Billing tasks
	BillingCheck = "billing:check"
	BillingSweep = "billing:sweep"
)
