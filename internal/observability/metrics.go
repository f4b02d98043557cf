package observability

// Metric names shared between registration in main and the call sites.
const (
	MUsecaseRequests         = "usecase_requests_total"
	MUsecaseDuration         = "usecase_duration_seconds"
	MHTTPRequests            = "http_requests_total"
	MHTTPRequestDuration     = "http_request_duration_seconds"
	MExternalRequests        = "external_requests_total"
	MExternalRequestDuration = "external_request_duration_seconds"
	MReconcileOutcomes       = "reconcile_outcomes_total"
	MInventoryInconsistency  = "inventory_inconsistency_total"
)
