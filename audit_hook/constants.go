package audithook

// Action constants for audit events.
const (
	// Plan actions
	ActionPlanCreated  = "plan.created"
	ActionPlanArchived = "plan.archived"

	// Subscription actions
	ActionSubscriptionActivated = "subscription.activated"
	ActionSubscriptionExpired   = "subscription.expired"

	// Ledger actions
	ActionCredited = "ledger.credited"
	ActionDebited  = "ledger.debited"

	// Admission actions
	ActionChatAdmitted    = "chat.admitted"
	ActionAdmissionDenied = "admission.denied"
	ActionQuotaExceeded   = "quota.exceeded"
)

// Resource constants for audit events.
const (
	ResourcePlan         = "plan"
	ResourceSubscription = "subscription"
	ResourceTransaction  = "transaction"
	ResourceChat         = "chat"
	ResourceQuota        = "quota"
)

// Category constants for audit events.
const (
	CategoryBilling      = "billing"
	CategorySubscription = "subscription"
	CategoryLedger       = "ledger"
	CategoryAccess       = "access"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)
