package tooling

// All returns a fresh instance of every tool, grouped by domain.
func All() []Tool {
	groups := [][]Tool{
		invoiceTools(),
		customerTools(),
		contactTools(),
		statementTools(),
		paymentTools(),
		creditNoteTools(),
		estimateTools(),
		subscriptionTools(),
		catalogTools(),
		chasingCadenceTools(),
		creditBalanceTools(),
		emailTemplateTools(),
		webhookTools(),
		reportTools(),
		eventTools(),
		taskTools(),
		noteTools(),
		paymentPlanTools(),
		paymentLinkTools(),
		paymentSourceTools(),
		refundTools(),
		pendingLineItemTools(),
		lateFeeTools(),
		fileTools(),
	}
	var out []Tool
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}
