package tooling

import "billtool/internal/billing"

var (
	creditNotes = collection{res: billing.CreditNotes, singular: "Credit note"}
	estimates   = collection{res: billing.Estimates, singular: "Estimate"}
)

func creditNoteTools() []Tool {
	tools := creditNotes.crud(
		[5]Name{ListCreditNotes, GetCreditNote, CreateCreditNote, UpdateCreditNote, DeleteCreditNote},
		"credit notes",
		WithProperty("customer", "Customer ID", true),
		WithProperty("invoice", "Invoice ID the credit note applies to", false),
		WithProperty("items", "Line items: [{name, quantity, unit_cost}]", false),
	)
	return append(tools,
		action(VoidCreditNote, "Void a credit note", billing.VoidCreditNote),
		action(SendCreditNoteEmail, "Email a credit note; optional to[], subject, message", billing.SendCreditNoteEmail),
	)
}

func estimateTools() []Tool {
	tools := estimates.crud(
		[5]Name{ListEstimates, GetEstimate, CreateEstimate, UpdateEstimate, DeleteEstimate},
		"estimates",
		WithProperty("customer", "Customer ID", true),
		WithProperty("items", "Line items: [{name, quantity, unit_cost}]", false),
	)
	return append(tools,
		action(VoidEstimate, "Void an estimate", billing.VoidEstimate),
		action(SendEstimateEmail, "Email an estimate; optional to[], subject, message", billing.SendEstimateEmail),
		action(ConvertEstimateToInvoice, "Turn an approved estimate into an invoice", billing.ConvertEstimate),
	)
}
