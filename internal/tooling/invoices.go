package tooling

import (
	"context"

	"billtool/internal/billing"
)

var invoices = collection{res: billing.Invoices, singular: "Invoice"}

func invoiceTools() []Tool {
	tools := invoices.crud(
		[5]Name{ListInvoices, GetInvoice, CreateInvoice, UpdateInvoice, DeleteInvoice},
		"invoices",
		WithProperty("customer", "Customer ID the invoice is billed to", true),
		WithProperty("items", "Line items: [{name, quantity, unit_cost}]", false),
	)
	return append(tools,
		action(VoidInvoice, "Void an invoice", billing.VoidInvoice),
		action(SendInvoiceEmail, "Email an invoice; optional to[], bcc, subject, message", billing.SendInvoiceEmail),
		action(SendInvoiceSMS, "Text an invoice link; optional to[] and message", billing.SendInvoiceSMS),
		action(SendInvoiceLetter, "Mail a paper copy of an invoice", billing.SendInvoiceLetter),
		action(PayInvoice, "Charge the customer's payment source for an invoice", billing.PayInvoice),
	)
}

// =============================================================================
// Payment plans
// =============================================================================

// invoiceRef addresses the single payment plan of an invoice.
type invoiceRef struct {
	InvoiceID FlexID `json:"invoice_id" jsonschema_description:"Invoice ID"`
}

type paymentPlanInput struct {
	InvoiceID FlexID `json:"invoice_id" jsonschema_description:"Invoice ID"`
	Bag
}

func paymentPlanTools() []Tool {
	return []Tool{
		New(GetPaymentPlan, "Retrieve the payment plan attached to an invoice",
			func(ctx context.Context, env Env, in invoiceRef) (Result, error) {
				out, err := env.Client.Do(ctx, billing.GetPaymentPlan, in.InvoiceID.String(), nil)
				if err != nil {
					return nil, err
				}
				return Raw{Value: out}, nil
			}),
		New(CreatePaymentPlan, "Attach a payment plan (installments[]) to an invoice",
			func(ctx context.Context, env Env, in paymentPlanInput) (Result, error) {
				out, err := env.Client.Do(ctx, billing.CreatePaymentPlan, in.InvoiceID.String(), in.Without("invoice_id"))
				if err != nil {
					return nil, err
				}
				return created("Payment plan", out)
			},
			WithProperty("installments", "Installments: [{date, amount}]", true)),
		New(CancelPaymentPlan, "Cancel the payment plan attached to an invoice",
			func(ctx context.Context, env Env, in invoiceRef) (Result, error) {
				if _, err := env.Client.Do(ctx, billing.CancelPaymentPlan, in.InvoiceID.String(), nil); err != nil {
					return nil, err
				}
				return Text("Payment plan for invoice " + in.InvoiceID.String() + " cancelled successfully."), nil
			}),
	}
}
