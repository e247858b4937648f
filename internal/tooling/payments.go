package tooling

import (
	"context"

	"billtool/internal/billing"
)

var (
	payments     = collection{res: billing.Payments, singular: "Payment"}
	paymentLinks = collection{res: billing.PaymentLinks, singular: "Payment link"}
	adjustments  = collection{res: billing.CreditBalanceAdjustments, singular: "Credit balance adjustment"}
)

// createPaymentInput coerces the two numeric fields the API is strict about.
type createPaymentInput struct {
	Customer FlexInt   `json:"customer,omitempty" jsonschema_description:"Customer ID"`
	Amount   FlexFloat `json:"amount" jsonschema_description:"Payment amount"`
	Bag
}

func paymentTools() []Tool {
	return []Tool{
		payments.list(ListPayments, "List payments with optional paging, sorting and filters"),
		payments.get(GetPayment, "Retrieve one payment by ID"),
		New(CreatePayment, "Record a payment; customer and amount may be given as strings",
			func(ctx context.Context, env Env, in createPaymentInput) (Result, error) {
				params := in.Params()
				if in.Has("customer") {
					params["customer"] = int64(in.Customer)
				}
				params["amount"] = float64(in.Amount)
				out, err := env.Client.Create(ctx, billing.Payments, params)
				if err != nil {
					return nil, err
				}
				return created(payments.singular, out)
			},
			WithProperty("method", "Payment method, e.g. check, wire_transfer, cash", false),
			WithProperty("applied_to", "Applications: [{type, invoice, amount}]", false)),
		payments.update(UpdatePayment, "Update a payment; fields other than id are sent as given"),
		payments.delete(DeletePayment, "Delete a payment by ID"),
		action(SendPaymentReceipt, "Email a payment receipt; optional to[], subject, message", billing.SendPaymentReceipt),
	}
}

// =============================================================================
// Credit balance adjustments
// =============================================================================

type creditBalanceInput struct {
	Customer FlexInt   `json:"customer" jsonschema_description:"Customer ID"`
	Amount   FlexFloat `json:"amount" jsonschema_description:"Adjustment amount; negative to debit"`
	Bag
}

func creditBalanceTools() []Tool {
	return []Tool{
		adjustments.list(ListCreditBalanceAdjustments, "List credit balance adjustments"),
		adjustments.get(GetCreditBalanceAdjustment, "Retrieve one credit balance adjustment by ID"),
		New(CreateCreditBalanceAdjustment, "Adjust a customer's credit balance",
			func(ctx context.Context, env Env, in creditBalanceInput) (Result, error) {
				params := in.Params()
				params["customer"] = int64(in.Customer)
				params["amount"] = float64(in.Amount)
				out, err := env.Client.Create(ctx, billing.CreditBalanceAdjustments, params)
				if err != nil {
					env.log().Error("create credit balance adjustment failed",
						"customer", int64(in.Customer),
						"amount", float64(in.Amount),
						"error", err,
					)
					return nil, err
				}
				return created(adjustments.singular, out)
			},
			WithProperty("currency", "Three-letter currency code", false),
			WithProperty("notes", "Internal notes", false)),
		adjustments.delete(DeleteCreditBalanceAdjustment, "Delete a credit balance adjustment by ID"),
	}
}

// =============================================================================
// Refunds
// =============================================================================

type refundInput struct {
	ChargeID FlexID    `json:"charge_id" jsonschema_description:"Charge ID to refund"`
	Amount   FlexFloat `json:"amount" jsonschema_description:"Amount to refund"`
}

func refundTools() []Tool {
	return []Tool{
		New(CreateRefund, "Refund all or part of a charge",
			func(ctx context.Context, env Env, in refundInput) (Result, error) {
				out, err := env.Client.Do(ctx, billing.CreateRefund, in.ChargeID.String(), billing.Params{"amount": float64(in.Amount)})
				if err != nil {
					return nil, err
				}
				return created("Refund", out)
			}),
	}
}

// =============================================================================
// Payment links
// =============================================================================

func paymentLinkTools() []Tool {
	tools := paymentLinks.crud(
		[5]Name{ListPaymentLinks, GetPaymentLink, CreatePaymentLink, UpdatePaymentLink, DeletePaymentLink},
		"payment links",
		WithProperty("currency", "Three-letter currency code", false),
		WithProperty("items", "Line items the link collects payment for", false),
	)
	return append(tools,
		action(ListPaymentLinkSessions, "List checkout sessions of a payment link; optional page, per_page", billing.ListPaymentLinkSessions),
	)
}
