package tooling

import "sort"

// Name identifies one tool, e.g. "create_invoice".
type Name string

func (n Name) String() string { return string(n) }

// Domain returns the catalogue domain of n ("invoice", "customer", ...) or ""
// when n is not catalogued.
func (n Name) Domain() string { return catalogue[n] }

// Known reports whether n is a catalogued tool name.
func (n Name) Known() bool {
	_, ok := catalogue[n]
	return ok
}

// =============================================================================
// Tool names
// =============================================================================

const (
	ListInvoices      Name = "list_invoices"
	GetInvoice        Name = "get_invoice"
	CreateInvoice     Name = "create_invoice"
	UpdateInvoice     Name = "update_invoice"
	DeleteInvoice     Name = "delete_invoice"
	VoidInvoice       Name = "void_invoice"
	SendInvoiceEmail  Name = "send_invoice_email"
	SendInvoiceSMS    Name = "send_invoice_sms"
	SendInvoiceLetter Name = "send_invoice_letter"
	PayInvoice        Name = "pay_invoice"

	ListCustomers      Name = "list_customers"
	GetCustomer        Name = "get_customer"
	CreateCustomer     Name = "create_customer"
	UpdateCustomer     Name = "update_customer"
	DeleteCustomer     Name = "delete_customer"
	GetCustomerBalance Name = "get_customer_balance"

	ListContacts  Name = "list_contacts"
	GetContact    Name = "get_contact"
	CreateContact Name = "create_contact"
	UpdateContact Name = "update_contact"
	DeleteContact Name = "delete_contact"

	SendStatementEmail  Name = "send_statement_email"
	SendStatementSMS    Name = "send_statement_sms"
	SendStatementLetter Name = "send_statement_letter"

	ListPayments       Name = "list_payments"
	GetPayment         Name = "get_payment"
	CreatePayment      Name = "create_payment"
	UpdatePayment      Name = "update_payment"
	DeletePayment      Name = "delete_payment"
	SendPaymentReceipt Name = "send_payment_receipt"

	ListCreditNotes     Name = "list_credit_notes"
	GetCreditNote       Name = "get_credit_note"
	CreateCreditNote    Name = "create_credit_note"
	UpdateCreditNote    Name = "update_credit_note"
	DeleteCreditNote    Name = "delete_credit_note"
	VoidCreditNote      Name = "void_credit_note"
	SendCreditNoteEmail Name = "send_credit_note_email"

	ListEstimates            Name = "list_estimates"
	GetEstimate              Name = "get_estimate"
	CreateEstimate           Name = "create_estimate"
	UpdateEstimate           Name = "update_estimate"
	DeleteEstimate           Name = "delete_estimate"
	VoidEstimate             Name = "void_estimate"
	SendEstimateEmail        Name = "send_estimate_email"
	ConvertEstimateToInvoice Name = "convert_estimate_to_invoice"

	ListSubscriptions   Name = "list_subscriptions"
	GetSubscription     Name = "get_subscription"
	CreateSubscription  Name = "create_subscription"
	UpdateSubscription  Name = "update_subscription"
	CancelSubscription  Name = "cancel_subscription"
	PreviewSubscription Name = "preview_subscription"

	ListPlans  Name = "list_plans"
	GetPlan    Name = "get_plan"
	CreatePlan Name = "create_plan"
	UpdatePlan Name = "update_plan"
	DeletePlan Name = "delete_plan"

	ListItems  Name = "list_items"
	GetItem    Name = "get_item"
	CreateItem Name = "create_item"
	UpdateItem Name = "update_item"
	DeleteItem Name = "delete_item"

	ListCoupons  Name = "list_coupons"
	GetCoupon    Name = "get_coupon"
	CreateCoupon Name = "create_coupon"
	UpdateCoupon Name = "update_coupon"
	DeleteCoupon Name = "delete_coupon"

	ListTaxRates  Name = "list_tax_rates"
	GetTaxRate    Name = "get_tax_rate"
	CreateTaxRate Name = "create_tax_rate"
	UpdateTaxRate Name = "update_tax_rate"
	DeleteTaxRate Name = "delete_tax_rate"

	ListChasingCadences  Name = "list_chasing_cadences"
	GetChasingCadence    Name = "get_chasing_cadence"
	CreateChasingCadence Name = "create_chasing_cadence"
	UpdateChasingCadence Name = "update_chasing_cadence"
	DeleteChasingCadence Name = "delete_chasing_cadence"

	ListCreditBalanceAdjustments  Name = "list_credit_balance_adjustments"
	GetCreditBalanceAdjustment    Name = "get_credit_balance_adjustment"
	CreateCreditBalanceAdjustment Name = "create_credit_balance_adjustment"
	DeleteCreditBalanceAdjustment Name = "delete_credit_balance_adjustment"

	ListEmailTemplates  Name = "list_email_templates"
	GetEmailTemplate    Name = "get_email_template"
	CreateEmailTemplate Name = "create_email_template"
	UpdateEmailTemplate Name = "update_email_template"
	DeleteEmailTemplate Name = "delete_email_template"

	ListWebhooks  Name = "list_webhooks"
	GetWebhook    Name = "get_webhook"
	CreateWebhook Name = "create_webhook"
	UpdateWebhook Name = "update_webhook"
	DeleteWebhook Name = "delete_webhook"

	CreateReport Name = "create_report"
	GetReport    Name = "get_report"

	ListEvents Name = "list_events"
	GetEvent   Name = "get_event"

	ListTasks  Name = "list_tasks"
	GetTask    Name = "get_task"
	CreateTask Name = "create_task"
	UpdateTask Name = "update_task"
	DeleteTask Name = "delete_task"

	ListNotes  Name = "list_notes"
	CreateNote Name = "create_note"
	UpdateNote Name = "update_note"
	DeleteNote Name = "delete_note"

	GetPaymentPlan    Name = "get_payment_plan"
	CreatePaymentPlan Name = "create_payment_plan"
	CancelPaymentPlan Name = "cancel_payment_plan"

	ListPaymentLinks        Name = "list_payment_links"
	GetPaymentLink          Name = "get_payment_link"
	CreatePaymentLink       Name = "create_payment_link"
	UpdatePaymentLink       Name = "update_payment_link"
	DeletePaymentLink       Name = "delete_payment_link"
	ListPaymentLinkSessions Name = "list_payment_link_sessions"

	ListPaymentSources  Name = "list_payment_sources"
	DeletePaymentSource Name = "delete_payment_source"

	CreateRefund Name = "create_refund"

	ListPendingLineItems  Name = "list_pending_line_items"
	CreatePendingLineItem Name = "create_pending_line_item"
	DeletePendingLineItem Name = "delete_pending_line_item"

	ListLateFeeSchedules  Name = "list_late_fee_schedules"
	GetLateFeeSchedule    Name = "get_late_fee_schedule"
	CreateLateFeeSchedule Name = "create_late_fee_schedule"
	UpdateLateFeeSchedule Name = "update_late_fee_schedule"
	DeleteLateFeeSchedule Name = "delete_late_fee_schedule"

	GetFile    Name = "get_file"
	CreateFile Name = "create_file"
	DeleteFile Name = "delete_file"
)

// =============================================================================
// Catalogue
// =============================================================================

// catalogue is the complete set of supported tools and their domain. Keys are
// constants, so listing a name twice does not compile.
var catalogue = map[Name]string{
	ListInvoices:      "invoice",
	GetInvoice:        "invoice",
	CreateInvoice:     "invoice",
	UpdateInvoice:     "invoice",
	DeleteInvoice:     "invoice",
	VoidInvoice:       "invoice",
	SendInvoiceEmail:  "invoice",
	SendInvoiceSMS:    "invoice",
	SendInvoiceLetter: "invoice",
	PayInvoice:        "invoice",

	ListCustomers:      "customer",
	GetCustomer:        "customer",
	CreateCustomer:     "customer",
	UpdateCustomer:     "customer",
	DeleteCustomer:     "customer",
	GetCustomerBalance: "customer",

	ListContacts:  "contact",
	GetContact:    "contact",
	CreateContact: "contact",
	UpdateContact: "contact",
	DeleteContact: "contact",

	SendStatementEmail:  "statement",
	SendStatementSMS:    "statement",
	SendStatementLetter: "statement",

	ListPayments:       "payment",
	GetPayment:         "payment",
	CreatePayment:      "payment",
	UpdatePayment:      "payment",
	DeletePayment:      "payment",
	SendPaymentReceipt: "payment",

	ListCreditNotes:     "credit_note",
	GetCreditNote:       "credit_note",
	CreateCreditNote:    "credit_note",
	UpdateCreditNote:    "credit_note",
	DeleteCreditNote:    "credit_note",
	VoidCreditNote:      "credit_note",
	SendCreditNoteEmail: "credit_note",

	ListEstimates:            "estimate",
	GetEstimate:              "estimate",
	CreateEstimate:           "estimate",
	UpdateEstimate:           "estimate",
	DeleteEstimate:           "estimate",
	VoidEstimate:             "estimate",
	SendEstimateEmail:        "estimate",
	ConvertEstimateToInvoice: "estimate",

	ListSubscriptions:   "subscription",
	GetSubscription:     "subscription",
	CreateSubscription:  "subscription",
	UpdateSubscription:  "subscription",
	CancelSubscription:  "subscription",
	PreviewSubscription: "subscription",

	ListPlans:  "plan",
	GetPlan:    "plan",
	CreatePlan: "plan",
	UpdatePlan: "plan",
	DeletePlan: "plan",

	ListItems:  "item",
	GetItem:    "item",
	CreateItem: "item",
	UpdateItem: "item",
	DeleteItem: "item",

	ListCoupons:  "coupon",
	GetCoupon:    "coupon",
	CreateCoupon: "coupon",
	UpdateCoupon: "coupon",
	DeleteCoupon: "coupon",

	ListTaxRates:  "tax_rate",
	GetTaxRate:    "tax_rate",
	CreateTaxRate: "tax_rate",
	UpdateTaxRate: "tax_rate",
	DeleteTaxRate: "tax_rate",

	ListChasingCadences:  "chasing_cadence",
	GetChasingCadence:    "chasing_cadence",
	CreateChasingCadence: "chasing_cadence",
	UpdateChasingCadence: "chasing_cadence",
	DeleteChasingCadence: "chasing_cadence",

	ListCreditBalanceAdjustments:  "credit_balance",
	GetCreditBalanceAdjustment:    "credit_balance",
	CreateCreditBalanceAdjustment: "credit_balance",
	DeleteCreditBalanceAdjustment: "credit_balance",

	ListEmailTemplates:  "email",
	GetEmailTemplate:    "email",
	CreateEmailTemplate: "email",
	UpdateEmailTemplate: "email",
	DeleteEmailTemplate: "email",

	ListWebhooks:  "webhook",
	GetWebhook:    "webhook",
	CreateWebhook: "webhook",
	UpdateWebhook: "webhook",
	DeleteWebhook: "webhook",

	CreateReport: "report",
	GetReport:    "report",

	ListEvents: "event",
	GetEvent:   "event",

	ListTasks:  "task",
	GetTask:    "task",
	CreateTask: "task",
	UpdateTask: "task",
	DeleteTask: "task",

	ListNotes:  "note",
	CreateNote: "note",
	UpdateNote: "note",
	DeleteNote: "note",

	GetPaymentPlan:    "payment_plan",
	CreatePaymentPlan: "payment_plan",
	CancelPaymentPlan: "payment_plan",

	ListPaymentLinks:        "payment_link",
	GetPaymentLink:          "payment_link",
	CreatePaymentLink:       "payment_link",
	UpdatePaymentLink:       "payment_link",
	DeletePaymentLink:       "payment_link",
	ListPaymentLinkSessions: "payment_link",

	ListPaymentSources:  "payment_source",
	DeletePaymentSource: "payment_source",

	CreateRefund: "refund",

	ListPendingLineItems:  "pending_line_item",
	CreatePendingLineItem: "pending_line_item",
	DeletePendingLineItem: "pending_line_item",

	ListLateFeeSchedules:  "late_fee",
	GetLateFeeSchedule:    "late_fee",
	CreateLateFeeSchedule: "late_fee",
	UpdateLateFeeSchedule: "late_fee",
	DeleteLateFeeSchedule: "late_fee",

	GetFile:    "file",
	CreateFile: "file",
	DeleteFile: "file",
}

// Catalogue returns every supported tool name, sorted.
func Catalogue() []Name {
	out := make([]Name, 0, len(catalogue))
	for n := range catalogue {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Domains returns the distinct catalogue domains, sorted.
func Domains() []string {
	seen := make(map[string]struct{})
	for _, d := range catalogue {
		seen[d] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for d := range seen {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}
