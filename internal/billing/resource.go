package billing

import (
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// Params is a JSON object sent as a request body (or query string for GET).
type Params map[string]any

// Without returns a shallow copy of p minus the given keys.
func (p Params) Without(keys ...string) Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	for _, k := range keys {
		delete(out, k)
	}
	return out
}

// Resource is a collection path relative to the API root, e.g. "invoices" or
// "customers/12/contacts".
type Resource string

// Top-level collections.
const (
	Invoices                 Resource = "invoices"
	Customers                Resource = "customers"
	Payments                 Resource = "payments"
	CreditNotes              Resource = "credit_notes"
	Estimates                Resource = "estimates"
	Subscriptions            Resource = "subscriptions"
	Plans                    Resource = "plans"
	Items                    Resource = "items"
	Coupons                  Resource = "coupons"
	TaxRates                 Resource = "tax_rates"
	ChasingCadences          Resource = "chasing_cadences"
	CreditBalanceAdjustments Resource = "credit_balance_adjustments"
	EmailTemplates           Resource = "email_templates"
	Webhooks                 Resource = "webhooks"
	Reports                  Resource = "reports"
	Events                   Resource = "events"
	Tasks                    Resource = "tasks"
	Notes                    Resource = "notes"
	PaymentLinks             Resource = "payment_links"
	Charges                  Resource = "charges"
	LateFeeSchedules         Resource = "late_fee_schedules"
	Files                    Resource = "files"
)

// Child returns the nested collection sub under the object id of r, e.g.
// Customers.Child("12", "contacts") is "customers/12/contacts".
func (r Resource) Child(id, sub string) Resource {
	return Resource(joinPath(string(r), segment(id), sub))
}

// Item returns the path of one object in r.
func (r Resource) Item(id string) string {
	return joinPath(string(r), segment(id))
}

// Operation is a named action on a resource that is not plain CRUD, e.g.
// POST /invoices/{id}/void. Action may be empty (DELETE /subscriptions/{id})
// and the id may be empty (POST /subscriptions/preview).
type Operation struct {
	Name     string
	Method   string
	Resource Resource
	Action   string
}

// Path builds the request path for id.
func (o Operation) Path(id string) string {
	return joinPath(string(o.Resource), segment(id), o.Action)
}

// Named operations used by the tool layer.
var (
	VoidInvoice             = Operation{Name: "void invoice", Method: http.MethodPost, Resource: Invoices, Action: "void"}
	SendInvoiceEmail        = Operation{Name: "send invoice email", Method: http.MethodPost, Resource: Invoices, Action: "emails"}
	SendInvoiceSMS          = Operation{Name: "send invoice sms", Method: http.MethodPost, Resource: Invoices, Action: "text_messages"}
	SendInvoiceLetter       = Operation{Name: "send invoice letter", Method: http.MethodPost, Resource: Invoices, Action: "letters"}
	PayInvoice              = Operation{Name: "pay invoice", Method: http.MethodPost, Resource: Invoices, Action: "pay"}
	GetPaymentPlan          = Operation{Name: "get payment plan", Method: http.MethodGet, Resource: Invoices, Action: "payment_plan"}
	CreatePaymentPlan       = Operation{Name: "create payment plan", Method: http.MethodPut, Resource: Invoices, Action: "payment_plan"}
	CancelPaymentPlan       = Operation{Name: "cancel payment plan", Method: http.MethodDelete, Resource: Invoices, Action: "payment_plan"}
	GetCustomerBalance      = Operation{Name: "get customer balance", Method: http.MethodGet, Resource: Customers, Action: "balance"}
	SendStatementEmail      = Operation{Name: "send statement email", Method: http.MethodPost, Resource: Customers, Action: "emails"}
	SendStatementSMS        = Operation{Name: "send statement sms", Method: http.MethodPost, Resource: Customers, Action: "text_messages"}
	SendStatementLetter     = Operation{Name: "send statement letter", Method: http.MethodPost, Resource: Customers, Action: "letters"}
	SendPaymentReceipt      = Operation{Name: "send payment receipt", Method: http.MethodPost, Resource: Payments, Action: "emails"}
	VoidCreditNote          = Operation{Name: "void credit note", Method: http.MethodPost, Resource: CreditNotes, Action: "void"}
	SendCreditNoteEmail     = Operation{Name: "send credit note email", Method: http.MethodPost, Resource: CreditNotes, Action: "emails"}
	VoidEstimate            = Operation{Name: "void estimate", Method: http.MethodPost, Resource: Estimates, Action: "void"}
	SendEstimateEmail       = Operation{Name: "send estimate email", Method: http.MethodPost, Resource: Estimates, Action: "emails"}
	ConvertEstimate         = Operation{Name: "convert estimate", Method: http.MethodPost, Resource: Estimates, Action: "invoice"}
	CancelSubscription      = Operation{Name: "cancel subscription", Method: http.MethodDelete, Resource: Subscriptions}
	PreviewSubscription     = Operation{Name: "preview subscription", Method: http.MethodPost, Resource: Subscriptions, Action: "preview"}
	ListPaymentLinkSessions = Operation{Name: "list payment link sessions", Method: http.MethodGet, Resource: PaymentLinks, Action: "sessions"}
	CreateRefund            = Operation{Name: "create refund", Method: http.MethodPost, Resource: Charges, Action: "refunds"}
)

// segment escapes id so it stays a single path element. Dot segments are
// percent-encoded too, since URL resolution would otherwise collapse them.
func segment(id string) string {
	switch id {
	case ".":
		return "%2E"
	case "..":
		return "%2E%2E"
	}
	return url.PathEscape(id)
}

func joinPath(parts ...string) string {
	segs := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.Trim(p, "/")
		if p != "" {
			segs = append(segs, p)
		}
	}
	return strings.Join(segs, "/")
}

// ListOptions are the pagination, filter and sort parameters shared by every
// list endpoint. Zero values are omitted from the query string.
type ListOptions struct {
	Page          int
	PerPage       int
	Sort          string
	Filter        map[string]string
	Metadata      map[string]string
	UpdatedAfter  int64
	UpdatedBefore int64
	Expand        string
}

// Values encodes o using the API's bracket convention (filter[status]=paid).
func (o ListOptions) Values() url.Values {
	v := url.Values{}
	if o.Page > 0 {
		v.Set("page", strconv.Itoa(o.Page))
	}
	if o.PerPage > 0 {
		v.Set("per_page", strconv.Itoa(o.PerPage))
	}
	if o.Sort != "" {
		v.Set("sort", o.Sort)
	}
	for k, val := range o.Filter {
		v.Set("filter["+k+"]", val)
	}
	for k, val := range o.Metadata {
		v.Set("metadata["+k+"]", val)
	}
	if o.UpdatedAfter > 0 {
		v.Set("updated_after", strconv.FormatInt(o.UpdatedAfter, 10))
	}
	if o.UpdatedBefore > 0 {
		v.Set("updated_before", strconv.FormatInt(o.UpdatedBefore, 10))
	}
	if o.Expand != "" {
		v.Set("expand", o.Expand)
	}
	return v
}

// EncodeQuery flattens p into a query string. Nested maps use bracket keys
// and slices repeat the key with a trailing "[]".
func EncodeQuery(p Params) url.Values {
	v := url.Values{}
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		addQueryValue(v, k, p[k])
	}
	return v
}

func addQueryValue(v url.Values, key string, val any) {
	switch t := val.(type) {
	case nil:
	case map[string]any:
		for k, inner := range t {
			addQueryValue(v, key+"["+k+"]", inner)
		}
	case Params:
		addQueryValue(v, key, map[string]any(t))
	case []any:
		for _, inner := range t {
			addQueryValue(v, key+"[]", inner)
		}
	case string:
		v.Add(key, t)
	default:
		v.Add(key, fmt.Sprint(t))
	}
}
