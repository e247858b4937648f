package tooling

import (
	"context"

	"billtool/internal/billing"
)

var customers = collection{res: billing.Customers, singular: "Customer"}

func customerTools() []Tool {
	tools := customers.crud(
		[5]Name{ListCustomers, GetCustomer, CreateCustomer, UpdateCustomer, DeleteCustomer},
		"customers",
		WithProperty("name", "Customer name", true),
		WithProperty("email", "Billing email address", false),
	)
	return append(tools,
		action(GetCustomerBalance, "Retrieve a customer's balance; optional currency", billing.GetCustomerBalance),
	)
}

func statementTools() []Tool {
	return []Tool{
		action(SendStatementEmail, "Email an account statement to a customer; optional type, start, end, to[]", billing.SendStatementEmail),
		action(SendStatementSMS, "Text an account statement link to a customer", billing.SendStatementSMS),
		action(SendStatementLetter, "Mail a paper account statement to a customer", billing.SendStatementLetter),
	}
}

// =============================================================================
// Customer-scoped collections
// =============================================================================

type customerListInput struct {
	CustomerID FlexID `json:"customer_id" jsonschema_description:"Customer ID"`
	ListParams
}

type customerItemInput struct {
	CustomerID FlexID `json:"customer_id" jsonschema_description:"Customer ID"`
	ID         FlexID `json:"id" jsonschema_description:"Object ID"`
}

type customerBagInput struct {
	CustomerID FlexID `json:"customer_id" jsonschema_description:"Customer ID"`
	Bag
}

type customerItemBagInput struct {
	CustomerID FlexID `json:"customer_id" jsonschema_description:"Customer ID"`
	ID         FlexID `json:"id" jsonschema_description:"Object ID"`
	Bag
}

func contactTools() []Tool {
	const sub = "contacts"
	return []Tool{
		New(ListContacts, "List a customer's contacts",
			func(ctx context.Context, env Env, in customerListInput) (Result, error) {
				out, err := env.Client.List(ctx, billing.Customers.Child(in.CustomerID.String(), sub), in.Options())
				if err != nil {
					return nil, err
				}
				return Raw{Value: out}, nil
			}),
		New(GetContact, "Retrieve one contact of a customer",
			func(ctx context.Context, env Env, in customerItemInput) (Result, error) {
				out, err := env.Client.Retrieve(ctx, billing.Customers.Child(in.CustomerID.String(), sub), in.ID.String())
				if err != nil {
					return nil, err
				}
				return Raw{Value: out}, nil
			}),
		New(CreateContact, "Add a contact to a customer",
			func(ctx context.Context, env Env, in customerBagInput) (Result, error) {
				out, err := env.Client.Create(ctx, billing.Customers.Child(in.CustomerID.String(), sub), in.Without("customer_id"))
				if err != nil {
					return nil, err
				}
				return created("Contact", out)
			},
			WithProperty("name", "Contact name", true),
			WithProperty("email", "Contact email", false)),
		New(UpdateContact, "Update a customer's contact",
			func(ctx context.Context, env Env, in customerItemBagInput) (Result, error) {
				out, err := env.Client.Update(ctx, billing.Customers.Child(in.CustomerID.String(), sub), in.ID.String(), in.Without("customer_id", "id"))
				if err != nil {
					return nil, err
				}
				return Raw{Value: out}, nil
			}),
		New(DeleteContact, "Remove a contact from a customer",
			func(ctx context.Context, env Env, in customerItemInput) (Result, error) {
				if err := env.Client.Delete(ctx, billing.Customers.Child(in.CustomerID.String(), sub), in.ID.String()); err != nil {
					return nil, err
				}
				return deleted("Contact", in.ID), nil
			}),
	}
}

func pendingLineItemTools() []Tool {
	const sub = "line_items"
	return []Tool{
		New(ListPendingLineItems, "List line items waiting to be billed on a customer's next invoice",
			func(ctx context.Context, env Env, in customerListInput) (Result, error) {
				out, err := env.Client.List(ctx, billing.Customers.Child(in.CustomerID.String(), sub), in.Options())
				if err != nil {
					return nil, err
				}
				return Raw{Value: out}, nil
			}),
		New(CreatePendingLineItem, "Add a pending line item to a customer",
			func(ctx context.Context, env Env, in customerBagInput) (Result, error) {
				out, err := env.Client.Create(ctx, billing.Customers.Child(in.CustomerID.String(), sub), in.Without("customer_id"))
				if err != nil {
					return nil, err
				}
				return created("Pending line item", out)
			},
			WithProperty("name", "Line item name", false),
			WithProperty("unit_cost", "Unit cost", true),
			WithProperty("quantity", "Quantity", false)),
		New(DeletePendingLineItem, "Remove a pending line item from a customer",
			func(ctx context.Context, env Env, in customerItemInput) (Result, error) {
				if err := env.Client.Delete(ctx, billing.Customers.Child(in.CustomerID.String(), sub), in.ID.String()); err != nil {
					return nil, err
				}
				return deleted("Pending line item", in.ID), nil
			}),
	}
}

// =============================================================================
// Payment sources
// =============================================================================

type paymentSourceInput struct {
	CustomerID FlexID `json:"customer_id" jsonschema_description:"Customer ID"`
	ID         FlexID `json:"id" jsonschema_description:"Payment source ID"`
	SourceType string `json:"source_type" jsonschema:"enum=card,enum=bank_account" jsonschema_description:"Kind of payment source"`
}

// sourceCollections maps a payment source type to its sub-collection.
var sourceCollections = map[string]string{
	"card":         "cards",
	"bank_account": "bank_accounts",
}

func paymentSourceTools() []Tool {
	return []Tool{
		New(ListPaymentSources, "List the cards and bank accounts saved on a customer",
			func(ctx context.Context, env Env, in customerListInput) (Result, error) {
				out, err := env.Client.List(ctx, billing.Customers.Child(in.CustomerID.String(), "payment_sources"), in.Options())
				if err != nil {
					return nil, err
				}
				return Raw{Value: out}, nil
			}),
		New(DeletePaymentSource, "Remove a saved card or bank account from a customer",
			func(ctx context.Context, env Env, in paymentSourceInput) (Result, error) {
				sub, ok := sourceCollections[in.SourceType]
				if !ok {
					return nil, invalidArg("source_type", in.SourceType, "must be card or bank_account")
				}
				if err := env.Client.Delete(ctx, billing.Customers.Child(in.CustomerID.String(), sub), in.ID.String()); err != nil {
					return nil, err
				}
				return deleted("Payment source", in.ID), nil
			}),
	}
}

// =============================================================================
// Notes
// =============================================================================

type noteListInput struct {
	CustomerID FlexID `json:"customer_id,omitempty" jsonschema_description:"List notes of this customer"`
	InvoiceID  FlexID `json:"invoice_id,omitempty" jsonschema_description:"List notes of this invoice"`
	ListParams
}

var notes = collection{res: billing.Notes, singular: "Note"}

func noteTools() []Tool {
	return []Tool{
		New(ListNotes, "List notes on a customer or an invoice (give exactly one of customer_id, invoice_id)",
			func(ctx context.Context, env Env, in noteListInput) (Result, error) {
				var res billing.Resource
				switch {
				case in.CustomerID != "" && in.InvoiceID != "":
					return nil, invalidArg("invoice_id", in.InvoiceID, "give customer_id or invoice_id, not both")
				case in.CustomerID != "":
					res = billing.Customers.Child(in.CustomerID.String(), "notes")
				case in.InvoiceID != "":
					res = billing.Invoices.Child(in.InvoiceID.String(), "notes")
				default:
					return nil, invalidArg("customer_id", nil, "customer_id or invoice_id is required")
				}
				out, err := env.Client.List(ctx, res, in.Options())
				if err != nil {
					return nil, err
				}
				return Raw{Value: out}, nil
			}),
		notes.create(CreateNote, "Add a note to a customer or an invoice",
			WithProperty("notes", "Note text", true),
			WithProperty("customer_id", "Customer the note belongs to", false),
			WithProperty("invoice_id", "Invoice the note belongs to", false)),
		notes.update(UpdateNote, "Change the text of a note"),
		notes.delete(DeleteNote, "Delete a note by ID"),
	}
}
