package tooling

import (
	"context"

	"billtool/internal/billing"
)

var (
	subscriptions = collection{res: billing.Subscriptions, singular: "Subscription"}
	plans         = collection{res: billing.Plans, singular: "Plan"}
	items         = collection{res: billing.Items, singular: "Item"}
	coupons       = collection{res: billing.Coupons, singular: "Coupon"}
	taxRates      = collection{res: billing.TaxRates, singular: "Tax rate"}
)

func subscriptionTools() []Tool {
	return []Tool{
		subscriptions.list(ListSubscriptions, "List subscriptions with optional paging, sorting and filters"),
		subscriptions.get(GetSubscription, "Retrieve one subscription by ID"),
		subscriptions.create(CreateSubscription, "Subscribe a customer to a plan",
			WithProperty("customer", "Customer ID", true),
			WithProperty("plan", "Plan ID", true),
			WithProperty("quantity", "Plan quantity", false),
			WithProperty("addons", "Addons: [{plan, quantity}]", false)),
		subscriptions.update(UpdateSubscription, "Change a subscription's plan, quantity or addons"),
		New(CancelSubscription, "Cancel a subscription",
			func(ctx context.Context, env Env, in IDInput) (Result, error) {
				out, err := env.Client.Do(ctx, billing.CancelSubscription, in.ID.String(), nil)
				if err != nil {
					return nil, err
				}
				return Raw{Value: out}, nil
			}),
		New(PreviewSubscription, "Preview the first invoice of a subscription without creating it",
			func(ctx context.Context, env Env, in BagInput) (Result, error) {
				out, err := env.Client.Do(ctx, billing.PreviewSubscription, "", in.Params())
				if err != nil {
					return nil, err
				}
				return Raw{Value: out}, nil
			},
			WithProperty("customer", "Customer ID", true),
			WithProperty("plan", "Plan ID", true)),
	}
}

func catalogTools() []Tool {
	var tools []Tool
	tools = append(tools, plans.crud(
		[5]Name{ListPlans, GetPlan, CreatePlan, UpdatePlan, DeletePlan}, "plans",
		WithProperty("id", "Plan ID (chosen by you)", true),
		WithProperty("name", "Plan name", true),
		WithProperty("amount", "Price per interval", true),
		WithProperty("interval", "day, week, month or year", true),
		WithProperty("interval_count", "Number of intervals between bills", false),
	)...)
	tools = append(tools, items.crud(
		[5]Name{ListItems, GetItem, CreateItem, UpdateItem, DeleteItem}, "catalog items",
		WithProperty("id", "Item ID (chosen by you)", true),
		WithProperty("name", "Item name", true),
		WithProperty("unit_cost", "Default unit cost", false),
	)...)
	tools = append(tools, coupons.crud(
		[5]Name{ListCoupons, GetCoupon, CreateCoupon, UpdateCoupon, DeleteCoupon}, "coupons",
		WithProperty("id", "Coupon code", true),
		WithProperty("name", "Coupon name", true),
		WithProperty("value", "Discount amount or percentage", true),
		WithProperty("is_percent", "Whether value is a percentage", false),
	)...)
	tools = append(tools, taxRates.crud(
		[5]Name{ListTaxRates, GetTaxRate, CreateTaxRate, UpdateTaxRate, DeleteTaxRate}, "tax rates",
		WithProperty("id", "Tax rate ID (chosen by you)", true),
		WithProperty("name", "Tax rate name", true),
		WithProperty("value", "Rate amount or percentage", true),
		WithProperty("is_percent", "Whether value is a percentage", false),
	)...)
	return tools
}
