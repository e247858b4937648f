package tooling

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"billtool/internal/billing"
)

var (
	cadences         = collection{res: billing.ChasingCadences, singular: "Chasing cadence"}
	emailTemplates   = collection{res: billing.EmailTemplates, singular: "Email template"}
	lateFeeSchedules = collection{res: billing.LateFeeSchedules, singular: "Late fee schedule"}
)

// Default email templates for email steps that do not name one.
const (
	UnpaidInvoiceTemplate       = "unpaid_invoice_email"
	LatePaymentReminderTemplate = "late_payment_reminder_email"
)

const (
	agePrefix        = "age:"
	pastDueAgePrefix = "past_due_age:"
)

// NormalizeSchedule rewrites the step schedule shorthand: "-N" and "N" become
// "age:N", "+N" becomes "past_due_age:N". Canonical forms pass through.
func NormalizeSchedule(s string) (string, error) {
	s = strings.TrimSpace(s)
	switch {
	case strings.HasPrefix(s, pastDueAgePrefix):
		return s, checkDays(strings.TrimPrefix(s, pastDueAgePrefix))
	case strings.HasPrefix(s, agePrefix):
		return s, checkDays(strings.TrimPrefix(s, agePrefix))
	case strings.HasPrefix(s, "+"):
		n := s[1:]
		return pastDueAgePrefix + n, checkDays(n)
	case strings.HasPrefix(s, "-"):
		n := s[1:]
		return agePrefix + n, checkDays(n)
	default:
		return agePrefix + s, checkDays(s)
	}
}

func checkDays(n string) error {
	if n == "" {
		return errors.New("schedule needs a day count")
	}
	if _, err := strconv.ParseUint(n, 10, 32); err != nil {
		return fmt.Errorf("schedule day count %q is not a whole number", n)
	}
	return nil
}

// DefaultEmailTemplate picks the template for an email step by its schedule.
func DefaultEmailTemplate(schedule string) string {
	if strings.HasPrefix(schedule, pastDueAgePrefix) {
		return LatePaymentReminderTemplate
	}
	return UnpaidInvoiceTemplate
}

// =============================================================================
// Inputs
// =============================================================================

type cadenceStep struct {
	Name            string     `json:"name,omitempty" jsonschema_description:"Step name"`
	Action          string     `json:"action" jsonschema:"enum=email,enum=sms,enum=mail,enum=phone,enum=review,enum=escalate"`
	Schedule        FlexString `json:"schedule" jsonschema_description:"When the step runs: age:N, past_due_age:N or shorthand -N, +N, N (days)"`
	EmailTemplateID string     `json:"email_template_id,omitempty" jsonschema_description:"Defaults by schedule for email steps"`
}

type cadenceInput struct {
	Name  string        `json:"name,omitempty" jsonschema_description:"Cadence name"`
	Steps []cadenceStep `json:"steps,omitempty" jsonschema_description:"Ordered chasing steps"`
	Bag
}

type cadenceUpdateInput struct {
	ID    FlexID        `json:"id" jsonschema_description:"Chasing cadence ID"`
	Steps []cadenceStep `json:"steps,omitempty" jsonschema_description:"Replacement steps"`
	Bag
}

// cadenceSteps builds the outgoing steps: each caller-supplied step object
// with its schedule normalised and a default email template filled in.
func cadenceSteps(bag Bag, steps []cadenceStep) ([]any, error) {
	raw, _ := bag.args["steps"].([]any)
	out := make([]any, len(steps))
	for i, st := range steps {
		m := map[string]any{}
		if i < len(raw) {
			if rm, ok := raw[i].(map[string]any); ok {
				for k, v := range rm {
					m[k] = v
				}
			}
		}
		schedule, err := NormalizeSchedule(string(st.Schedule))
		if err != nil {
			return nil, &ArgumentError{
				Field: fmt.Sprintf("steps.%d.schedule", i),
				Value: describeValue(string(st.Schedule)),
				Err:   err,
			}
		}
		m["schedule"] = schedule
		if st.Action == "email" && st.EmailTemplateID == "" {
			m["email_template_id"] = DefaultEmailTemplate(schedule)
		}
		out[i] = m
	}
	return out, nil
}

// =============================================================================
// Tools
// =============================================================================

func chasingCadenceTools() []Tool {
	return []Tool{
		cadences.list(ListChasingCadences, "List chasing cadences"),
		cadences.get(GetChasingCadence, "Retrieve one chasing cadence by ID"),
		New(CreateChasingCadence, "Create a chasing cadence; step schedules accept -N (age), +N (past due) shorthand",
			func(ctx context.Context, env Env, in cadenceInput) (Result, error) {
				steps, err := cadenceSteps(in.Bag, in.Steps)
				if err != nil {
					return nil, err
				}
				params := in.Params()
				params["steps"] = steps
				env.log().Debug("create chasing cadence", "payload", params)
				out, err := env.Client.Create(ctx, billing.ChasingCadences, params)
				if err != nil {
					env.log().Error("create chasing cadence failed", "name", in.Name, "steps", len(steps), "error", err)
					return nil, err
				}
				return created(cadences.singular, out)
			},
			Requires("name", "steps"),
			WithProperty("time_of_day", "Hour of day (0-23) the cadence runs", false),
			WithProperty("min_balance", "Only chase customers owing at least this much", false)),
		New(UpdateChasingCadence, "Update a chasing cadence; steps are normalised like create",
			func(ctx context.Context, env Env, in cadenceUpdateInput) (Result, error) {
				params := in.Without("id")
				if in.Has("steps") {
					steps, err := cadenceSteps(in.Bag, in.Steps)
					if err != nil {
						return nil, err
					}
					params["steps"] = steps
				}
				env.log().Debug("update chasing cadence", "id", in.ID.String(), "payload", params)
				out, err := env.Client.Update(ctx, billing.ChasingCadences, in.ID.String(), params)
				if err != nil {
					env.log().Error("update chasing cadence failed", "id", in.ID.String(), "error", err)
					return nil, err
				}
				return Raw{Value: out}, nil
			}),
		cadences.delete(DeleteChasingCadence, "Delete a chasing cadence by ID"),
	}
}

func emailTemplateTools() []Tool {
	return emailTemplates.crud(
		[5]Name{ListEmailTemplates, GetEmailTemplate, CreateEmailTemplate, UpdateEmailTemplate, DeleteEmailTemplate},
		"email templates",
		WithProperty("id", "Template ID, e.g. unpaid_invoice_email", true),
		WithProperty("subject", "Subject line; supports template variables", true),
		WithProperty("body", "Body; supports template variables", true),
	)
}

func lateFeeTools() []Tool {
	return lateFeeSchedules.crud(
		[5]Name{ListLateFeeSchedules, GetLateFeeSchedule, CreateLateFeeSchedule, UpdateLateFeeSchedule, DeleteLateFeeSchedule},
		"late fee schedules",
		WithProperty("name", "Schedule name", true),
		WithProperty("amount", "Fee amount or percentage", true),
		WithProperty("is_percent", "Whether amount is a percentage", false),
		WithProperty("grace_period", "Days after due date before the fee applies", false),
	)
}
