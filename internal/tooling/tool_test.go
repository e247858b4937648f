package tooling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"billtool/internal/billing"
	"billtool/internal/domain"
)

// =============================================================================
// Helpers
// =============================================================================

func mustTool(t *testing.T, name Name) Tool {
	t.Helper()
	for _, tool := range All() {
		if tool.Name() == name {
			return tool
		}
	}
	t.Fatalf("no tool named %q", name)
	return nil
}

func call(t *testing.T, name Name, fc *fakeClient, args string) (Result, error) {
	t.Helper()
	return mustTool(t, name).Call(context.Background(), Env{Client: fc}, json.RawMessage(args))
}

func schemaOf(t *testing.T, tool Tool) map[string]any {
	t.Helper()
	var s map[string]any
	if err := json.Unmarshal(tool.Schema(), &s); err != nil {
		t.Fatalf("schema unmarshal: %v", err)
	}
	return s
}

// =============================================================================
// Schema generation
// =============================================================================

func TestNew_WhenInputIsClosed_ShouldForbidExtraProperties(t *testing.T) {
	s := schemaOf(t, mustTool(t, ListInvoices))
	if s["additionalProperties"] != false {
		t.Errorf("list schema should forbid extra properties, got %v", s["additionalProperties"])
	}
	props := s["properties"].(map[string]any)
	for _, key := range []string{"page", "per_page", "sort", "filter", "metadata", "updated_after", "updated_before", "expand"} {
		if _, ok := props[key]; !ok {
			t.Errorf("list schema missing %q", key)
		}
	}
	if _, ok := s["required"]; ok {
		t.Errorf("list schema should have no required fields, got %v", s["required"])
	}
}

func TestNew_WhenInputEmbedsBag_ShouldAllowExtraPropertiesAndApplyOptions(t *testing.T) {
	s := schemaOf(t, mustTool(t, CreateInvoice))
	if _, ok := s["additionalProperties"]; ok {
		t.Errorf("open schema should not restrict additional properties, got %v", s["additionalProperties"])
	}
	props := s["properties"].(map[string]any)
	if _, ok := props["customer"]; !ok {
		t.Error("WithProperty should document customer")
	}
	req, _ := s["required"].([]any)
	if len(req) != 1 || req[0] != "customer" {
		t.Errorf("required = %v, want [customer]", req)
	}
}

func TestNew_FlexFieldsShouldAcceptNumberOrString(t *testing.T) {
	s := schemaOf(t, mustTool(t, CreatePayment))
	amount := s["properties"].(map[string]any)["amount"].(map[string]any)
	anyOf, ok := amount["anyOf"].([]any)
	if !ok || len(anyOf) != 2 {
		t.Fatalf("amount should be anyOf number/string, got %v", amount)
	}
	if amount["description"] != "Payment amount" {
		t.Errorf("field description should survive custom schema, got %v", amount["description"])
	}
}

func TestGenerateSchema_WhenMarshalFails_ShouldReturnEmpty(t *testing.T) {
	orig := marshalFunc
	marshalFunc = func(any) ([]byte, error) { return nil, errors.New("boom") }
	defer func() { marshalFunc = orig }()

	if got := GenerateSchema(IDInput{}); got != "" {
		t.Errorf("expected empty schema, got %q", got)
	}
}

func TestNew_WhenSchemaCannotBeMarshalled_CallShouldFail(t *testing.T) {
	orig := marshalFunc
	marshalFunc = func(any) ([]byte, error) { return nil, errors.New("boom") }
	defer func() { marshalFunc = orig }()

	tool := New(GetInvoice, "x", func(context.Context, Env, IDInput) (Result, error) { return Raw{}, nil })
	_, err := tool.Call(context.Background(), Env{}, json.RawMessage(`{"id":1}`))
	if err == nil || !strings.Contains(err.Error(), "schema") {
		t.Errorf("expected schema error, got %v", err)
	}
}

// =============================================================================
// Argument validation and coercion
// =============================================================================

func TestCall_WhenArgsInvalid_ShouldReturnArgumentErrorBeforeNetwork(t *testing.T) {
	tests := []struct {
		name      string
		tool      Name
		args      string
		wantField string
	}{
		{"not an object", GetInvoice, `[1,2]`, ""},
		{"malformed json", GetInvoice, `{"id":`, ""},
		{"missing id", GetInvoice, `{}`, ""},
		{"unknown field on closed input", ListInvoices, `{"page":1,"bogus":true}`, ""},
		{"id with slash", GetInvoice, `{"id":"1/void"}`, "id"},
		{"non-numeric amount", CreatePayment, `{"customer":"42","amount":"lots"}`, "amount"},
		{"non-numeric customer", CreateCreditBalanceAdjustment, `{"customer":"abc","amount":5}`, "customer"},
		{"fractional page", ListInvoices, `{"page":"1.5"}`, "page"},
		{"bad source type", DeletePaymentSource, `{"customer_id":1,"id":2,"source_type":"cash"}`, "source_type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fc := newFakeClient(`{}`)
			_, err := call(t, tt.tool, fc, tt.args)
			var ae *ArgumentError
			if !errors.As(err, &ae) {
				t.Fatalf("expected *ArgumentError, got %T: %v", err, err)
			}
			if ae.Tool != tt.tool {
				t.Errorf("Tool = %q, want %q", ae.Tool, tt.tool)
			}
			if tt.wantField != "" && ae.Field != tt.wantField {
				t.Errorf("Field = %q, want %q (err: %v)", ae.Field, tt.wantField, err)
			}
			if fc.count() != 0 {
				t.Errorf("client should not be called, got %d calls", fc.count())
			}
		})
	}
}

func TestArgumentError_ShouldNameFieldAndValue(t *testing.T) {
	fc := newFakeClient(`{}`)
	_, err := call(t, CreatePayment, fc, `{"customer":"4x2","amount":1}`)
	if err == nil {
		t.Fatal("expected error")
	}
	msg := err.Error()
	for _, want := range []string{`"create_payment"`, `"customer"`, `"4x2"`} {
		if !strings.Contains(msg, want) {
			t.Errorf("message %q should contain %s", msg, want)
		}
	}
}

func TestFlexInt_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		in      string
		want    FlexInt
		wantErr bool
	}{
		{`42`, 42, false},
		{`"42"`, 42, false},
		{`" 7 "`, 7, false},
		{`-3`, -3, false},
		{`42.0`, 42, false},
		{`"19.99"`, 0, true},
		{`"abc"`, 0, true},
		{`true`, 0, true},
		{`""`, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var got FlexInt
			err := json.Unmarshal([]byte(tt.in), &got)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestFlexFloat_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		in      string
		want    FlexFloat
		wantErr bool
	}{
		{`19.99`, 19.99, false},
		{`"19.99"`, 19.99, false},
		{`"-5"`, -5, false},
		{`"NaN"`, 0, true},
		{`"Inf"`, 0, true},
		{`"12abc"`, 0, true},
		{`null`, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var got FlexFloat
			err := json.Unmarshal([]byte(tt.in), &got)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFlexID_And_FlexString_UnmarshalJSON(t *testing.T) {
	var id FlexID
	if err := json.Unmarshal([]byte(`1234`), &id); err != nil || id != "1234" {
		t.Errorf("FlexID from number: got %q, %v", id, err)
	}
	if err := json.Unmarshal([]byte(`"inv_9"`), &id); err != nil || id != "inv_9" {
		t.Errorf("FlexID from string: got %q, %v", id, err)
	}
	for _, bad := range []string{`""`, `"."`, `".."`, `"a?b"`, `"a/b"`, `"a#b"`, `"..%2f12"`, `"%2e%2e"`, `{}`} {
		if err := json.Unmarshal([]byte(bad), &id); err == nil {
			t.Errorf("FlexID should reject %s", bad)
		}
	}
	var s FlexString
	for in, want := range map[string]FlexString{`"paid"`: "paid", `12`: "12", `true`: "true"} {
		if err := json.Unmarshal([]byte(in), &s); err != nil || s != want {
			t.Errorf("FlexString(%s) = %q, %v; want %q", in, s, err, want)
		}
	}
}

// =============================================================================
// Results
// =============================================================================

func TestNormalize_WhenFormatted_ShouldReturnUnchanged(t *testing.T) {
	want := domain.Response{Content: []domain.ContentBlock{
		{Type: domain.ContentText, Text: "one"},
		{Type: domain.ContentText, Text: "two"},
	}}
	got, err := Normalize(Formatted{Response: want})
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Content) != 2 || &got.Content[0] != &want.Content[0] {
		t.Errorf("Formatted should pass through without copying, got %+v", got)
	}
}

func TestNormalize_WhenRaw_ShouldMatchTwoSpaceJSON(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  string
	}{
		{"object", map[string]any{"a": 1, "b": []int{1, 2}}, "{\n  \"a\": 1,\n  \"b\": [\n    1,\n    2\n  ]\n}"},
		{"array", []string{"x"}, "[\n  \"x\"\n]"},
		{"string", "a<b>&c", `"a<b>&c"`},
		{"raw message", json.RawMessage(`{"id":7,"items":[]}`), "{\n  \"id\": 7,\n  \"items\": []\n}"},
		{"nil", nil, "null"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(Raw{Value: tt.value})
			if err != nil {
				t.Fatal(err)
			}
			if len(got.Content) != 1 || got.Content[0].Type != domain.ContentText {
				t.Fatalf("unexpected envelope %+v", got)
			}
			if got.Content[0].Text != tt.want {
				t.Errorf("text =\n%s\nwant\n%s", got.Content[0].Text, tt.want)
			}
		})
	}
}

func TestNormalize_WhenPointerResult_ShouldNotPanicOnNil(t *testing.T) {
	var nilFormatted *Formatted
	var nilRaw *Raw
	tests := []struct {
		name string
		in   Result
		want string
	}{
		{"nil formatted", nilFormatted, "null"},
		{"nil raw", nilRaw, "null"},
		{"formatted", &Formatted{Response: domain.TextResponse("ok")}, "ok"},
		{"raw", &Raw{Value: 1}, "1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.in)
			if err != nil {
				t.Fatal(err)
			}
			if got.Text() != tt.want {
				t.Errorf("want %q, got %q", tt.want, got.Text())
			}
		})
	}
}

func TestNormalize_WhenValueNotEncodable_ShouldFail(t *testing.T) {
	if _, err := Normalize(Raw{Value: make(chan int)}); err == nil {
		t.Error("expected encode error")
	}
}

// =============================================================================
// Handlers
// =============================================================================

func TestListInvoices_ShouldPassOnlySuppliedOptions(t *testing.T) {
	fc := newFakeClient(`[]`)
	if _, err := call(t, ListInvoices, fc, `{"page":2}`); err != nil {
		t.Fatal(err)
	}
	got := fc.last()
	if got.Method != "List" || got.Resource != billing.Invoices {
		t.Fatalf("unexpected call %+v", got)
	}
	want := billing.ListOptions{Page: 2}
	if fmt.Sprintf("%+v", got.Opts) != fmt.Sprintf("%+v", want) {
		t.Errorf("options = %+v, want %+v", got.Opts, want)
	}
}

func TestListInvoices_ShouldStringifyFilters(t *testing.T) {
	fc := newFakeClient(`[]`)
	if _, err := call(t, ListInvoices, fc, `{"filter":{"customer":12,"status":"paid"},"per_page":"50"}`); err != nil {
		t.Fatal(err)
	}
	opts := fc.last().Opts
	if opts.PerPage != 50 || opts.Filter["customer"] != "12" || opts.Filter["status"] != "paid" {
		t.Errorf("unexpected options %+v", opts)
	}
}

func TestCreatePayment_ShouldCoerceCustomerAndAmount(t *testing.T) {
	fc := newFakeClient(`{"id":1}`)
	if _, err := call(t, CreatePayment, fc, `{"customer":"42","amount":"19.99"}`); err != nil {
		t.Fatal(err)
	}
	p := fc.last().Params
	if len(p) != 2 {
		t.Fatalf("expected exactly customer and amount, got %v", p)
	}
	if v, ok := p["customer"].(int64); !ok || v != 42 {
		t.Errorf("customer = %#v, want int64(42)", p["customer"])
	}
	if v, ok := p["amount"].(float64); !ok || v != 19.99 {
		t.Errorf("amount = %#v, want float64(19.99)", p["amount"])
	}
}

func TestCreateInvoice_ShouldForwardBagAndFormatResult(t *testing.T) {
	fc := newFakeClient(`{"id":5,"number":"INV-0005"}`)
	res, err := call(t, CreateInvoice, fc, `{"customer":3,"items":[{"name":"x","unit_cost":"9.50"}]}`)
	if err != nil {
		t.Fatal(err)
	}
	p := fc.last().Params
	if p["customer"] != json.Number("3") {
		t.Errorf("customer should be forwarded unchanged, got %#v", p["customer"])
	}
	f, ok := res.(Formatted)
	if !ok {
		t.Fatalf("expected Formatted, got %T", res)
	}
	want := "Invoice created successfully:\n{\n  \"id\": 5,\n  \"number\": \"INV-0005\"\n}"
	if f.Response.Text() != want {
		t.Errorf("text =\n%s\nwant\n%s", f.Response.Text(), want)
	}
}

func TestUpdateCustomer_ShouldSendBagWithoutID(t *testing.T) {
	fc := newFakeClient(`{}`)
	if _, err := call(t, UpdateCustomer, fc, `{"id":"12","email":"a@b.c"}`); err != nil {
		t.Fatal(err)
	}
	got := fc.last()
	if got.Method != "Update" || got.ID != "12" {
		t.Fatalf("unexpected call %+v", got)
	}
	if _, ok := got.Params["id"]; ok || got.Params["email"] != "a@b.c" {
		t.Errorf("unexpected params %v", got.Params)
	}
}

func TestDeleteChasingCadence_ShouldReturnDeletedMessage(t *testing.T) {
	fc := newFakeClient(``)
	res, err := call(t, DeleteChasingCadence, fc, `{"id":7}`)
	if err != nil {
		t.Fatal(err)
	}
	if got := res.(Formatted).Response.Text(); got != "Chasing cadence 7 deleted successfully." {
		t.Errorf("got %q", got)
	}
}

func TestDeleteChasingCadence_WhenClientFails_ShouldReturnSameError(t *testing.T) {
	fc := newFakeClient(``)
	fc.err = errors.New("not found")
	_, err := call(t, DeleteChasingCadence, fc, `{"id":1}`)
	if err != fc.err {
		t.Errorf("expected the client's error value, got %v", err)
	}
}

func TestActions_ShouldRouteToOperation(t *testing.T) {
	tests := []struct {
		tool   Name
		args   string
		op     billing.Operation
		id     string
		params billing.Params
	}{
		{VoidInvoice, `{"id":9}`, billing.VoidInvoice, "9", billing.Params{}},
		{SendInvoiceEmail, `{"id":9,"to":[{"email":"a@b.c"}]}`, billing.SendInvoiceEmail, "9", billing.Params{"to": []any{map[string]any{"email": "a@b.c"}}}},
		{GetCustomerBalance, `{"id":"4","currency":"eur"}`, billing.GetCustomerBalance, "4", billing.Params{"currency": "eur"}},
		{ConvertEstimateToInvoice, `{"id":3}`, billing.ConvertEstimate, "3", billing.Params{}},
		{ListPaymentLinkSessions, `{"id":"pl_1","page":2}`, billing.ListPaymentLinkSessions, "pl_1", billing.Params{"page": json.Number("2")}},
	}
	for _, tt := range tests {
		t.Run(string(tt.tool), func(t *testing.T) {
			fc := newFakeClient(`{}`)
			if _, err := call(t, tt.tool, fc, tt.args); err != nil {
				t.Fatal(err)
			}
			got := fc.last()
			if got.Op != tt.op || got.ID != tt.id {
				t.Errorf("call = %+v, want op %v id %q", got, tt.op, tt.id)
			}
			if fmt.Sprint(got.Params) != fmt.Sprint(tt.params) {
				t.Errorf("params = %v, want %v", got.Params, tt.params)
			}
		})
	}
}

func TestPaymentPlanAndSubscriptionOps(t *testing.T) {
	fc := newFakeClient(`{"status":"active"}`)
	if _, err := call(t, CreatePaymentPlan, fc, `{"invoice_id":8,"installments":[{"date":1,"amount":5}]}`); err != nil {
		t.Fatal(err)
	}
	got := fc.last()
	if got.Op != billing.CreatePaymentPlan || got.ID != "8" || got.Params["installments"] == nil {
		t.Errorf("unexpected call %+v", got)
	}
	if _, ok := got.Params["invoice_id"]; ok {
		t.Error("invoice_id should not be forwarded")
	}

	res, err := call(t, CancelPaymentPlan, fc, `{"invoice_id":8}`)
	if err != nil {
		t.Fatal(err)
	}
	if res.(Formatted).Response.Text() != "Payment plan for invoice 8 cancelled successfully." {
		t.Errorf("unexpected result %+v", res)
	}

	if _, err := call(t, PreviewSubscription, fc, `{"customer":1,"plan":"gold"}`); err != nil {
		t.Fatal(err)
	}
	if got := fc.last(); got.Op != billing.PreviewSubscription || got.ID != "" {
		t.Errorf("unexpected preview call %+v", got)
	}
}

func TestCustomerScopedTools_ShouldUseNestedResource(t *testing.T) {
	tests := []struct {
		tool Name
		args string
		res  billing.Resource
		id   string
	}{
		{ListContacts, `{"customer_id":12}`, "customers/12/contacts", ""},
		{GetContact, `{"customer_id":12,"id":3}`, "customers/12/contacts", "3"},
		{UpdateContact, `{"customer_id":12,"id":3,"name":"Bo"}`, "customers/12/contacts", "3"},
		{ListPendingLineItems, `{"customer_id":"12"}`, "customers/12/line_items", ""},
		{ListPaymentSources, `{"customer_id":12}`, "customers/12/payment_sources", ""},
		{DeletePaymentSource, `{"customer_id":12,"id":5,"source_type":"bank_account"}`, "customers/12/bank_accounts", "5"},
		{DeletePaymentSource, `{"customer_id":12,"id":5,"source_type":"card"}`, "customers/12/cards", "5"},
		{ListNotes, `{"invoice_id":44}`, "invoices/44/notes", ""},
		{ListNotes, `{"customer_id":12}`, "customers/12/notes", ""},
	}
	for _, tt := range tests {
		t.Run(string(tt.tool)+"/"+string(tt.res), func(t *testing.T) {
			fc := newFakeClient(`{}`)
			if _, err := call(t, tt.tool, fc, tt.args); err != nil {
				t.Fatal(err)
			}
			got := fc.last()
			if got.Resource != tt.res || got.ID != tt.id {
				t.Errorf("call = %+v, want %s id %q", got, tt.res, tt.id)
			}
			if _, ok := got.Params["customer_id"]; ok {
				t.Error("customer_id should not be forwarded in the body")
			}
		})
	}
}

func TestListNotes_WhenNoParent_ShouldFail(t *testing.T) {
	fc := newFakeClient(`[]`)
	_, err := call(t, ListNotes, fc, `{}`)
	var ae *ArgumentError
	if !errors.As(err, &ae) || ae.Tool != ListNotes {
		t.Fatalf("expected ArgumentError for list_notes, got %v", err)
	}
}

func TestCreateRefund_ShouldPostAmountToCharge(t *testing.T) {
	fc := newFakeClient(`{"id":2}`)
	if _, err := call(t, CreateRefund, fc, `{"charge_id":77,"amount":"10"}`); err != nil {
		t.Fatal(err)
	}
	got := fc.last()
	if got.Op != billing.CreateRefund || got.ID != "77" || got.Params["amount"] != float64(10) {
		t.Errorf("unexpected call %+v", got)
	}
}
