package tooling

import (
	"context"
	"encoding/json"
	"sync"

	"billtool/internal/billing"
)

// =============================================================================
// fakeClient — records every billing call
// =============================================================================

type clientCall struct {
	Method   string
	Resource billing.Resource
	Op       billing.Operation
	ID       string
	Opts     billing.ListOptions
	Params   billing.Params
}

type fakeClient struct {
	mu    sync.Mutex
	calls []clientCall
	out   json.RawMessage
	err   error
}

func newFakeClient(out string) *fakeClient {
	return &fakeClient{out: json.RawMessage(out)}
}

func (f *fakeClient) record(c clientCall) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
	if f.err != nil {
		return nil, f.err
	}
	return f.out, nil
}

func (f *fakeClient) last() clientCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return clientCall{}
	}
	return f.calls[len(f.calls)-1]
}

func (f *fakeClient) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeClient) List(_ context.Context, res billing.Resource, opts billing.ListOptions) (json.RawMessage, error) {
	return f.record(clientCall{Method: "List", Resource: res, Opts: opts})
}

func (f *fakeClient) Retrieve(_ context.Context, res billing.Resource, id string) (json.RawMessage, error) {
	return f.record(clientCall{Method: "Retrieve", Resource: res, ID: id})
}

func (f *fakeClient) Create(_ context.Context, res billing.Resource, body billing.Params) (json.RawMessage, error) {
	return f.record(clientCall{Method: "Create", Resource: res, Params: body})
}

func (f *fakeClient) Update(_ context.Context, res billing.Resource, id string, body billing.Params) (json.RawMessage, error) {
	return f.record(clientCall{Method: "Update", Resource: res, ID: id, Params: body})
}

func (f *fakeClient) Delete(_ context.Context, res billing.Resource, id string) error {
	_, err := f.record(clientCall{Method: "Delete", Resource: res, ID: id})
	return err
}

func (f *fakeClient) Do(_ context.Context, op billing.Operation, id string, params billing.Params) (json.RawMessage, error) {
	return f.record(clientCall{Method: "Do", Op: op, Resource: op.Resource, ID: id, Params: params})
}

var _ Client = (*fakeClient)(nil)
var _ Client = (*billing.Client)(nil)
