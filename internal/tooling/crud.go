package tooling

import (
	"context"

	"billtool/internal/billing"
)

// collection builds the standard tools of a top-level resource. singular is
// used in result messages ("Invoice created successfully:").
type collection struct {
	res      billing.Resource
	singular string
}

func (c collection) list(name Name, desc string) Tool {
	return New(name, desc, func(ctx context.Context, env Env, in ListParams) (Result, error) {
		out, err := env.Client.List(ctx, c.res, in.Options())
		if err != nil {
			return nil, err
		}
		return Raw{Value: out}, nil
	})
}

func (c collection) get(name Name, desc string) Tool {
	return New(name, desc, func(ctx context.Context, env Env, in IDInput) (Result, error) {
		out, err := env.Client.Retrieve(ctx, c.res, in.ID.String())
		if err != nil {
			return nil, err
		}
		return Raw{Value: out}, nil
	})
}

func (c collection) create(name Name, desc string, opts ...ToolOption) Tool {
	return New(name, desc, func(ctx context.Context, env Env, in BagInput) (Result, error) {
		out, err := env.Client.Create(ctx, c.res, in.Params())
		if err != nil {
			return nil, err
		}
		return created(c.singular, out)
	}, opts...)
}

func (c collection) update(name Name, desc string, opts ...ToolOption) Tool {
	return New(name, desc, func(ctx context.Context, env Env, in IDBagInput) (Result, error) {
		out, err := env.Client.Update(ctx, c.res, in.ID.String(), in.Without("id"))
		if err != nil {
			return nil, err
		}
		return Raw{Value: out}, nil
	}, opts...)
}

func (c collection) delete(name Name, desc string) Tool {
	return New(name, desc, func(ctx context.Context, env Env, in IDInput) (Result, error) {
		if err := env.Client.Delete(ctx, c.res, in.ID.String()); err != nil {
			return nil, err
		}
		return deleted(c.singular, in.ID), nil
	})
}

// crud returns list, get, create, update and delete in that order.
func (c collection) crud(names [5]Name, plural string, opts ...ToolOption) []Tool {
	return []Tool{
		c.list(names[0], "List "+plural+" with optional paging, sorting and filters"),
		c.get(names[1], "Retrieve one "+lower(c.singular)+" by ID"),
		c.create(names[2], "Create a "+lower(c.singular), opts...),
		c.update(names[3], "Update a "+lower(c.singular)+"; fields other than id are sent as given"),
		c.delete(names[4], "Delete a "+lower(c.singular)+" by ID"),
	}
}

// action runs op on the object named by id, forwarding the other arguments.
func action(name Name, desc string, op billing.Operation, opts ...ToolOption) Tool {
	return New(name, desc, func(ctx context.Context, env Env, in IDBagInput) (Result, error) {
		out, err := env.Client.Do(ctx, op, in.ID.String(), in.Without("id"))
		if err != nil {
			return nil, err
		}
		return Raw{Value: out}, nil
	}, opts...)
}

func lower(s string) string {
	if s == "" {
		return s
	}
	b := []byte(s)
	if b[0] >= 'A' && b[0] <= 'Z' {
		b[0] += 'a' - 'A'
	}
	return string(b)
}
