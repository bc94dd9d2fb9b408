package llm

import "context"

// FakeGateway is a deterministic Gateway double for tests in this package
// and downstream packages (executive, agents) that call through a Gateway
// without standing up an HTTP provider.
type FakeGateway struct {
	Response Response
	Err      error
	Calls    []Request
}

func (f *FakeGateway) Generate(ctx context.Context, req Request) (Response, error) {
	f.Calls = append(f.Calls, req)
	if f.Err != nil {
		return Response{}, f.Err
	}
	return f.Response, nil
}
