package llm

import "context"

// MockClient is a canned-response Client for tests. It records every prompt
// it receives so tests can assert on what the engine sent — a reflection
// prompt, a compaction batch digest — without a live provider.
type MockClient struct {
	Response *Response
	Err      error
	Calls    []string
}

// Complete records the prompt and returns the canned response.
func (m *MockClient) Complete(ctx context.Context, prompt string) (*Response, error) {
	m.Calls = append(m.Calls, prompt)
	return m.Response, m.Err
}
