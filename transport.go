package backline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
)

// MockHandler produces the fake response for one registered route.
type MockHandler func(req *http.Request) (*http.Response, error)

// MockTransport is an in-memory fake backend satisfying the Doer
// contract, for environments without network access. Routes are keyed
// by method and path; unmatched requests get a JSON 404. Select it at
// construction with WithTransport; callers cannot tell it apart from
// the real transport.
type MockTransport struct {
	mu       sync.RWMutex
	handlers map[string]MockHandler
}

// NewMockTransport creates an empty mock backend.
func NewMockTransport() *MockTransport {
	return &MockTransport{
		handlers: make(map[string]MockHandler),
	}
}

// Handle registers a handler for method and path.
func (m *MockTransport) Handle(method, path string, handler MockHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[method+" "+path] = handler
}

// HandleJSON registers a fixed JSON response for method and path.
func (m *MockTransport) HandleJSON(method, path string, status int, body any) {
	m.Handle(method, path, func(req *http.Request) (*http.Response, error) {
		return MockJSONResponse(req, status, body)
	})
}

// Do implements Doer by dispatching to the registered handler.
func (m *MockTransport) Do(req *http.Request) (*http.Response, error) {
	m.mu.RLock()
	handler, ok := m.handlers[req.Method+" "+req.URL.Path]
	m.mu.RUnlock()

	if !ok {
		return MockJSONResponse(req, http.StatusNotFound, map[string]string{
			"error": fmt.Sprintf("no mock route for %s %s", req.Method, req.URL.Path),
		})
	}
	return handler(req)
}

// MockJSONResponse builds an *http.Response with body marshaled as
// JSON, for use inside MockHandler implementations.
func MockJSONResponse(req *http.Request, status int, body any) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	header := make(http.Header)
	header.Set("Content-Type", "application/json")

	return &http.Response{
		StatusCode: status,
		Status:     fmt.Sprintf("%d %s", status, http.StatusText(status)),
		Header:     header,
		Body:       io.NopCloser(bytes.NewReader(data)),
		Request:    req,
	}, nil
}
