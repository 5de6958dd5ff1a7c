// Package testutil provides testing utilities for the Slack export tool.
package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
)

// MockResponse defines one scripted response from a mock API method.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
}

// MockSlack is a configurable mock Slack Web API server. Methods are
// registered by name ("search.messages") with either a handler function or a
// scripted response sequence; the last scripted response repeats once the
// sequence is exhausted.
type MockSlack struct {
	server *httptest.Server

	mu        sync.Mutex
	handlers  map[string]http.HandlerFunc
	sequences map[string][]MockResponse
	seqIndex  map[string]int

	// RequestCount tracks requests per method name.
	RequestCount map[string]int

	// LastAuthHeader is the Authorization header of the most recent request.
	LastAuthHeader string

	// LastQuery holds the query parameters of the most recent request per method.
	LastQuery map[string]map[string]string
}

// NewMockSlack creates and starts a new mock Slack API server.
func NewMockSlack() *MockSlack {
	mock := &MockSlack{
		handlers:     make(map[string]http.HandlerFunc),
		sequences:    make(map[string][]MockResponse),
		seqIndex:     make(map[string]int),
		RequestCount: make(map[string]int),
		LastQuery:    make(map[string]map[string]string),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(mock.dispatch))
	return mock
}

func (m *MockSlack) dispatch(w http.ResponseWriter, r *http.Request) {
	method := strings.TrimPrefix(r.URL.Path, "/")

	m.mu.Lock()
	m.RequestCount[method]++
	m.LastAuthHeader = r.Header.Get("Authorization")

	query := make(map[string]string)
	for k, vs := range r.URL.Query() {
		if len(vs) > 0 {
			query[k] = vs[0]
		}
	}
	m.LastQuery[method] = query

	handler, hasHandler := m.handlers[method]
	var scripted *MockResponse
	if seq, ok := m.sequences[method]; ok && len(seq) > 0 {
		idx := m.seqIndex[method]
		if idx >= len(seq) {
			idx = len(seq) - 1
		}
		resp := seq[idx]
		scripted = &resp
		m.seqIndex[method]++
	}
	m.mu.Unlock()

	if hasHandler {
		handler(w, r)
		return
	}
	if scripted != nil {
		for k, v := range scripted.Headers {
			w.Header().Set(k, v)
		}
		status := scripted.StatusCode
		if status == 0 {
			status = http.StatusOK
		}
		w.WriteHeader(status)
		fmt.Fprint(w, scripted.Body)
		return
	}

	// Unregistered method: Slack-style unknown method error.
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"ok":false,"error":"unknown_method","req_method":%q}`, method)
}

// Handle registers a custom handler for an API method.
func (m *MockSlack) Handle(method string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[method] = handler
}

// Script registers a response sequence for an API method. The final response
// repeats for any further requests.
func (m *MockSlack) Script(method string, responses ...MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sequences[method] = responses
	m.seqIndex[method] = 0
}

// OK is shorthand for a 200 response with the given JSON body.
func OK(body string) MockResponse {
	return MockResponse{StatusCode: http.StatusOK, Body: body}
}

// RateLimited is a 429 response with the given Retry-After value.
func RateLimited(retryAfter string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"ok":false,"error":"ratelimited"}`,
		Headers:    map[string]string{"Retry-After": retryAfter},
	}
}

// Requests returns how many requests the named method received.
func (m *MockSlack) Requests(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.RequestCount[method]
}

// URL returns the mock server URL, suitable as a client BaseURL.
func (m *MockSlack) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockSlack) Close() {
	m.server.Close()
}

// Reset clears tracking counters and scripted sequence positions.
func (m *MockSlack) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = make(map[string]int)
	m.LastQuery = make(map[string]map[string]string)
	for k := range m.seqIndex {
		m.seqIndex[k] = 0
	}
}
