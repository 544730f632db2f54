package run

import (
	"context"
	"strings"
	"sync"
)

// FakeCall records one command executed against a Fake.
type FakeCall struct {
	Name string
	Args []string
}

// String renders the call the same way stubs are matched, which makes
// test failure output directly comparable to Stub patterns.
func (c FakeCall) String() string {
	return commandString(c.Name, c.Args)
}

// FakeResponse is a scripted reply for a stubbed command.
type FakeResponse struct {
	Stdout string
	Stderr string
	Err    error
}

// Fake is a scripted Runner for tests. Commands are matched against
// stub patterns by longest prefix of the rendered command line, and
// each pattern holds a queue of responses so state-querying commands
// can return different answers across the lifetime of a test (e.g.
// radio off, off, then on). When a queue is exhausted its last response
// repeats; unmatched commands succeed with empty output.
//
// Fake lives in the production package (rather than a _test.go file) so
// every package that depends on Runner can share it.
type Fake struct {
	mu    sync.Mutex
	stubs map[string][]FakeResponse

	// Calls records every command in execution order.
	Calls []FakeCall
}

// NewFake creates an empty Fake.
func NewFake() *Fake {
	return &Fake{stubs: make(map[string][]FakeResponse)}
}

// Stub queues a response for commands whose rendered command line
// starts with pattern. Repeated calls with the same pattern append to
// the queue.
func (f *Fake) Stub(pattern string, resp FakeResponse) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stubs[pattern] = append(f.stubs[pattern], resp)
}

// Run implements Runner by consulting the stub table.
func (f *Fake) Run(_ context.Context, name string, args ...string) (Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Calls = append(f.Calls, FakeCall{Name: name, Args: args})

	line := commandString(name, args)

	// Longest matching prefix wins so tests can stub both a broad
	// command ("mbimcli") and a specific form of it.
	best := ""
	for pattern := range f.stubs {
		if strings.HasPrefix(line, pattern) && len(pattern) > len(best) {
			best = pattern
		}
	}
	if best == "" {
		return Result{}, nil
	}

	queue := f.stubs[best]
	resp := queue[0]
	if len(queue) > 1 {
		f.stubs[best] = queue[1:]
	}
	return Result{Stdout: resp.Stdout, Stderr: resp.Stderr}, resp.Err
}

// CommandLines returns every recorded call rendered as a command line,
// in execution order. Convenient for asserting on call sequences.
func (f *Fake) CommandLines() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	lines := make([]string, 0, len(f.Calls))
	for _, c := range f.Calls {
		lines = append(lines, c.String())
	}
	return lines
}
