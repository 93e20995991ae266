// Package actions exposes the ticket registry and the notifier as named
// action servers. Callers address a server by name and invoke an action with
// a loosely-typed parameter map, the way an agent tool call arrives.
//
// Execution failures are reported in Result rather than as Go errors, so a
// caller driving actions from model output never has to distinguish
// programming errors from bad input.
package actions

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/DataNeuron/enterpirse-workflow-agent/pkg/logx"
)

// Property describes one action parameter.
type Property struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

// InputSchema is the JSON-schema-shaped parameter description of an action.
type InputSchema struct {
	Properties map[string]Property `json:"properties"`
	Type       string              `json:"type"`
	Required   []string            `json:"required,omitempty"`
}

// ToolDescriptor advertises one action of a server.
type ToolDescriptor struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema InputSchema `json:"input_schema"`
}

// Result is the outcome of an action.
type Result struct {
	Data    map[string]any `json:"data,omitempty"`
	Error   string         `json:"error,omitempty"`
	Success bool           `json:"success"`
}

// Server is a named set of actions.
type Server interface {
	// Name returns the server identifier used for routing.
	Name() string
	// Tools lists the actions this server accepts.
	Tools() []ToolDescriptor
	// Execute runs an action. It never returns a Go error: failures,
	// including unknown actions, come back as Result{Success: false}.
	Execute(ctx context.Context, action string, params map[string]any) Result
}

// Ok builds a successful result.
func Ok(data map[string]any) Result {
	return Result{Success: true, Data: data}
}

// Fail builds a failed result with a message.
func Fail(format string, args ...any) Result {
	return Result{Error: fmt.Sprintf(format, args...)}
}

// UnknownAction is the soft-fail result for an action a server does not know.
func UnknownAction(action string) Result {
	return Fail("Unknown action: %s", action)
}

// Registry routes action calls to registered servers.
type Registry struct {
	servers map[string]Server
	logger  *logx.Logger
	mu      sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		servers: make(map[string]Server),
		logger:  logx.NewLogger("actions"),
	}
}

// Register adds a server. Names must be unique and non-empty.
func (r *Registry) Register(server Server) error {
	if server == nil {
		return fmt.Errorf("server cannot be nil")
	}
	name := server.Name()
	if name == "" {
		return fmt.Errorf("server name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.servers[name]; exists {
		return fmt.Errorf("server %s already registered", name)
	}
	r.servers[name] = server
	return nil
}

// Get retrieves a server by name.
func (r *Registry) Get(name string) (Server, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	server, exists := r.servers[name]
	if !exists {
		return nil, fmt.Errorf("server %s not found", name)
	}
	return server, nil
}

// Names returns the registered server names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.servers))
	for name := range r.servers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Call executes action on the named server. An unknown server soft-fails
// like an unknown action.
func (r *Registry) Call(ctx context.Context, serverName, action string, params map[string]any) Result {
	server, err := r.Get(serverName)
	if err != nil {
		r.logger.Warn("Call to unregistered server %s (action %s)", serverName, action)
		return Fail("Unknown server: %s", serverName)
	}
	if params == nil {
		params = map[string]any{}
	}
	return server.Execute(ctx, action, params)
}
