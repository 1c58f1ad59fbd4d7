// Package adapter pluggably dispatches work to external coding agents.
// An Adapter knows how to validate that its CLI is installed, build a
// role prompt wired to the platform's MCP tools, and run the agent as a
// subprocess under a timeout.
package adapter

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/openclaw/openclaw/internal/control/models"
	"github.com/openclaw/openclaw/internal/subprocess"
)

// DefaultAdapterName is the platform default coding agent.
const DefaultAdapterName = "claude"

// DefaultTimeoutSeconds bounds an adapter run when the agent config
// does not override it.
const DefaultTimeoutSeconds = 1800

// AdapterConfig carries everything an adapter needs to spawn the coding
// agent in the right context.
type AdapterConfig struct {
	// MCPServerCommand is the argv of the tool bridge the coding agent
	// connects to over stdio.
	MCPServerCommand []string
	// APIURL is the control-plane base URL the bridge talks to.
	APIURL           string
	WorkingDirectory string
	AgentID          string
	TeamID           string
	TaskID           int64
	TimeoutSeconds   int
	EnvOverrides     map[string]string
}

// AdapterResult is the structured outcome of one adapter run.
type AdapterResult struct {
	ExitCode        int     `json:"exit_code"`
	Stdout          string  `json:"stdout"`
	Stderr          string  `json:"stderr"`
	DurationSeconds float64 `json:"duration_seconds"`
	Error           string  `json:"error,omitempty"`
}

// Ok reports whether the run finished cleanly.
func (r *AdapterResult) Ok() bool {
	return r != nil && r.ExitCode == 0 && r.Error == ""
}

// Adapter is a pluggable coding-agent backend.
type Adapter interface {
	Name() string
	// ValidateEnvironment checks that the adapter's CLI is installed
	// and returns a human-readable status message.
	ValidateEnvironment(ctx context.Context) (bool, string)
	BuildPrompt(ctx context.Context, in PromptInput) string
	Run(ctx context.Context, prompt string, cfg AdapterConfig) (*AdapterResult, error)
}

// Registry holds the available adapters.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

// NewRegistry creates an empty adapter registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

// Register adds or replaces an adapter under its own name.
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.Name()] = a
}

// Get returns the named adapter, or an adapter_unavailable error naming
// the registered alternatives.
func (r *Registry) Get(name string) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown adapter %q (available: %s)",
			models.ErrAdapterUnavailable, name, strings.Join(r.namesLocked(), ", "))
	}
	return a, nil
}

// Names lists registered adapter names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.namesLocked()
}

// All returns the registered adapters sorted by name.
func (r *Registry) All() []Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Adapter, 0, len(r.adapters))
	for _, name := range r.namesLocked() {
		out = append(out, r.adapters[name])
	}
	return out
}

func (r *Registry) namesLocked() []string {
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// runAdapterSubprocess executes argv under the adapter config's working
// directory, env overrides and timeout, translating the subprocess
// outcome into an AdapterResult. A timeout is a result, not an error:
// the runner classifies it from the Error field.
func runAdapterSubprocess(ctx context.Context, argv []string, cfg AdapterConfig) (*AdapterResult, error) {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if cfg.TimeoutSeconds <= 0 {
		timeout = DefaultTimeoutSeconds * time.Second
	}

	res, err := subprocess.Run(ctx, argv[0], argv[1:], subprocess.Options{
		Dir:     cfg.WorkingDirectory,
		Env:     cfg.EnvOverrides,
		Timeout: timeout,
	})
	if err != nil {
		if errors.Is(err, subprocess.ErrTimeout) {
			return &AdapterResult{
				ExitCode:        -1,
				Stdout:          res.Stdout,
				Stderr:          res.Stderr,
				DurationSeconds: res.Duration.Seconds(),
				Error:           fmt.Sprintf("timed out after %.0fs", timeout.Seconds()),
			}, nil
		}
		return nil, err
	}

	out := &AdapterResult{
		ExitCode:        res.ExitCode,
		Stdout:          res.Stdout,
		Stderr:          res.Stderr,
		DurationSeconds: res.Duration.Seconds(),
	}
	if res.ExitCode != 0 {
		out.Error = fmt.Sprintf("process exited with code %d", res.ExitCode)
	}
	return out, nil
}
