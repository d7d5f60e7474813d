package tool

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/hupe1980/agentloop/internal/util"
	"github.com/hupe1980/agentloop/logging"
	"github.com/hupe1980/agentloop/model"
)

// RegistryOptions configures a Registry.
type RegistryOptions struct {
	Logger logging.Logger
}

// Registry keeps the mapping between tool names and specs.
//
// Registration and lookups are guarded so a registry can be populated from
// several goroutines and read by concurrently running tool calls.
type Registry struct {
	mu     sync.RWMutex
	specs  map[string]Spec
	logger logging.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(optFns ...func(o *RegistryOptions)) *Registry {
	opts := RegistryOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Registry{specs: make(map[string]Spec), logger: opts.Logger}
}

// Register inserts a spec when its name is not in use.
func (r *Registry) Register(spec Spec) error {
	if spec.Name == "" {
		return ErrEmptyName
	}
	if spec.Handler == nil {
		return fmt.Errorf("%w: %s", ErrMissingHandler, spec.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.specs[spec.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, spec.Name)
	}

	r.specs[spec.Name] = spec
	return nil
}

// MustRegister is Register for static setup code; it panics on error.
func (r *Registry) MustRegister(specs ...Spec) {
	for _, s := range specs {
		if err := r.Register(s); err != nil {
			panic(err)
		}
	}
}

// GetSpec fetches a spec by name.
func (r *Registry) GetSpec(name string) (Spec, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	spec, ok := r.specs[name]
	if !ok {
		return Spec{}, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	return spec, nil
}

// ListSpecs returns the model-facing view of every registered tool, sorted by
// name for deterministic tool schemas.
func (r *Registry) ListSpecs() []SpecInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.specs))
	for name := range r.specs {
		names = append(names, name)
	}
	slices.Sort(names)

	out := make([]SpecInfo, 0, len(names))
	for _, name := range names {
		out = append(out, r.specs[name].Info())
	}
	return out
}

// Definitions renders every registered tool as a model-facing function
// definition, in the same order as ListSpecs.
func (r *Registry) Definitions() []model.ToolDefinition {
	specs := r.ListSpecs()
	defs := make([]model.ToolDefinition, 0, len(specs))
	for _, s := range specs {
		defs = append(defs, model.ToolDefinition{
			Type: "function",
			Function: model.FunctionDefinition{
				Name:        s.Name,
				Description: s.Description,
				Parameters:  s.Parameters,
			},
		})
	}
	return defs
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.specs)
}

// Call validates args against the tool's parameter shape and invokes its handler.
//
// Error Semantics:
//
//	unregistered name   -> error wrapping ErrUnknownTool
//	shape check failure -> {"error": "..."} result, nil error, handler not invoked
//	handler error       -> *ToolError{Code: "EXECUTION_ERROR"} (a returned *ToolError is forwarded)
//
// Panics raised by the handler are not recovered here.
func (r *Registry) Call(ctx context.Context, name string, args map[string]any) (any, error) {
	spec, err := r.GetSpec(name)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	r.logger.Debug("tool.call.start", "tool", name)

	if err := util.ValidateParameters(args, spec.Parameters); err != nil {
		r.logger.Warn("tool.call.validation_failed", "tool", name, "error", err.Error())
		return ErrorResult(fmt.Sprintf("parameter validation failed: %v", err)), nil
	}

	result, err := spec.Handler(ctx, args)
	if err != nil {
		var toolErr *ToolError
		if errors.As(err, &toolErr) {
			r.logger.Error("tool.call.error", "tool", name, "error", toolErr.Message)
			return nil, toolErr
		}

		r.logger.Error("tool.call.error", "tool", name, "error", err.Error())
		return nil, &ToolError{
			Tool:    name,
			Message: err.Error(),
			Code:    CodeExecution,
			Err:     err,
		}
	}

	r.logger.Info("tool.call.success", "tool", name, "duration_ms", time.Since(start).Milliseconds())
	return result, nil
}
