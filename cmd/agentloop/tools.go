package main

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/hupe1980/agentloop/tool"
)

type calculateArgs struct {
	Operation string  `json:"operation" jsonschema:"one of add, subtract, multiply, divide, power, sqrt"`
	A         float64 `json:"a" jsonschema:"first operand"`
	B         float64 `json:"b,omitempty" jsonschema:"second operand, unused for sqrt"`
}

// builtinTools are offered to the model in every chat.
func builtinTools() ([]tool.Spec, error) {
	calcSchema, err := tool.SchemaFor[calculateArgs]()
	if err != nil {
		return nil, err
	}

	return []tool.Spec{
		tool.NewSpec("current_time", "Current local date and time in RFC 3339 format", currentTime,
			tool.WithParameters(map[string]any{
				"type": "object",
				"properties": map[string]any{
					"timezone": map[string]any{"type": "string", "description": "IANA zone, e.g. Europe/Berlin"},
				},
			})),
		tool.NewSpec("calculate", "Basic arithmetic on two numbers", calculate,
			tool.WithParameters(calcSchema)),
	}, nil
}

func currentTime(_ context.Context, args map[string]any) (any, error) {
	now := time.Now()
	if name, _ := args["timezone"].(string); name != "" {
		loc, err := time.LoadLocation(name)
		if err != nil {
			return nil, fmt.Errorf("unknown timezone %q", name)
		}
		now = now.In(loc)
	}
	return now.Format(time.RFC3339), nil
}

func calculate(_ context.Context, args map[string]any) (any, error) {
	op, _ := args["operation"].(string)
	a, _ := args["a"].(float64)
	b, _ := args["b"].(float64)

	switch op {
	case "add":
		return a + b, nil
	case "subtract":
		return a - b, nil
	case "multiply":
		return a * b, nil
	case "divide":
		if b == 0 {
			return nil, fmt.Errorf("division by zero")
		}
		return a / b, nil
	case "power":
		return math.Pow(a, b), nil
	case "sqrt":
		if a < 0 {
			return nil, fmt.Errorf("sqrt of negative number")
		}
		return math.Sqrt(a), nil
	}
	return nil, fmt.Errorf("unsupported operation %q", op)
}
