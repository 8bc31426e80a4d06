// Tool call validation.
//
// Information Hiding:
// - Check ordering (existence, permission, schema) hidden behind Check
// - Struct tag validation machinery hidden behind decodeArgs

package tools

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Sentinel errors for rejected tool calls. Callers distinguish rejection
// classes with errors.Is; the wrapped message carries the detail shown to
// the proposing agent.
var (
	// ErrUnknownTool means the named tool is not in the registry.
	ErrUnknownTool = errors.New("unknown tool")

	// ErrForbiddenTool means the tool exists but the speaker may not use it.
	ErrForbiddenTool = errors.New("forbidden tool")

	// ErrInvalidArguments means the arguments do not satisfy the tool's schema.
	ErrInvalidArguments = errors.New("invalid arguments")
)

// structValidator applies `validate` struct tags to decoded arguments.
var structValidator = validator.New()

// decodeArgs unmarshals raw arguments into a typed struct and applies its
// validation tags. Tools call this from Validate and Execute.
func decodeArgs(raw json.RawMessage, out interface{}) error {
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("malformed arguments: %w", err)
	}
	if err := structValidator.Struct(out); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			details := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				details = append(details, fmt.Sprintf("%s fails '%s'", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("validation failed: %s", strings.Join(details, "; "))
		}
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}

// CallValidator checks proposed tool calls against the registry, the
// speaker's permitted set, and the tool's argument schema, in that order.
type CallValidator struct {
	registry *Registry
}

// NewCallValidator creates a validator bound to a registry.
func NewCallValidator(registry *Registry) *CallValidator {
	return &CallValidator{registry: registry}
}

// Check validates a proposed call and returns the resolved tool.
//
// The ordering is fixed: existence before permission before arguments.
// A speaker is told a tool does not exist rather than that arguments are
// wrong for a tool it could never run.
func (v *CallValidator) Check(name string, args json.RawMessage, permitted map[string]bool) (Tool, error) {
	tool, exists := v.registry.Get(name)
	if !exists {
		return nil, fmt.Errorf("%w: '%s' is not a registered tool (available: %s)",
			ErrUnknownTool, name, strings.Join(v.registry.Names(), ", "))
	}

	if permitted != nil && !permitted[name] {
		return nil, fmt.Errorf("%w: '%s' is not permitted for this speaker", ErrForbiddenTool, name)
	}

	params, err := decodeParams(args)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidArguments, err)
	}
	if err := checkSchema(params, SchemaFor(tool)); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidArguments, err)
	}

	if err := tool.Validate(args); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidArguments, err)
	}

	return tool, nil
}

// decodeParams parses raw call arguments into a generic map. Empty
// arguments decode as an empty object.
func decodeParams(raw json.RawMessage) (map[string]interface{}, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return map[string]interface{}{}, nil
	}
	var params map[string]interface{}
	if err := json.Unmarshal([]byte(trimmed), &params); err != nil {
		return nil, fmt.Errorf("arguments are not a JSON object: %v", err)
	}
	if params == nil {
		params = map[string]interface{}{}
	}
	return params, nil
}
