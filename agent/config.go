// Agent configuration types.
//
// Information Hiding:
// - Configuration validation logic hidden
// - Default values hidden

package agent

// Config holds agent configuration. Agents do not own tools; they hold
// names into the shared registry, and the call validator enforces the set.
type Config struct {
	// Name is a unique identifier for the agent.
	Name string

	// Description explains what this agent does (shown to the scheduler).
	Description string

	// Capability tags the kind of turn this agent takes, e.g.
	// "data-acquisition", "visualization", "planning".
	Capability string

	// SystemPrompt guides the agent's behavior.
	SystemPrompt string

	// PermittedTools names the registry tools this agent may call.
	PermittedTools []string
}

// PermittedSet returns the permitted tool names as a lookup set.
func (c *Config) PermittedSet() map[string]bool {
	set := make(map[string]bool, len(c.PermittedTools))
	for _, name := range c.PermittedTools {
		set[name] = true
	}
	return set
}

// Permits reports whether the agent may call the named tool.
func (c *Config) Permits(tool string) bool {
	for _, name := range c.PermittedTools {
		if name == tool {
			return true
		}
	}
	return false
}

// HasTools returns true if the agent has any permitted tools.
func (c *Config) HasTools() bool {
	return len(c.PermittedTools) > 0
}
