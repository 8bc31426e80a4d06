// Agent builder for fluent configuration.
//
// Information Hiding:
// - Builder state management hidden
// - Default value application hidden

package agent

import (
	"fmt"
)

// Builder provides fluent configuration for creating agents.
// Usage: agent.NewBuilder("name") - no stutter.
type Builder struct {
	name           string
	description    string
	capability     string
	systemPrompt   string
	permittedTools []string
}

// NewBuilder creates a new agent builder with the given name.
func NewBuilder(name string) *Builder {
	return &Builder{
		name: name,
	}
}

// Description sets the agent's description.
func (b *Builder) Description(description string) *Builder {
	b.description = description
	return b
}

// Capability sets the agent's capability tag.
func (b *Builder) Capability(capability string) *Builder {
	b.capability = capability
	return b
}

// SystemPrompt sets the agent's system prompt.
func (b *Builder) SystemPrompt(prompt string) *Builder {
	b.systemPrompt = prompt
	return b
}

// Permit allows the agent to call the named registry tool.
func (b *Builder) Permit(toolName string) *Builder {
	b.permittedTools = append(b.permittedTools, toolName)
	return b
}

// PermitAll allows multiple tools at once.
func (b *Builder) PermitAll(toolNames ...string) *Builder {
	b.permittedTools = append(b.permittedTools, toolNames...)
	return b
}

// Build creates the agent configuration.
func (b *Builder) Build() Config {
	description := b.description
	if description == "" {
		description = fmt.Sprintf("Agent: %s", b.name)
	}

	systemPrompt := b.systemPrompt
	if systemPrompt == "" {
		systemPrompt = fmt.Sprintf(
			"You are %s, a participant in a group chat analyzing protein bioactivity data.",
			b.name,
		)
	}

	return Config{
		Name:           b.name,
		Description:    description,
		Capability:     b.capability,
		SystemPrompt:   systemPrompt,
		PermittedTools: b.permittedTools,
	}
}

// Name returns the builder's agent name.
func (b *Builder) Name() string {
	return b.name
}

// ToolCount returns the number of permitted tools.
func (b *Builder) ToolCount() int {
	return len(b.permittedTools)
}

// Collection manages multiple agent configurations.
type Collection struct {
	configs []Config
}

// NewCollection creates an empty agent collection.
func NewCollection() *Collection {
	return &Collection{
		configs: []Config{},
	}
}

// Add adds an agent from a builder.
func (c *Collection) Add(builder *Builder) *Collection {
	c.configs = append(c.configs, builder.Build())
	return c
}

// AddConfig adds a pre-built config.
func (c *Collection) AddConfig(config Config) *Collection {
	c.configs = append(c.configs, config)
	return c
}

// Build returns all configurations.
func (c *Collection) Build() []Config {
	return c.configs
}

// Len returns the number of agents.
func (c *Collection) Len() int {
	return len(c.configs)
}

// Find returns the config with the given name.
func (c *Collection) Find(name string) (Config, bool) {
	for _, cfg := range c.configs {
		if cfg.Name == name {
			return cfg, true
		}
	}
	return Config{}, false
}

// List returns agent names, descriptions, and capabilities.
func (c *Collection) List() []Info {
	result := make([]Info, len(c.configs))
	for i, cfg := range c.configs {
		result[i] = Info{
			Name:        cfg.Name,
			Description: cfg.Description,
			Capability:  cfg.Capability,
		}
	}
	return result
}
