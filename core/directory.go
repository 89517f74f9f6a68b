package core

import (
	"fmt"
	"sync"
)

// AgentInfo is presentation metadata for an agent. It is never used for
// routing decisions.
type AgentInfo struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	Avatar      string `json:"avatar" yaml:"avatar"`
	Color       string `json:"color" yaml:"color"`
}

// Default presentation used for agents missing from a Directory.
const (
	DefaultAvatar = "🤖"
	DefaultColor  = "#1890ff"
)

// Directory maps agent identities to display metadata. Lookups of unknown
// identities fall back to a generic entry derived from the identity.
type Directory struct {
	mu      sync.RWMutex
	entries map[string]AgentInfo
}

// NewDirectory builds a directory from the given entries.
func NewDirectory(entries map[string]AgentInfo) *Directory {
	d := &Directory{entries: make(map[string]AgentInfo, len(entries))}
	for k, v := range entries {
		d.entries[k] = v
	}
	return d
}

// Register adds or replaces the metadata for an agent.
func (d *Directory) Register(agent string, info AgentInfo) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries[agent] = info
}

// Lookup returns the metadata for agent or the generic fallback.
func (d *Directory) Lookup(agent string) AgentInfo {
	if d != nil {
		d.mu.RLock()
		info, ok := d.entries[agent]
		d.mu.RUnlock()
		if ok {
			return info
		}
	}
	return FallbackInfo(agent)
}

// FallbackInfo is the generic metadata for an unknown agent.
func FallbackInfo(agent string) AgentInfo {
	return AgentInfo{
		Name:        agent,
		Description: fmt.Sprintf("%s agent", agent),
		Avatar:      DefaultAvatar,
		Color:       DefaultColor,
	}
}
