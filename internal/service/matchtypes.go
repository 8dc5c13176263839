package service

import (
	"strings"
	"sync"
)

// defaultTagMatchTypes is the conservative vocabulary of match types treated
// as tag matches. Keep it limited to types actually used in the admin UI;
// callers extend it through MatchTypeConfig.Register.
var defaultTagMatchTypes = []string{
	"tag",
	"tag team",
	"tag-team",
	"tagteam",
	"six-man tag",
	"trios",
	"trios tag",
	"eight-man tag",
	"four-on-four tag",
	"gauntlet tag",
	"mens-war-games",
	"wargames",
	"war games",
}

// MatchTypeConfig holds the tag-type vocabulary. Registration is the
// in-process equivalent of the old filter hook.
type MatchTypeConfig struct {
	mu    sync.RWMutex
	types map[string]bool
}

func NewMatchTypeConfig() *MatchTypeConfig {
	c := &MatchTypeConfig{types: make(map[string]bool, len(defaultTagMatchTypes))}
	c.Register(defaultTagMatchTypes...)
	return c
}

func (c *MatchTypeConfig) Register(types ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range types {
		norm := strings.ToLower(strings.TrimSpace(t))
		if norm != "" {
			c.types[norm] = true
		}
	}
}

// IsTagType reports whether a match-type value (free text, term name, or
// slug) denotes a tag match. The whole value must match, or contain a
// vocabulary phrase as a word-ish substring ("6-person tag team match").
func (c *MatchTypeConfig) IsTagType(value string) bool {
	v := strings.ToLower(strings.TrimSpace(value))
	if v == "" {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.types[v] {
		return true
	}
	for t := range c.types {
		if len(t) > 3 && strings.Contains(v, t) {
			return true
		}
	}
	return false
}

// IsSinglesType reports the decisive negative signal: values naming a
// singles match never classify as tag, whatever else matches.
func IsSinglesType(value string) bool {
	return strings.Contains(strings.ToLower(value), "single")
}
