// Package filter applies compiled include/exclude patterns to candidate
// paths during traversal. The patterns are compiled by the CLI layer and
// passed by reference; a nil pattern means "no constraint".
package filter

import "regexp"

// Chain holds the include/exclude pair applied to every candidate path.
type Chain struct {
	include *regexp.Regexp
	exclude *regexp.Regexp
}

// New creates a chain. Either pattern may be nil.
func New(include, exclude *regexp.Regexp) *Chain {
	return &Chain{include: include, exclude: exclude}
}

// Empty reports whether the chain constrains nothing.
func (c *Chain) Empty() bool {
	return c == nil || (c.include == nil && c.exclude == nil)
}

// Match reports whether path passes the chain: the include pattern (if
// set) must match, then the exclude pattern (if set) must not.
func (c *Chain) Match(path string) bool {
	if c == nil {
		return true
	}
	if c.include != nil && !c.include.MatchString(path) {
		return false
	}
	if c.exclude != nil && c.exclude.MatchString(path) {
		return false
	}
	return true
}
