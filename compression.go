// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/opc

package opc

import (
	"fmt"
	"strings"

	"github.com/woozymasta/pathrules"
)

// compressMatcher holds compiled rules selecting deflated entries.
type compressMatcher struct {
	matcher *pathrules.Matcher
}

// newCompressMatcher compiles profile compression patterns.
// Nil matcher means every entry is stored.
func newCompressMatcher(patterns []string, caseSensitive bool) (*compressMatcher, error) {
	rules := parseCompressPatterns(patterns)
	if len(rules) == 0 {
		return nil, nil
	}

	matcher, err := pathrules.NewMatcher(rules, pathrules.MatcherOptions{
		CaseInsensitive: !caseSensitive,
		DefaultAction:   pathrules.ActionExclude,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: compile rules: %w", ErrInvalidCompressPattern, err)
	}

	return &compressMatcher{matcher: matcher}, nil
}

// parseCompressPatterns converts gitignore-style patterns to ordered rules and drops empty ones.
func parseCompressPatterns(patterns []string) []pathrules.Rule {
	rules := make([]pathrules.Rule, 0, len(patterns))
	for _, raw := range patterns {
		pattern := strings.TrimSpace(raw)
		action := pathrules.ActionInclude
		if strings.HasPrefix(pattern, "!") {
			action = pathrules.ActionExclude
			pattern = strings.TrimSpace(pattern[1:])
		}

		pattern = strings.ReplaceAll(pattern, `\`, "/")
		pattern = strings.TrimPrefix(pattern, "./")
		if pattern == "" {
			continue
		}

		rules = append(rules, pathrules.Rule{
			Action:  action,
			Pattern: pattern,
		})
	}

	return rules
}

// Match reports whether the virtual path is selected for deflate compression.
func (m *compressMatcher) Match(virtualPath string) bool {
	if m == nil || m.matcher == nil {
		return false
	}

	candidate := entryName(virtualPath)
	if candidate == "" {
		return false
	}

	return m.matcher.Included(candidate, false)
}
