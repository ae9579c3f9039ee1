// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package capability

import (
	"fmt"
	"strings"

	"github.com/bureau-foundation/pathspace/lib/layer"
	"github.com/bureau-foundation/pathspace/lib/spaceerr"
	"github.com/bureau-foundation/pathspace/lib/spacepath"
)

// Actions understood by the permission view.
const (
	ActionRead    = "read"
	ActionWrite   = "write"
	ActionExecute = "execute"
	// ActionAll matches every single-segment action.
	ActionAll = "*"
)

// Grant allows (or, in Policy.Denials, forbids) Actions on Paths.
type Grant struct {
	Paths   []string `yaml:"paths" json:"paths"`
	Actions []string `yaml:"actions" json:"actions"`
}

func (g Grant) covers(target, action string) bool {
	return MatchAnyAction(g.Actions, action) && MatchAnyPath(g.Paths, target)
}

// Policy is the full set of rules a Checker evaluates.
type Policy struct {
	Grants  []Grant `yaml:"grants" json:"grants"`
	Denials []Grant `yaml:"denials" json:"denials"`
}

// Decision is the outcome of a check.
type Decision int

const (
	Deny Decision = iota
	Allow
)

// String returns "allow" or "deny".
func (d Decision) String() string {
	if d == Allow {
		return "allow"
	}
	return "deny"
}

// Result explains a decision.
type Result struct {
	Decision Decision
	// Grant is the index of the grant that allowed the action, or of
	// the denial that overrode it. It is -1 when nothing matched.
	Grant  int
	Denied bool
}

// Checker evaluates a Policy. It is immutable and safe for concurrent
// use.
type Checker struct {
	policy Policy
}

// NewChecker validates every path pattern in policy.
func NewChecker(policy Policy) (*Checker, error) {
	for kind, rules := range map[string][]Grant{"grant": policy.Grants, "denial": policy.Denials} {
		for i, rule := range rules {
			if len(rule.Paths) == 0 || len(rule.Actions) == 0 {
				return nil, fmt.Errorf("%s %d: paths and actions are required", kind, i)
			}
			for _, pattern := range rule.Paths {
				if pattern == string(spacepath.Supermatch) {
					continue
				}
				if err := spacepath.Path(pattern).Validate(); err != nil {
					return nil, fmt.Errorf("%s %d: path %q: %w", kind, i, pattern, err)
				}
			}
			for _, action := range rule.Actions {
				if strings.TrimSpace(action) == "" {
					return nil, fmt.Errorf("%s %d: empty action", kind, i)
				}
			}
		}
	}
	return &Checker{policy: policy}, nil
}

// AllowAll returns a checker that grants every action on every path.
func AllowAll() *Checker {
	return &Checker{policy: Policy{Grants: []Grant{{Paths: []string{"**"}, Actions: []string{"**"}}}}}
}

// Check evaluates action on target and explains the decision.
func (c *Checker) Check(target, action string) Result {
	for i, denial := range c.policy.Denials {
		if denial.covers(target, action) {
			return Result{Decision: Deny, Grant: i, Denied: true}
		}
	}
	for i, grant := range c.policy.Grants {
		if grant.covers(target, action) {
			return Result{Decision: Allow, Grant: i}
		}
	}
	return Result{Decision: Deny, Grant: -1}
}

// HasCapability reports whether action is allowed on target.
func (c *Checker) HasCapability(target, action string) bool {
	return c.Check(target, action).Decision == Allow
}

// Require returns an InvalidPermissions error unless action is allowed
// on target.
func (c *Checker) Require(target, action string) error {
	if c.HasCapability(target, action) {
		return nil
	}
	return spaceerr.Newf(spaceerr.InvalidPermissions, "%s denied on %s", action, target)
}

// Permissions evaluates the three view actions for target. It has the
// signature of a layer.View predicate.
func (c *Checker) Permissions(target string) layer.Permission {
	return layer.Permission{
		Read:    c.HasCapability(target, ActionRead),
		Write:   c.HasCapability(target, ActionWrite),
		Execute: c.HasCapability(target, ActionExecute),
	}
}
