// Package permissions implements the permission checking engine for the
// neo-commons platform: wildcard grant matching, the tiered Redis-backed
// permission cache, the authoritative data-source abstraction, and the
// checker that orchestrates them.
//
// # Grants
//
// A permission grant is a "resource:action" pair. Either segment may be the
// whole-segment wildcard "*", which matches any value on that axis:
//
//	users:read   grants reading users
//	users:*      grants every action on users
//	*:read       grants reading everything
//	*:*          grants everything
//
// Partial wildcards ("us*:read") are not supported. Malformed grant strings
// never match anything and never produce an error; a bad data row degrades
// to "no match" so it cannot crash an authorization check.
//
// # Checking
//
// [Checker.Check] answers "does user X hold permission P in tenant T" by
// consulting the [Cache] first and falling through to the authoritative
// [Source] on a miss, repopulating the cache on the way out. The cache is
// advisory: its absence or failure never grants or denies by itself.
package permissions

import (
	"strings"

	sserr "github.com/neoplatform/neo-commons/pkg/errors"
)

// Grant is a single permission grant: an action allowed on a resource.
// Either field may be the wildcard "*". Grant is an immutable value type;
// compare with == and use as a map key freely.
type Grant struct {
	// Resource is the resource axis of the grant (e.g., "users").
	Resource string

	// Action is the action axis of the grant (e.g., "read").
	Action string
}

// Wildcard is the whole-segment wildcard accepted on either grant axis.
const Wildcard = "*"

// String returns the canonical "resource:action" form of the grant.
func (g Grant) String() string {
	return g.Resource + ":" + g.Action
}

// IsWildcard reports whether either axis of the grant is the wildcard.
func (g Grant) IsWildcard() bool {
	return g.Resource == Wildcard || g.Action == Wildcard
}

// ParseGrant parses a "resource:action" string into a [Grant]. The format
// is strict: exactly one colon, and both segments non-empty. Anything else
// is rejected with a validation error.
//
// Example:
//
//	g, err := permissions.ParseGrant("users:read")
func ParseGrant(s string) (Grant, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return Grant{}, sserr.Validationf(
			"permissions: grant %q must be in resource:action format", s)
	}
	if parts[0] == "" || parts[1] == "" {
		return Grant{}, sserr.Validationf(
			"permissions: grant %q has an empty resource or action segment", s)
	}
	return Grant{Resource: parts[0], Action: parts[1]}, nil
}

// Matches reports whether the granted permission authorizes the required
// permission. A grant matches when each of its axes is either the wildcard
// or equal to the corresponding required axis.
//
// Matches is direction-sensitive: wildcards are only honored on the granted
// side. Matches(Grant{"users", "*"}, Grant{"users", "read"}) is false.
func Matches(required, granted Grant) bool {
	if required == granted {
		return true
	}
	resourceMatch := granted.Resource == Wildcard || granted.Resource == required.Resource
	actionMatch := granted.Action == Wildcard || granted.Action == required.Action
	return resourceMatch && actionMatch
}

// MatchesString reports whether the granted permission string authorizes
// the required permission string. Both sides are parsed strictly; a
// malformed string on either side silently fails the match (fail closed),
// so identical but malformed strings still do not match each other.
//
// Example:
//
//	permissions.MatchesString("users:read", "users:*") // true
//	permissions.MatchesString("users:read", "noresource") // false, no error
func MatchesString(required, granted string) bool {
	req, err := ParseGrant(required)
	if err != nil {
		return false
	}
	grt, err := ParseGrant(granted)
	if err != nil {
		return false
	}
	return Matches(req, grt)
}

// Satisfies reports whether a set of granted permission strings covers a
// set of required permission strings.
//
// With requireAll=true every required permission must be matched by at
// least one grant; the scan short-circuits on the first uncovered
// requirement. With requireAll=false a single covered requirement is
// enough.
//
// An empty required set is vacuously satisfied regardless of requireAll.
// Malformed strings on either side never match and never error.
func Satisfies(required, granted []string, requireAll bool) bool {
	if len(required) == 0 {
		return true
	}

	for _, req := range required {
		matched := false
		for _, grt := range granted {
			if MatchesString(req, grt) {
				matched = true
				break
			}
		}
		if requireAll && !matched {
			return false
		}
		if !requireAll && matched {
			return true
		}
	}
	return requireAll
}
