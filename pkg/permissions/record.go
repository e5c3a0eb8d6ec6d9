package permissions

import "sort"

// Scope identifies whether a permission record applies platform-wide or
// within a single tenant.
type Scope string

const (
	// ScopePlatform marks a record that applies across the whole platform.
	ScopePlatform Scope = "platform"

	// ScopeTenant marks a record that applies within one tenant only.
	ScopeTenant Scope = "tenant"
)

// SourceType identifies how a permission record was granted to a user.
type SourceType string

const (
	// SourceDirect marks a permission granted to the user directly.
	SourceDirect SourceType = "direct"

	// SourceRole marks a permission derived from a role the user holds.
	SourceRole SourceType = "role"
)

// Record is a single permission held by a user, as returned by a [Source]
// and stored in the [Cache]. Records are additive: a user's effective
// permissions are the union of their records, and there is no explicit
// deny.
type Record struct {
	// Resource is the resource axis of the permission (may be "*").
	Resource string `json:"resource"`

	// Action is the action axis of the permission (may be "*").
	Action string `json:"action"`

	// Scope says whether the record is platform-wide or tenant-scoped.
	Scope Scope `json:"scope"`

	// SourceType says whether the record is a direct grant or derived
	// from a role.
	SourceType SourceType `json:"source_type"`

	// Priority ranks overlapping records when roles and direct grants
	// cover the same resource:action pair. Higher wins during
	// de-duplication; the grant itself is unaffected.
	Priority int `json:"priority"`

	// Dangerous flags permissions whose use should be audited.
	Dangerous bool `json:"dangerous,omitempty"`

	// RequiresMFA flags permissions that the host application must only
	// honor on MFA-verified sessions.
	RequiresMFA bool `json:"requires_mfa,omitempty"`

	// RequiresApproval flags permissions that need a second-party
	// approval workflow in the host application.
	RequiresApproval bool `json:"requires_approval,omitempty"`
}

// Grant returns the record's "resource:action" grant form.
func (r Record) Grant() Grant {
	return Grant{Resource: r.Resource, Action: r.Action}
}

// Role is a named role a user holds, as returned by a [Source].
type Role struct {
	// ID is the role's stable identifier.
	ID string `json:"id"`

	// Name is the role's human-readable name.
	Name string `json:"name"`
}

// DedupeRecords collapses records that grant the same resource:action
// pair, keeping the record with the highest Priority for each pair (ties
// keep the first seen). The relative order of the surviving records is
// preserved. The input slice is not modified.
func DedupeRecords(records []Record) []Record {
	if len(records) == 0 {
		return nil
	}

	best := make(map[Grant]int, len(records))
	for i, r := range records {
		g := r.Grant()
		if j, ok := best[g]; !ok || r.Priority > records[j].Priority {
			best[g] = i
		}
	}

	indexes := make([]int, 0, len(best))
	for _, i := range best {
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)

	out := make([]Record, 0, len(indexes))
	for _, i := range indexes {
		out = append(out, records[i])
	}
	return out
}

// GrantStrings converts records to their "resource:action" string forms,
// in order. Duplicate grant strings are preserved; use [DedupeRecords]
// first if uniqueness matters.
func GrantStrings(records []Record) []string {
	grants := make([]string, len(records))
	for i, r := range records {
		grants[i] = r.Grant().String()
	}
	return grants
}

// Summary is a resource to action-set map describing everything a user
// may do. Action slices are sorted and duplicate-free so the summary has
// a canonical serialized form.
type Summary map[string][]string

// BuildSummary folds permission records into a [Summary]. Wildcard axes
// are carried through verbatim; interpreting "*" is the consumer's job.
func BuildSummary(records []Record) Summary {
	sets := make(map[string]map[string]struct{})
	for _, r := range records {
		actions, ok := sets[r.Resource]
		if !ok {
			actions = make(map[string]struct{})
			sets[r.Resource] = actions
		}
		actions[r.Action] = struct{}{}
	}

	summary := make(Summary, len(sets))
	for resource, actions := range sets {
		list := make([]string, 0, len(actions))
		for action := range actions {
			list = append(list, action)
		}
		sort.Strings(list)
		summary[resource] = list
	}
	return summary
}

// Allows reports whether the summary covers the given resource and
// action, honoring wildcard entries recorded in the summary itself.
func (s Summary) Allows(resource, action string) bool {
	for res, actions := range s {
		if res != Wildcard && res != resource {
			continue
		}
		for _, a := range actions {
			if a == Wildcard || a == action {
				return true
			}
		}
	}
	return false
}
