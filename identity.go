package sudocache

import "strconv"

// FilterFlags selects which inclusion criteria an identity filter is
// built from. Flags are independent; a flag whose data is missing
// (empty username, uid 0, no groups) contributes nothing.
type FilterFlags uint

const (
	// FilterIncludeAll selects rules targeting every user (sudoUser=ALL).
	FilterIncludeAll FilterFlags = 1 << iota
	// FilterIncludeDefaults selects the cn=defaults options entry.
	FilterIncludeDefaults
	// FilterUsername selects rules targeting the username directly.
	FilterUsername
	// FilterUID selects rules targeting the numeric id (#uid).
	FilterUID
	// FilterGroups selects rules targeting any of the groups (%group).
	FilterGroups
	// FilterNetgroups selects rules targeting netgroups (+*).
	FilterNetgroups
)

// FilterStandard is the usual query-time selection: everything that
// could apply to a fully described user.
const FilterStandard = FilterIncludeAll | FilterIncludeDefaults |
	FilterUsername | FilterUID | FilterGroups | FilterNetgroups

// Identity describes the user a rule lookup is performed for. A UID
// of 0 means "no uid supplied", never the superuser.
type Identity struct {
	Username string
	UID      uint64
	Groups   []string
	Flags    FilterFlags
}

// BuildIdentityFilter builds the predicate selecting the cached rules
// relevant to the identity. The result always requires the sudo rule
// object class; the enabled criteria form an inner disjunction in a
// fixed order so the rendered filter is deterministic.
func BuildIdentityFilter(id Identity) Filter {
	inner := make([]Filter, 0, len(id.Groups)+5)

	if id.Flags&FilterIncludeAll != 0 {
		inner = append(inner, &EqFilter{Attr: AttrUser, Value: "ALL"})
	}
	if id.Flags&FilterIncludeDefaults != 0 {
		inner = append(inner, &EqFilter{Attr: AttrName, Value: "defaults"})
	}
	if id.Flags&FilterUsername != 0 && id.Username != "" {
		inner = append(inner, &EqFilter{Attr: AttrUser, Value: id.Username})
	}
	if id.Flags&FilterUID != 0 && id.UID != 0 {
		inner = append(inner, &EqFilter{Attr: AttrUser, Value: "#" + strconv.FormatUint(id.UID, 10)})
	}
	if id.Flags&FilterGroups != 0 {
		for _, group := range id.Groups {
			inner = append(inner, &EqFilter{Attr: AttrUser, Value: "%" + group})
		}
	}
	if id.Flags&FilterNetgroups != 0 {
		inner = append(inner, &EqFilter{Attr: AttrUser, Value: "+*"})
	}

	class := &EqFilter{Attr: AttrObjectClass, Value: RuleObjectClass}
	if len(inner) == 0 {
		return &AndFilter{Subs: []Filter{class}}
	}
	return &AndFilter{Subs: []Filter{class, &OrFilter{Subs: inner}}}
}
