package sudocache

import "encoding/json"

// Well-known attribute names used by the cache. Everything else on a
// rule is opaque pass-through data from the rule source.
const (
	AttrObjectClass = "objectClass"
	AttrName        = "name"
	AttrUser        = "sudoUser"
	AttrNotBefore   = "sudoNotBefore"
	AttrNotAfter    = "sudoNotAfter"
	AttrRefreshed   = "sudoFullRefreshed"
)

const (
	// RuleObjectClass marks a cached record as a sudo rule.
	RuleObjectClass = "sudoRule"
	// RuleSubtree is the default cache subtree rules are stored under.
	RuleSubtree = "sudorules"
)

// Attribute is a single named attribute carrying one or more string
// values in their original order.
type Attribute struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

// Rule is an ordered attribute bag describing one cached sudo rule.
// Attribute order and multi-value order are preserved: the
// time-window evaluation depends on it.
type Rule struct {
	attrs []Attribute
	index map[string]int
}

func NewRule() *Rule {
	return &Rule{index: make(map[string]int)}
}

// Get returns the values of the named attribute in their original
// order, or nil when the attribute is absent.
func (r *Rule) Get(name string) []string {
	i, ok := r.index[name]
	if !ok {
		return nil
	}
	return r.attrs[i].Values
}

// GetFirst returns the first value of the named attribute, or "".
func (r *Rule) GetFirst(name string) string {
	values := r.Get(name)
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

// Set replaces the attribute's values, keeping its position when it
// already exists.
func (r *Rule) Set(name string, values ...string) {
	if i, ok := r.index[name]; ok {
		r.attrs[i].Values = append([]string(nil), values...)
		return
	}
	r.index[name] = len(r.attrs)
	r.attrs = append(r.attrs, Attribute{Name: name, Values: append([]string(nil), values...)})
}

// Add appends values to the attribute, creating it when absent.
func (r *Rule) Add(name string, values ...string) {
	if i, ok := r.index[name]; ok {
		r.attrs[i].Values = append(r.attrs[i].Values, values...)
		return
	}
	r.Set(name, values...)
}

// Name returns the rule's name attribute, the unique key within its
// cache subtree.
func (r *Rule) Name() string {
	return r.GetFirst(AttrName)
}

// Attributes returns a copy of all attributes in insertion order.
func (r *Rule) Attributes() []Attribute {
	out := make([]Attribute, len(r.attrs))
	for i, a := range r.attrs {
		out[i] = Attribute{Name: a.Name, Values: append([]string(nil), a.Values...)}
	}
	return out
}

// Clone returns a deep copy of the rule.
func (r *Rule) Clone() *Rule {
	dup := NewRule()
	for _, a := range r.attrs {
		dup.Set(a.Name, a.Values...)
	}
	return dup
}

func (r *Rule) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.attrs)
}

func (r *Rule) UnmarshalJSON(data []byte) error {
	var attrs []Attribute
	if err := json.Unmarshal(data, &attrs); err != nil {
		return err
	}
	r.attrs = nil
	r.index = make(map[string]int)
	for _, a := range attrs {
		r.Add(a.Name, a.Values...)
	}
	return nil
}
