package remoteconfig

import (
	"sort"
	"strconv"
)

// ExperimentGroups reports the group the current user is assigned for an
// experiment.
type ExperimentGroups interface {
	Group(id string) (int, bool)
}

// Reserved keys of an experiment value:
//
//	{"{returns}": {"experiment": {"<id>": {"<group>": value}}}, "default": value}
const (
	returnsKey    = "{returns}"
	experimentKey = "experiment"
	defaultKey    = "default"
)

// substitute resolves experiment indirections in v, descending into maps and
// slices. An unresolved indirection yields its default, or itself when it
// declares none.
func substitute(v any, groups ExperimentGroups) any {
	switch x := v.(type) {
	case map[string]any:
		if resolved, ok := resolveExperiment(x, groups); ok {
			return substitute(resolved, groups)
		}
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = substitute(e, groups)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = substitute(e, groups)
		}
		return out
	default:
		return v
	}
}

func resolveExperiment(m map[string]any, groups ExperimentGroups) (any, bool) {
	returns, ok := m[returnsKey].(map[string]any)
	if !ok {
		return nil, false
	}
	if experiments, ok := returns[experimentKey].(map[string]any); ok && groups != nil {
		ids := make([]string, 0, len(experiments))
		for id := range experiments {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			byGroup, ok := experiments[id].(map[string]any)
			if !ok {
				continue
			}
			group, ok := groups.Group(id)
			if !ok {
				continue
			}
			if value, ok := byGroup[strconv.Itoa(group)]; ok {
				return value, true
			}
		}
	}
	if d, ok := m[defaultKey]; ok {
		return d, true
	}
	return nil, false
}
