package remoteconfig

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func experimentValue() map[string]any {
	return map[string]any{
		"{returns}": map[string]any{"experiment": map[string]any{
			"swap_color": map[string]any{"0": "blue", "1": "green"},
		}},
		"default": "grey",
	}
}

func TestSubstitute(t *testing.T) {
	noDefault := experimentValue()
	delete(noDefault, "default")

	tests := []struct {
		name   string
		value  any
		groups ExperimentGroups
		want   any
	}{
		{name: "assigned group", value: experimentValue(), groups: groups{"swap_color": 1}, want: "green"},
		{name: "unassigned uses default", value: experimentValue(), groups: groups{}, want: "grey"},
		{name: "unknown group uses default", value: experimentValue(), groups: groups{"swap_color": 7}, want: "grey"},
		{name: "no experiments service", value: experimentValue(), groups: nil, want: "grey"},
		{name: "no default keeps raw value", value: noDefault, groups: groups{}, want: noDefault},
		{name: "plain value", value: 3, groups: groups{}, want: 3},
		{
			name:   "nested",
			value:  map[string]any{"title": experimentValue(), "list": []any{experimentValue()}},
			groups: groups{"swap_color": 0},
			want:   map[string]any{"title": "blue", "list": []any{"blue"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, substitute(tt.value, tt.groups))
		})
	}
}
