package descriptor

import (
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const demoFlow = `
nodes:
  - id: talker
    outputs: [pose, status]
  - id: listener
    inputs:
      pose: talker/pose
  - id: monitor
    inputs:
      pose: talker/pose
      health: talker/status
`

func TestParse_Valid(t *testing.T) {
	flow, err := Parse([]byte(demoFlow))
	require.NoError(t, err)
	require.Len(t, flow.Nodes, 3)

	talker, ok := flow.Node("talker")
	require.True(t, ok)
	assert.Equal(t, []string{"pose", "status"}, talker.Outputs)

	_, ok = flow.Node("missing")
	assert.False(t, ok)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"empty", "nodes: []", "no nodes"},
		{"empty id", "nodes:\n  - outputs: [x]\n", "empty id"},
		{"duplicate id", "nodes:\n  - id: a\n  - id: a\n", "duplicate node id"},
		{"malformed ref", "nodes:\n  - id: a\n    inputs:\n      x: noslash\n", "not of the form"},
		{"unknown node", "nodes:\n  - id: a\n    inputs:\n      x: b/out\n", "unknown source node"},
		{"unknown output", "nodes:\n  - id: a\n    outputs: [x]\n  - id: b\n    inputs:\n      y: a/z\n", "no output"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestSubscribers(t *testing.T) {
	flow, err := Parse([]byte(demoFlow))
	require.NoError(t, err)

	got := flow.Subscribers("talker", "pose")
	sort.Slice(got, func(i, j int) bool { return got[i].Node < got[j].Node })

	want := []Target{
		{Node: "listener", Input: "pose"},
		{Node: "monitor", Input: "pose"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Subscribers mismatch (-want +got):\n%s", diff)
	}

	assert.Empty(t, flow.Subscribers("talker", "unwired"))
	assert.Empty(t, flow.Subscribers("listener", "pose"))
}

func TestInputsFrom(t *testing.T) {
	flow, err := Parse([]byte(demoFlow))
	require.NoError(t, err)

	got := flow.InputsFrom("talker")
	assert.Len(t, got, 3)

	assert.Empty(t, flow.InputsFrom("listener"))
}
