// Package descriptor parses YAML dataflow descriptions.
//
// A descriptor names the nodes of a dataflow, the outputs each node may
// emit, and the wiring of node inputs to upstream outputs:
//
//	nodes:
//	  - id: talker
//	    outputs: [pose]
//	  - id: listener
//	    inputs:
//	      pose: talker/pose
//
// Input references use the "node/output" form. The daemon uses the
// descriptor to decide where to route each output message.
package descriptor

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Dataflow describes the nodes of one dataflow graph.
type Dataflow struct {
	Nodes []Node `yaml:"nodes"`
}

// Node describes one participant: the outputs it may emit and the mapping
// of its input identifiers to upstream "node/output" references.
type Node struct {
	ID      string            `yaml:"id"`
	Outputs []string          `yaml:"outputs,omitempty"`
	Inputs  map[string]string `yaml:"inputs,omitempty"`
}

// Target identifies one node input fed by an upstream output.
type Target struct {
	Node  string
	Input string
}

// Parse decodes and validates a YAML dataflow descriptor.
func Parse(data []byte) (*Dataflow, error) {
	var flow Dataflow
	if err := yaml.Unmarshal(data, &flow); err != nil {
		return nil, fmt.Errorf("decoding dataflow descriptor: %w", err)
	}
	if err := flow.Validate(); err != nil {
		return nil, err
	}
	return &flow, nil
}

// Load reads and parses a descriptor file.
func Load(path string) (*Dataflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading dataflow descriptor: %w", err)
	}
	return Parse(data)
}

// Validate checks node identifier uniqueness and that every input reference
// resolves to a declared output of a declared node.
func (d *Dataflow) Validate() error {
	if len(d.Nodes) == 0 {
		return fmt.Errorf("dataflow descriptor declares no nodes")
	}

	outputs := make(map[string]map[string]bool, len(d.Nodes))
	for _, n := range d.Nodes {
		if n.ID == "" {
			return fmt.Errorf("dataflow descriptor: node with empty id")
		}
		if _, dup := outputs[n.ID]; dup {
			return fmt.Errorf("dataflow descriptor: duplicate node id %q", n.ID)
		}
		outs := make(map[string]bool, len(n.Outputs))
		for _, out := range n.Outputs {
			outs[out] = true
		}
		outputs[n.ID] = outs
	}

	for _, n := range d.Nodes {
		for input, ref := range n.Inputs {
			srcNode, srcOutput, ok := strings.Cut(ref, "/")
			if !ok || srcNode == "" || srcOutput == "" {
				return fmt.Errorf("node %q input %q: reference %q is not of the form node/output", n.ID, input, ref)
			}
			outs, exists := outputs[srcNode]
			if !exists {
				return fmt.Errorf("node %q input %q: unknown source node %q", n.ID, input, srcNode)
			}
			if !outs[srcOutput] {
				return fmt.Errorf("node %q input %q: node %q declares no output %q", n.ID, input, srcNode, srcOutput)
			}
		}
	}
	return nil
}

// Node returns the node with the given id.
func (d *Dataflow) Node(id string) (*Node, bool) {
	for i := range d.Nodes {
		if d.Nodes[i].ID == id {
			return &d.Nodes[i], true
		}
	}
	return nil, false
}

// Subscribers returns every node input wired to the given output.
func (d *Dataflow) Subscribers(node, output string) []Target {
	ref := node + "/" + output
	var targets []Target
	for _, n := range d.Nodes {
		for input, src := range n.Inputs {
			if src == ref {
				targets = append(targets, Target{Node: n.ID, Input: input})
			}
		}
	}
	return targets
}

// InputsFrom returns every node input fed by any output of the given node.
// The daemon uses this to signal downstream nodes when a source goes away.
func (d *Dataflow) InputsFrom(node string) []Target {
	prefix := node + "/"
	var targets []Target
	for _, n := range d.Nodes {
		for input, src := range n.Inputs {
			if strings.HasPrefix(src, prefix) {
				targets = append(targets, Target{Node: n.ID, Input: input})
			}
		}
	}
	return targets
}
