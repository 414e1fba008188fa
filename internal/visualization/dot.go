// Package visualization renders built simulation networks in various
// output formats, for checking wiring before a long run.
package visualization

import (
	"fmt"
	"strings"

	"github.com/jasperalbers/nestgo/internal/event"
	"github.com/jasperalbers/nestgo/internal/kernel"
	"github.com/jasperalbers/nestgo/internal/recording"
)

// Format specifies the output format for network rendering.
type Format string

const (
	FormatDOT  Format = "dot"
	FormatJSON Format = "json"
)

// nodeColors maps model kinds to DOT fill colors.
var nodeColors = map[string]string{
	"sirs_neuron":     "steelblue",
	"dc_generator":    "goldenrod",
	"noise_generator": "mediumseagreen",
	"spike_recorder":  "lightgray",
	"multimeter":      "lightgray",
}

// nodeShapes maps model kinds to DOT shapes. Stimulus and recording
// devices draw as boxes; anything not listed is a neuron model and
// draws as a circle.
var nodeShapes = map[string]string{
	"dc_generator":    "box",
	"noise_generator": "box",
	"spike_recorder":  "box",
	"multimeter":      "box",
}

// edgeStyles maps event kinds to DOT line styles.
var edgeStyles = map[event.Kind]string{
	event.KindSpike:   "solid",
	event.KindCurrent: "dashed",
}

// RenderDOT produces a Graphviz DOT representation of a built network.
// Routed connections are drawn as arrows labeled with weight and delay.
// Multimeter probes transport no events and live outside the routing
// table; they appear as dotted arrows from the meter to its targets.
func RenderDOT(net *kernel.Network) string {
	res := net.Resolution()

	var b strings.Builder
	b.WriteString("digraph network {\n")
	b.WriteString("  rankdir=LR;\n")
	b.WriteString("  node [style=filled, fontname=\"Helvetica\"];\n")
	b.WriteString("  edge [fontname=\"Helvetica\", fontsize=10];\n\n")

	for _, n := range net.Nodes() {
		model := n.Model()
		color := nodeColors[model]
		if color == "" {
			color = "white"
		}
		shape := nodeShapes[model]
		if shape == "" {
			shape = "circle"
		}
		b.WriteString(fmt.Sprintf("  %d [label=\"%d\\n%s\", shape=%s, fillcolor=%q];\n",
			n.ID(), n.ID(), model, shape, color))
	}
	b.WriteString("\n")

	for _, c := range net.Connections() {
		style := edgeStyles[c.Kind]
		if style == "" {
			style = "solid"
		}
		label := fmt.Sprintf("%g @ %.6gms", c.Weight, res.MSFromSteps(c.Delay))
		b.WriteString(fmt.Sprintf("  %d -> %d [label=%q, style=%s];\n",
			c.Source, c.Target, label, style))
	}

	for _, p := range probeEdges(net) {
		b.WriteString(fmt.Sprintf("  %d -> %d [style=dotted, arrowhead=open];\n",
			p.meter, p.target))
	}

	b.WriteString("}\n")
	return b.String()
}

// RenderJSON produces the network as a generic document with nodes and
// edges arrays, for tooling that post-processes the structure rather
// than drawing it.
func RenderJSON(net *kernel.Network) map[string]interface{} {
	res := net.Resolution()

	nodes := make([]map[string]interface{}, 0, net.NumNodes())
	for _, n := range net.Nodes() {
		nodes = append(nodes, map[string]interface{}{
			"id":    int64(n.ID()),
			"model": n.Model(),
		})
	}

	conns := net.Connections()
	edges := make([]map[string]interface{}, 0, len(conns))
	for _, c := range conns {
		edges = append(edges, map[string]interface{}{
			"source":   int64(c.Source),
			"target":   int64(c.Target),
			"kind":     c.Kind.String(),
			"weight":   c.Weight,
			"delay_ms": res.MSFromSteps(c.Delay),
		})
	}
	for _, p := range probeEdges(net) {
		edges = append(edges, map[string]interface{}{
			"source": int64(p.meter),
			"target": int64(p.target),
			"kind":   event.KindReadout.String(),
		})
	}

	return map[string]interface{}{
		"nodes":      nodes,
		"edges":      edges,
		"node_count": len(nodes),
		"edge_count": len(edges),
	}
}

type probe struct {
	meter  event.NodeID
	target event.NodeID
}

// probeEdges collects multimeter attachments from the meters themselves.
func probeEdges(net *kernel.Network) []probe {
	var out []probe
	for _, n := range net.Nodes() {
		m, ok := n.(*recording.Multimeter)
		if !ok {
			continue
		}
		for _, t := range m.Targets() {
			out = append(out, probe{meter: m.ID(), target: t})
		}
	}
	return out
}
