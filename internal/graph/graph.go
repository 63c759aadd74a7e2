package graph

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/roach88/annotie/internal/annotation"
	"github.com/roach88/annotie/internal/record"
)

// Node is an alias group.
type Node struct {
	Label string `json:"label"`
}

// Edge is one tie, or several merged ties, between two groups.
type Edge struct {
	ID         string  `json:"id"`
	Label      string  `json:"label"`
	Source     string  `json:"source"`
	Target     string  `json:"target"`
	Weight     float64 `json:"weight"`
	IsDirected bool    `json:"is_directed"`
}

// Graph is the projected graph. Nodes are keyed by group id and edges by
// their composite key.
type Graph struct {
	IsDirected      bool            `json:"is_directed"`
	Nodes           map[string]Node `json:"nodes"`
	Edges           map[string]Edge `json:"edges"`
	Inconsistencies []string        `json:"inconsistencies,omitempty"`
}

// Source is anything that can lend a consistent read view of an annotation.
type Source interface {
	View(fn func(v annotation.View) error) error
}

// Project derives the graph from the current state of src.
func Project(src Source, opts Options) (Graph, error) {
	if err := opts.validate(); err != nil {
		return Graph{}, fmt.Errorf("project: %w", err)
	}
	g := Graph{Nodes: map[string]Node{}, Edges: map[string]Edge{}}
	err := src.View(func(v annotation.View) error {
		for _, grp := range v.Groups() {
			g.Nodes[grp.ID] = Node{Label: grp.Name}
		}
		for _, tie := range v.Ties() {
			edge, err := project(v, tie)
			if err != nil {
				return err
			}
			g.add(edgeKey(opts.keyFields(), edge), edge, opts.Merge)
		}
		return nil
	})
	if err != nil {
		return Graph{}, fmt.Errorf("project: %w", err)
	}
	for _, e := range g.Edges {
		if e.IsDirected {
			g.IsDirected = true
			break
		}
	}
	return g, nil
}

// project turns one tie into an edge between groups. Undirected edges run
// from the group whose name sorts first, so the stored endpoint order does
// not matter.
func project(v annotation.View, tie annotation.Tie) (Edge, error) {
	src, err := v.ResolveGroup(tie.Source)
	if err != nil {
		return Edge{}, fmt.Errorf("tie %s source: %w", tie.ID, err)
	}
	dst, err := v.ResolveGroup(tie.Target)
	if err != nil {
		return Edge{}, fmt.Errorf("tie %s target: %w", tie.ID, err)
	}
	if !tie.Directed && groupsOutOfOrder(v, src, dst) {
		src, dst = dst, src
	}
	return Edge{
		ID:         tie.ID,
		Label:      tie.Label,
		Source:     src,
		Target:     dst,
		Weight:     tie.Weight,
		IsDirected: tie.Directed,
	}, nil
}

// groupsOutOfOrder compares group names, falling back to ids when two
// groups share a name.
func groupsOutOfOrder(v annotation.View, a, b string) bool {
	ga, _ := v.Group(a)
	gb, _ := v.Group(b)
	if ga.Name != gb.Name {
		return ga.Name > gb.Name
	}
	return record.CompareIDs(a, b) > 0
}

// keyEscaper keeps edge keys unambiguous when a part contains the separator.
var keyEscaper = strings.NewReplacer(`\`, `\\`, "|", `\|`)

// edgeKey joins the key fields and the directed flag with "|". Parts are
// escaped, so distinct field values never share a key.
func edgeKey(fields []KeyField, e Edge) string {
	parts := make([]string, 0, len(fields)+1)
	for _, f := range fields {
		switch f {
		case FieldID:
			parts = append(parts, e.ID)
		case FieldSource:
			parts = append(parts, e.Source)
		case FieldTarget:
			parts = append(parts, e.Target)
		case FieldLabel:
			parts = append(parts, e.Label)
		case FieldWeight:
			parts = append(parts, strconv.FormatFloat(e.Weight, 'g', -1, 64))
		}
	}
	for i, p := range parts {
		parts[i] = keyEscaper.Replace(p)
	}
	parts = append(parts, strconv.FormatBool(e.IsDirected))
	return strings.Join(parts, "|")
}

func (g *Graph) add(key string, e Edge, m MergeMethod) {
	prev, ok := g.Edges[key]
	if !ok {
		g.Edges[key] = e
		return
	}
	switch m {
	case MergeSum:
		prev.Weight += e.Weight
		g.Edges[key] = prev
	case MergeMax:
		if e.Weight > prev.Weight {
			g.Edges[key] = e
		}
	case MergeMin:
		if e.Weight < prev.Weight {
			g.Edges[key] = e
		}
	case MergeLast:
		g.Edges[key] = e
	default:
		// MergeFirst and MergeNone keep the stored edge and report the
		// collision.
		msg := fmt.Sprintf("ties %s and %s collide on edge key %q", prev.ID, e.ID, key)
		slog.Warn("unexpected edge collision", "key", key, "kept", prev.ID, "dropped", e.ID)
		g.Inconsistencies = append(g.Inconsistencies, msg)
	}
}
