// Package render produces standalone HTML visualizations of ranked graphs
// for human inspection.
package render

import (
	"fmt"
	"html/template"
	"os"
	"path/filepath"

	"github.com/dd0wney/cluso-sybilrank/pkg/graph"
)

// HTMLRenderer writes a ranked graph as a self-contained HTML/SVG artifact.
type HTMLRenderer struct {
	outDir string
	layout LayoutConfig
}

// NewHTMLRenderer creates a renderer that writes <target>.html files into
// outDir.
func NewHTMLRenderer(outDir string, layout LayoutConfig) *HTMLRenderer {
	return &HTMLRenderer{outDir: outDir, layout: layout}
}

type vertexView struct {
	Key    string
	Label  string
	X      float64
	Y      float64
	Radius float64
	Color  string
	Score  float64
}

type edgeView struct {
	X1, Y1, X2, Y2 float64
}

type pageView struct {
	Title    string
	Width    float64
	Height   float64
	Vertices []vertexView
	Edges    []edgeView
}

var pageTemplate = template.Must(template.New("graph").Parse(`<!DOCTYPE html>
<html>
<head><title>{{.Title}}</title></head>
<body>
<h2>{{.Title}}</h2>
<svg width="{{.Width}}" height="{{.Height}}" style="background:#fafafa;border:1px solid #ddd">
{{range .Edges}}<line x1="{{.X1}}" y1="{{.Y1}}" x2="{{.X2}}" y2="{{.Y2}}" stroke="#bbb" stroke-width="1"/>
{{end}}{{range .Vertices}}<circle cx="{{.X}}" cy="{{.Y}}" r="{{.Radius}}" fill="{{.Color}}"><title>{{.Label}}</title></circle>
{{end}}</svg>
</body>
</html>
`))

// RenderNodes writes the identity-level view.
func (r *HTMLRenderer) RenderNodes(g *graph.Graph, target string) error {
	nodes := g.Nodes()
	keys := make([]string, 0, len(nodes))
	for _, n := range nodes {
		keys = append(keys, n.Key)
	}
	positions := computeForceLayout(r.layout, keys, g.HasEdge)

	page := pageView{
		Title:  target,
		Width:  r.layout.Width,
		Height: r.layout.Height,
	}
	for _, n := range nodes {
		p := positions[n.Key]
		page.Vertices = append(page.Vertices, vertexView{
			Key:    n.Key,
			Label:  fmt.Sprintf("%s (%s) rank=%.2f", n.Key, n.Kind, n.Rank),
			X:      p.X,
			Y:      p.Y,
			Radius: 4 + n.Rank/10,
			Color:  kindColor(n.Kind),
			Score:  n.Rank,
		})
		for _, neighbor := range g.Neighbors(n.Key) {
			if n.Key < neighbor {
				q := positions[neighbor]
				page.Edges = append(page.Edges, edgeView{X1: p.X, Y1: p.Y, X2: q.X, Y2: q.Y})
			}
		}
	}
	return r.write(target, page)
}

// RenderGroups writes the aggregated group-level view. Two groups are drawn
// adjacent when a verification edge connects their members.
func (r *HTMLRenderer) RenderGroups(g *graph.Graph, target string) error {
	groups := g.Groups()
	keys := make([]string, 0, len(groups))
	for _, grp := range groups {
		keys = append(keys, grp.Key)
	}

	adjacent := groupAdjacency(g)
	positions := computeForceLayout(r.layout, keys, func(a, b string) bool {
		_, ok := adjacent[a][b]
		return ok
	})

	page := pageView{
		Title:  target,
		Width:  r.layout.Width,
		Height: r.layout.Height,
	}
	for _, grp := range groups {
		p := positions[grp.Key]
		color := "#4477cc"
		if grp.IsSeed {
			color = "#22aa44"
		}
		page.Vertices = append(page.Vertices, vertexView{
			Key:    grp.Key,
			Label:  fmt.Sprintf("%s rank=%.2f degree=%.0f", grp.Key, grp.Rank, grp.Degree),
			X:      p.X,
			Y:      p.Y,
			Radius: 6 + grp.Rank/8,
			Color:  color,
			Score:  grp.Rank,
		})
		for other := range adjacent[grp.Key] {
			if grp.Key < other {
				q := positions[other]
				page.Edges = append(page.Edges, edgeView{X1: p.X, Y1: p.Y, X2: q.X, Y2: q.Y})
			}
		}
	}
	return r.write(target, page)
}

func (r *HTMLRenderer) write(target string, page pageView) error {
	if err := os.MkdirAll(r.outDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(r.outDir, target+".html")
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	if err := pageTemplate.Execute(f, page); err != nil {
		return fmt.Errorf("render %s: %w", path, err)
	}
	return nil
}

func kindColor(k graph.Kind) string {
	switch k {
	case graph.KindSeed:
		return "#22aa44"
	case graph.KindSybil:
		return "#cc3333"
	default:
		return "#4477cc"
	}
}

// groupAdjacency derives which groups share a cross-group verification
// edge.
func groupAdjacency(g *graph.Graph) map[string]map[string]struct{} {
	adjacent := make(map[string]map[string]struct{})
	link := func(a, b string) {
		if adjacent[a] == nil {
			adjacent[a] = make(map[string]struct{})
		}
		adjacent[a][b] = struct{}{}
	}
	for _, n := range g.Nodes() {
		for _, neighborKey := range g.Neighbors(n.Key) {
			if n.Key >= neighborKey {
				continue
			}
			neighbor, ok := g.Node(neighborKey)
			if !ok {
				continue
			}
			for _, ga := range n.GroupKeys() {
				for _, gb := range neighbor.GroupKeys() {
					if ga == gb {
						continue
					}
					link(ga, gb)
					link(gb, ga)
				}
			}
		}
	}
	return adjacent
}
