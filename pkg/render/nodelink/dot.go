package nodelink

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/mpnp/pkg/install"
)

// Options configures node-link diagram rendering.
type Options struct {
	// Detailed labels every edge with its kind (dep, peer, workspace).
	Detailed bool
}

// ToDOT converts an install report to Graphviz DOT format.
// The resulting DOT string can be rendered using [RenderSVG].
//
// Roots (the project and its workspace packages) are drawn bold, packages
// extracted during the run are filled green, peer links are dashed and
// workspace links dotted. Nodes and edges appear in the order the run
// created them, so the output is stable for a given report.
func ToDOT(r *install.Report, opts Options) string {
	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	buf.WriteString("  rankdir=LR;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=14, margin=\"0.2,0.1\"];\n")
	buf.WriteString("  ranksep=0.5;\n")
	buf.WriteString("  nodesep=0.3;\n")
	buf.WriteString("\n")

	fresh := make(map[string]bool, len(r.Fresh))
	for _, key := range r.Fresh {
		fresh[key] = true
	}

	seen := make(map[string]bool)
	node := func(key string, root bool) {
		if seen[key] {
			return
		}
		seen[key] = true
		fmt.Fprintf(&buf, "  %q [%s];\n", key, strings.Join(nodeAttrs(key, root, fresh[key]), ", "))
	}
	for _, key := range r.Roots {
		node(key, true)
	}
	for _, e := range r.Edges {
		node(e.From, false)
		node(e.To, false)
	}

	buf.WriteString("\n")
	drawn := make(map[string]bool)
	for _, e := range r.Edges {
		id := e.From + "\x00" + e.To
		if drawn[id] {
			continue
		}
		drawn[id] = true
		attrs := edgeAttrs(e.Kind, opts.Detailed)
		if len(attrs) == 0 {
			fmt.Fprintf(&buf, "  %q -> %q;\n", e.From, e.To)
			continue
		}
		fmt.Fprintf(&buf, "  %q -> %q [%s];\n", e.From, e.To, strings.Join(attrs, ", "))
	}

	buf.WriteString("}\n")
	return buf.String()
}

func nodeAttrs(key string, root, fresh bool) []string {
	attrs := []string{fmt.Sprintf("label=%q", key)}
	switch {
	case root:
		attrs = append(attrs, "penwidth=2", "fontname=\"bold\"")
	case fresh:
		attrs = append(attrs, "fillcolor=\"#d8f0d8\"")
	}
	return attrs
}

func edgeAttrs(kind install.EdgeKind, detailed bool) []string {
	var attrs []string
	switch kind {
	case install.EdgePeer:
		attrs = append(attrs, "style=dashed")
	case install.EdgeWorkspace:
		attrs = append(attrs, "style=dotted")
	}
	if detailed {
		attrs = append(attrs, fmt.Sprintf("label=%q", string(kind)), "fontsize=10")
	}
	return attrs
}

// RenderSVG renders a DOT graph to SVG using Graphviz.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return normalizeViewBox(buf.Bytes()), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

// normalizeViewBox replaces Graphviz's point-based svg header with one whose
// viewBox starts at the origin, so the image scales in browsers.
func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	header := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)

	return svgTagRe.ReplaceAll(svg, []byte(header))
}
