// Package nodelink renders the dependency graph of an install run as a
// node-link diagram.
//
// # Usage
//
// Convert an [install.Report] to DOT, then optionally render it to SVG:
//
//	dot := nodelink.ToDOT(report, nodelink.Options{})
//	svg, err := nodelink.RenderSVG(ctx, dot)
//
// Each name@version appears once however many packages link to it. A
// dependency that would close a cycle is never linked, so it has no edge.
//
// # Dependencies
//
// This package uses [github.com/goccy/go-graphviz] for in-process SVG
// rendering (a WebAssembly build of Graphviz, no system install needed).
package nodelink
