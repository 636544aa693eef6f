// Package render draws a positioned network onto a Canvas.
//
// Renderer decides what to draw each frame: links, nodes, the selection
// ring, search-match rings and labels. Raster is the Canvas used by the
// server to produce PNG frames.
package render
