// Package layout is a force-directed layout engine.
//
// It places nodes with many-body repulsion, link springs and a centering
// force, cools down with alpha decay and reports when it has settled. It also
// owns the camera, whose moves are time-interpolated. Engine satisfies
// view.Engine.
package layout
