// Package main hosts the squish CLI entrypoint and command graph.
//
// The Cobra command tree loads configuration once, then hands off to the
// workflow manager for `run`, to the planner for `plan`, and to the SQLite
// journal for `history`. Rendering helpers (tables, status lines, trace lines)
// live beside the commands; everything else belongs in internal packages.
package main
