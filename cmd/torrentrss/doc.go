// Package main hosts the torrentrss CLI entrypoint and command graph.
//
// The Cobra-based command tree translates terminal invocations into polling
// passes, watch-mode scheduling, history queries, environment checks, and
// configuration scaffolding. It centralizes configuration resolution and
// logging setup so subcommands can focus on user experience instead of
// wiring. New behavior belongs in the internal packages first; commands here
// stay declarative.
package main
