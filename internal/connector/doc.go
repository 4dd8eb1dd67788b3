package connector

// Package connector defines the capability contract every site connector
// implements and the registry that loads, version-gates, and resolves them.
// Connectors are registered explicitly at startup; there is no runtime
// directory scanning inside the engine.
