package platform

// Package platform contains filesystem and formatting helpers shared by
// connectors: directory creation, filename sanitizing, chapter directory
// naming, and human-readable speed formatting.
