// Package types provides core type definitions and interfaces for the heatgrid solver.
//
// This package contains shared types that are used across multiple packages in
// heatgrid. By keeping these types in a separate package, we avoid import cycles
// between the main heatgrid package and its internal implementations.
//
// Key types:
//   - State: Worker lifecycle state
//   - Topology: Rank-derived neighbour descriptor
//   - Message, Transport: Point-to-point messaging boundary
//   - Diagnostic, Collector, Reporter: Convergence rendezvous contracts
//   - Logger: Structured logging interface
//   - MetricsCollector: Metrics recording interface
package types
