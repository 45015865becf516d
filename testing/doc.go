// Package testing provides test utilities for heatgrid.
//
// This package offers helpers for setting up test environments, particularly
// embedded NATS servers for transport and rank-claim tests. It follows Go's
// convention of providing testing utilities in a dedicated package (similar
// to net/http/httptest).
//
// Key utilities:
//   - StartEmbeddedNATS: Single NATS server with JetStream
//   - Connect: Additional client connection, one per simulated process
//   - CreateJetStreamKV: Convenience wrapper for KV bucket creation
//   - NewTestLogger: types.Logger backed by testing.T
//   - Matrix: Compact dense-matrix literal
//
// Example usage:
//
//	import (
//	    "testing"
//	    hgtest "github.com/arloliu/heatgrid/testing"
//	)
//
//	func TestMyComponent(t *testing.T) {
//	    _, nc := hgtest.StartEmbeddedNATS(t)
//	    // Use nc for your tests
//	}
package testing
