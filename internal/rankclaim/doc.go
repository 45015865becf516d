// Package rankclaim assigns dense worker ranks through a JetStream KV bucket
// and provides the start rendezvous that keeps ranks from sending before
// every peer has subscribed.
//
// Each rank is a key "rank-N" created with an atomic KV Create, so two
// processes can never hold the same rank. A claim starts in the "claimed"
// phase and is promoted to "ready" once the worker's transport is listening;
// WaitAll blocks until all ranks are ready.
package rankclaim
