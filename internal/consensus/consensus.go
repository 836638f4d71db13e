// Package consensus implements the node's single-proposer-per-height
// round-robin schedule: proposer selection, block validation against that
// schedule, longest-chain fork choice, and the ticker-driven engine loop
// that ties proposal, validation and broadcast together.
package consensus
