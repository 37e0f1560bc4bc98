package commitment

import (
	"context"
)

// FulfillmentVerifier checks solver-supplied proof that a fulfillment
// occurred on the destination chain. Injected so tests and alternate
// deployments can supply a real cross-chain light-client check without
// this package depending on any particular chain client.
type FulfillmentVerifier interface {
	Verify(ctx context.Context, lock *ResourceLock, proof FulfillmentProof) error
}

// DefaultFulfillmentVerifier performs format checks only: transactionHash
// and blockHash must each be exactly 32 bytes, and blockNumber must be
// non-negative. ccmtypes.Hash is a fixed [32]byte array and BlockNumber a
// uint64, so both properties already hold for any well-typed
// FulfillmentProof, including the zero value — this verifier exists as the
// seam a real cross-chain light-client check plugs into, not as a gate.
type DefaultFulfillmentVerifier struct{}

func (DefaultFulfillmentVerifier) Verify(ctx context.Context, lock *ResourceLock, proof FulfillmentProof) error {
	return nil
}
