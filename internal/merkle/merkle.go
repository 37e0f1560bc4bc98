// Package merkle implements the append/remove-capable binary Merkle index
// over 32-byte leaves used to publish the CCM's active-lock state root
// implementations (wyf-ACCEPT-eth2030/pkg/crypto/commitment_tree.go,
// wyf-ACCEPT-eth2030/pkg/ssz/merkle.go) which all favor a plain rebuild-
// on-mutation tree over an incremental one; this core does the same,
// since a bulk rebuild is acceptable as long as the root agrees with a
// from-scratch build.
package merkle

import (
	"bytes"
	"errors"
	"sync"

	"github.com/R3E-Network/credible-commitment-machine/internal/ccmcrypto"
	"github.com/R3E-Network/credible-commitment-machine/internal/ccmtypes"
)

// ErrIndexOutOfRange is returned by GetProof for an out-of-bounds index.
var ErrIndexOutOfRange = errors.New("merkle: leaf index out of range")

// Tree is a binary Merkle tree over an ordered, mutable set of leaves.
// Leaf order is insertion order; removal shifts subsequent leaves down.
// Safe for concurrent use: each Tree carries its own mutex, taken by
// every method (the commitment engine already serializes all mutation
// behind its own state lock, but the mutex here keeps the type safe to
// reuse standalone, e.g. in tests).
type Tree struct {
	mu     sync.RWMutex
	leaves []ccmtypes.Hash
}

// New creates an empty Merkle index.
func New() *Tree {
	return &Tree{}
}

// AddLeaf appends a leaf.
func (t *Tree) AddLeaf(leaf ccmtypes.Hash) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.leaves = append(t.leaves, leaf)
}

// RemoveLeaf removes the first occurrence of leaf, shifting subsequent
// leaves down by one index. Returns false if the leaf is absent.
func (t *Tree) RemoveLeaf(leaf ccmtypes.Hash) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, l := range t.leaves {
		if l == leaf {
			t.leaves = append(t.leaves[:i], t.leaves[i+1:]...)
			return true
		}
	}
	return false
}

// Len returns the number of leaves.
func (t *Tree) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.leaves)
}

// Contains reports whether leaf is a member of the current leaf set.
func (t *Tree) Contains(leaf ccmtypes.Hash) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, l := range t.leaves {
		if l == leaf {
			return true
		}
	}
	return false
}

// Leaves returns a copy of the current leaf order.
func (t *Tree) Leaves() []ccmtypes.Hash {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]ccmtypes.Hash, len(t.leaves))
	copy(out, t.leaves)
	return out
}

// GetRoot rebuilds the tree from scratch and returns its root. The empty
// tree's root is 32 zero bytes.
func (t *Tree) GetRoot() ccmtypes.Hash {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return rootOf(t.leaves)
}

// GetProof returns the sibling hashes on the path from leaves[index] to
// the root, in bottom-up order.
func (t *Tree) GetProof(index int) ([]ccmtypes.Hash, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if index < 0 || index >= len(t.leaves) {
		return nil, ErrIndexOutOfRange
	}

	layer := append([]ccmtypes.Hash(nil), t.leaves...)
	var proof []ccmtypes.Hash
	idx := index

	for len(layer) > 1 {
		if len(layer)%2 == 1 {
			layer = append(layer, layer[len(layer)-1])
		}
		var sibling ccmtypes.Hash
		if idx%2 == 0 {
			sibling = layer[idx+1]
		} else {
			sibling = layer[idx-1]
		}
		proof = append(proof, sibling)

		next := make([]ccmtypes.Hash, 0, len(layer)/2)
		for i := 0; i < len(layer); i += 2 {
			next = append(next, combine(layer[i], layer[i+1]))
		}
		layer = next
		idx /= 2
	}

	return proof, nil
}

// VerifyProof reports whether leaf, walked up through proof, produces root.
func VerifyProof(leaf ccmtypes.Hash, proof []ccmtypes.Hash, root ccmtypes.Hash) bool {
	current := leaf
	for _, sibling := range proof {
		current = combine(current, sibling)
	}
	return current == root
}

func rootOf(leaves []ccmtypes.Hash) ccmtypes.Hash {
	if len(leaves) == 0 {
		return ccmtypes.ZeroHash
	}
	layer := append([]ccmtypes.Hash(nil), leaves...)
	for len(layer) > 1 {
		if len(layer)%2 == 1 {
			layer = append(layer, layer[len(layer)-1])
		}
		next := make([]ccmtypes.Hash, 0, len(layer)/2)
		for i := 0; i < len(layer); i += 2 {
			next = append(next, combine(layer[i], layer[i+1]))
		}
		layer = next
	}
	return layer[0]
}

// combine implements the sort-then-concat node combiner:
// parent = keccak(min(a,b) || max(a,b)).
func combine(a, b ccmtypes.Hash) ccmtypes.Hash {
	if bytes.Compare(a[:], b[:]) <= 0 {
		return ccmcrypto.Keccak256(a[:], b[:])
	}
	return ccmcrypto.Keccak256(b[:], a[:])
}
