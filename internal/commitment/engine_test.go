package commitment_test

import (
	"context"
	"sync"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/credible-commitment-machine/internal/ccmcrypto"
	"github.com/R3E-Network/credible-commitment-machine/internal/ccmtypes"
	"github.com/R3E-Network/credible-commitment-machine/internal/commitment"
	"github.com/R3E-Network/credible-commitment-machine/internal/identifiers"
	"github.com/R3E-Network/credible-commitment-machine/internal/merkle"
	platformos "github.com/R3E-Network/credible-commitment-machine/platform/os"
)

// fakeClock is a SecureTime whose value the test controls directly,
// needed to exercise expiry and daily-volume-date-rollover behavior
// without sleeping.
type fakeClock struct {
	mu  sync.Mutex
	now uint64
}

func newFakeClock(start uint64) *fakeClock { return &fakeClock{now: start} }

func (c *fakeClock) Now(ctx context.Context) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now, nil
}

func (c *fakeClock) Advance(delta uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += delta
}

const testChainID = 1

func nativeAsset() identifiers.AssetIdentifier {
	return identifiers.AssetIdentifier{ChainID: testChainID, Kind: identifiers.AssetKindNative}
}

func testFulfillment(recipient ccmtypes.Address) identifiers.FulfillmentCondition {
	return identifiers.FulfillmentCondition{
		TargetChainID: testChainID,
		TargetAsset:   nativeAsset(),
		TargetAmount:  uint256.NewInt(1),
		Recipient:     recipient,
	}
}

func newTestEngine(t *testing.T, clock *fakeClock, config commitment.EnclaveConfig) *commitment.CommitmentEngine {
	t.Helper()
	eng := commitment.NewCommitmentEngine(commitment.Dependencies{
		Time:     clock,
		Random:   platformos.NewSystemSecureRandom(),
		Attestor: platformos.NewMockAttestor(),
	})
	require.NoError(t, eng.Initialize(context.Background(), config))
	return eng
}

// signApproval signs a CreateLockResponse's typed data with priv and
// returns the resulting 65-byte signature, mirroring what a wallet does
// with the EIP-712 payload createLock returns.
func signApproval(t *testing.T, resp *commitment.CreateLockResponse, chainID uint64, priv *ecdsaPrivateKeyAlias) ccmtypes.Signature {
	t.Helper()
	domain := ccmcrypto.CCMDomain(chainID)
	hash := ccmcrypto.HashLockApproval(domain, resp.TypedData)
	sig, err := ccmcrypto.Sign(hash, priv)
	require.NoError(t, err)
	return sig
}

func TestCreateLock_HappyPathAndSignLockActivates(t *testing.T) {
	clock := newFakeClock(1_000)
	eng := newTestEngine(t, clock, commitment.EnclaveConfig{})

	owner, priv := newTestAccount(t)
	req := commitment.CreateLockRequest{
		Owner:       owner,
		Asset:       nativeAsset(),
		Amount:      uint256.NewInt(100),
		ExpiresIn:   60,
		Fulfillment: testFulfillment(owner),
	}

	resp, err := eng.CreateLock(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, commitment.StatusPending, resp.Status)
	require.Equal(t, uint256.NewInt(1), resp.Nonce)

	sig := signApproval(t, resp, testChainID, priv)
	signResp, err := eng.SignLock(context.Background(), resp.LockID, sig)
	require.NoError(t, err)
	require.Equal(t, commitment.StatusActive, signResp.Status)
	require.Equal(t, resp.LockID, signResp.Commitment.LockID)
	require.False(t, signResp.Commitment.CCMAttestation.Signature == (ccmtypes.Signature{}))

	root := eng.GetStateRoot()
	require.NotEqual(t, ccmtypes.ZeroHash, root)

	tree := merkle.New()
	tree.AddLeaf(resp.LockID)
	require.Equal(t, tree.GetRoot(), root)
}

func TestSignLock_RejectsWrongSigner(t *testing.T) {
	clock := newFakeClock(1_000)
	eng := newTestEngine(t, clock, commitment.EnclaveConfig{})

	owner, _ := newTestAccount(t)
	_, imposter := newTestAccount(t)

	resp, err := eng.CreateLock(context.Background(), commitment.CreateLockRequest{
		Owner:       owner,
		Asset:       nativeAsset(),
		Amount:      uint256.NewInt(50),
		ExpiresIn:   60,
		Fulfillment: testFulfillment(owner),
	})
	require.NoError(t, err)

	badSig := signApproval(t, resp, testChainID, imposter)
	_, err = eng.SignLock(context.Background(), resp.LockID, badSig)
	require.Error(t, err)
	kind, ok := commitment.KindOf(err)
	require.True(t, ok)
	require.Equal(t, commitment.KindInvalidSignature, kind)

	lock, err := eng.GetLock(resp.LockID)
	require.NoError(t, err)
	require.Equal(t, commitment.StatusPending, lock.Status)
}

func TestSignLock_ReplayRejected(t *testing.T) {
	clock := newFakeClock(1_000)
	eng := newTestEngine(t, clock, commitment.EnclaveConfig{})

	owner, priv := newTestAccount(t)
	resp, err := eng.CreateLock(context.Background(), commitment.CreateLockRequest{
		Owner:       owner,
		Asset:       nativeAsset(),
		Amount:      uint256.NewInt(50),
		ExpiresIn:   60,
		Fulfillment: testFulfillment(owner),
	})
	require.NoError(t, err)

	sig := signApproval(t, resp, testChainID, priv)
	_, err = eng.SignLock(context.Background(), resp.LockID, sig)
	require.NoError(t, err)

	// replaying the same signature against the now-Active lock must fail:
	// signLock only accepts Pending locks.
	_, err = eng.SignLock(context.Background(), resp.LockID, sig)
	require.Error(t, err)
	kind, ok := commitment.KindOf(err)
	require.True(t, ok)
	require.Equal(t, commitment.KindInvalidLockStatus, kind)
}

func TestCreateLock_RejectsUnsupportedChain(t *testing.T) {
	clock := newFakeClock(1_000)
	eng := newTestEngine(t, clock, commitment.EnclaveConfig{})
	owner, _ := newTestAccount(t)

	_, err := eng.CreateLock(context.Background(), commitment.CreateLockRequest{
		Owner:       owner,
		Asset:       identifiers.AssetIdentifier{ChainID: 999, Kind: identifiers.AssetKindNative},
		Amount:      uint256.NewInt(10),
		ExpiresIn:   60,
		Fulfillment: testFulfillment(owner),
	})
	require.Error(t, err)
	kind, ok := commitment.KindOf(err)
	require.True(t, ok)
	require.Equal(t, commitment.KindUnsupportedChain, kind)
}

func TestCreateLock_AmountBoundaries(t *testing.T) {
	clock := newFakeClock(1_000)
	eng := newTestEngine(t, clock, commitment.EnclaveConfig{
		RiskLimits: commitment.RiskLimits{MaxSingleLockAmount: uint256.NewInt(100)},
	})
	owner, _ := newTestAccount(t)

	_, err := eng.CreateLock(context.Background(), commitment.CreateLockRequest{
		Owner: owner, Asset: nativeAsset(), Amount: uint256.NewInt(0),
		ExpiresIn: 60, Fulfillment: testFulfillment(owner),
	})
	require.Error(t, err)
	kind, _ := commitment.KindOf(err)
	require.Equal(t, commitment.KindAmountOutOfRange, kind)

	_, err = eng.CreateLock(context.Background(), commitment.CreateLockRequest{
		Owner: owner, Asset: nativeAsset(), Amount: uint256.NewInt(101),
		ExpiresIn: 60, Fulfillment: testFulfillment(owner),
	})
	require.Error(t, err)
	kind, _ = commitment.KindOf(err)
	require.Equal(t, commitment.KindAmountOutOfRange, kind)

	resp, err := eng.CreateLock(context.Background(), commitment.CreateLockRequest{
		Owner: owner, Asset: nativeAsset(), Amount: uint256.NewInt(100),
		ExpiresIn: 60, Fulfillment: testFulfillment(owner),
	})
	require.NoError(t, err)
	require.Equal(t, commitment.StatusPending, resp.Status)
}

func TestCreateLock_DurationBoundaries(t *testing.T) {
	clock := newFakeClock(1_000)
	eng := newTestEngine(t, clock, commitment.EnclaveConfig{MinLockDuration: 30, MaxLockDuration: 120})
	owner, _ := newTestAccount(t)

	_, err := eng.CreateLock(context.Background(), commitment.CreateLockRequest{
		Owner: owner, Asset: nativeAsset(), Amount: uint256.NewInt(1),
		ExpiresIn: 29, Fulfillment: testFulfillment(owner),
	})
	require.Error(t, err)
	kind, _ := commitment.KindOf(err)
	require.Equal(t, commitment.KindDurationOutOfRange, kind)

	_, err = eng.CreateLock(context.Background(), commitment.CreateLockRequest{
		Owner: owner, Asset: nativeAsset(), Amount: uint256.NewInt(1),
		ExpiresIn: 121, Fulfillment: testFulfillment(owner),
	})
	require.Error(t, err)
	kind, _ = commitment.KindOf(err)
	require.Equal(t, commitment.KindDurationOutOfRange, kind)

	_, err = eng.CreateLock(context.Background(), commitment.CreateLockRequest{
		Owner: owner, Asset: nativeAsset(), Amount: uint256.NewInt(1),
		ExpiresIn: 30, Fulfillment: testFulfillment(owner),
	})
	require.NoError(t, err)
}

func TestCreateLock_ConcurrentLimitEnforced(t *testing.T) {
	clock := newFakeClock(1_000)
	eng := newTestEngine(t, clock, commitment.EnclaveConfig{
		RiskLimits: commitment.RiskLimits{MaxConcurrentLocks: 2},
	})
	owner, priv := newTestAccount(t)

	activate := func() {
		resp, err := eng.CreateLock(context.Background(), commitment.CreateLockRequest{
			Owner: owner, Asset: nativeAsset(), Amount: uint256.NewInt(1),
			ExpiresIn: 60, Fulfillment: testFulfillment(owner),
		})
		require.NoError(t, err)
		sig := signApproval(t, resp, testChainID, priv)
		_, err = eng.SignLock(context.Background(), resp.LockID, sig)
		require.NoError(t, err)
	}

	activate()
	activate()

	_, err := eng.CreateLock(context.Background(), commitment.CreateLockRequest{
		Owner: owner, Asset: nativeAsset(), Amount: uint256.NewInt(1),
		ExpiresIn: 60, Fulfillment: testFulfillment(owner),
	})
	require.Error(t, err)
	kind, ok := commitment.KindOf(err)
	require.True(t, ok)
	require.Equal(t, commitment.KindRiskLimitExceeded, kind)
}

func TestVerifyFulfillment_HappyPathBuildsUserOperation(t *testing.T) {
	clock := newFakeClock(1_000)
	eng := newTestEngine(t, clock, commitment.EnclaveConfig{})
	owner, priv := newTestAccount(t)

	resp, err := eng.CreateLock(context.Background(), commitment.CreateLockRequest{
		Owner: owner, Asset: nativeAsset(), Amount: uint256.NewInt(50),
		ExpiresIn: 60, Fulfillment: testFulfillment(owner),
	})
	require.NoError(t, err)
	sig := signApproval(t, resp, testChainID, priv)
	_, err = eng.SignLock(context.Background(), resp.LockID, sig)
	require.NoError(t, err)

	fulfillResp, err := eng.VerifyFulfillment(context.Background(), resp.LockID, commitment.FulfillmentProof{
		TransactionHash: ccmtypes.Hash{0x01},
		BlockHash:       ccmtypes.Hash{0x02},
		BlockNumber:     10,
	})
	require.NoError(t, err)
	require.Equal(t, commitment.StatusFulfilled, fulfillResp.Status)
	require.NotEmpty(t, fulfillResp.UserOperation.CallData)
	require.Len(t, fulfillResp.UserOperation.Signature, 130)

	// a Fulfilled lock is no longer an Active Merkle member.
	require.Equal(t, ccmtypes.ZeroHash, eng.GetStateRoot())
}

func TestVerifyFulfillment_AcceptsZeroValuedProof(t *testing.T) {
	clock := newFakeClock(1_000)
	eng := newTestEngine(t, clock, commitment.EnclaveConfig{})
	owner, priv := newTestAccount(t)

	resp, err := eng.CreateLock(context.Background(), commitment.CreateLockRequest{
		Owner: owner, Asset: nativeAsset(), Amount: uint256.NewInt(50),
		ExpiresIn: 60, Fulfillment: testFulfillment(owner),
	})
	require.NoError(t, err)
	sig := signApproval(t, resp, testChainID, priv)
	_, err = eng.SignLock(context.Background(), resp.LockID, sig)
	require.NoError(t, err)

	// the default verifier is a format check only: transactionHash and
	// blockHash are already fixed at exactly 32 bytes by ccmtypes.Hash, so
	// even the zero-valued proof is well-formed and must be accepted.
	fulfillResp, err := eng.VerifyFulfillment(context.Background(), resp.LockID, commitment.FulfillmentProof{})
	require.NoError(t, err)
	require.Equal(t, commitment.StatusFulfilled, fulfillResp.Status)
}

func TestVerifyFulfillment_ExpiresLazily(t *testing.T) {
	clock := newFakeClock(1_000)
	eng := newTestEngine(t, clock, commitment.EnclaveConfig{})
	owner, priv := newTestAccount(t)

	resp, err := eng.CreateLock(context.Background(), commitment.CreateLockRequest{
		Owner: owner, Asset: nativeAsset(), Amount: uint256.NewInt(50),
		ExpiresIn: 30, Fulfillment: testFulfillment(owner),
	})
	require.NoError(t, err)
	sig := signApproval(t, resp, testChainID, priv)
	_, err = eng.SignLock(context.Background(), resp.LockID, sig)
	require.NoError(t, err)

	clock.Advance(31)

	_, err = eng.VerifyFulfillment(context.Background(), resp.LockID, commitment.FulfillmentProof{
		TransactionHash: ccmtypes.Hash{0x01},
		BlockHash:       ccmtypes.Hash{0x02},
	})
	require.Error(t, err)
	kind, ok := commitment.KindOf(err)
	require.True(t, ok)
	require.Equal(t, commitment.KindLockExpired, kind)

	lock, err := eng.GetLock(resp.LockID)
	require.NoError(t, err)
	require.Equal(t, commitment.StatusExpired, lock.Status)
	require.Equal(t, ccmtypes.ZeroHash, eng.GetStateRoot())
}

func TestCancelLock_PendingAndActive(t *testing.T) {
	clock := newFakeClock(1_000)
	eng := newTestEngine(t, clock, commitment.EnclaveConfig{})
	owner, priv := newTestAccount(t)

	pending, err := eng.CreateLock(context.Background(), commitment.CreateLockRequest{
		Owner: owner, Asset: nativeAsset(), Amount: uint256.NewInt(10),
		ExpiresIn: 60, Fulfillment: testFulfillment(owner),
	})
	require.NoError(t, err)

	cancelSig := cancelSignature(t, pending.LockID, priv)
	att, err := eng.CancelLock(context.Background(), pending.LockID, cancelSig)
	require.NoError(t, err)
	require.Equal(t, "CANCEL", att.Operation)

	lock, err := eng.GetLock(pending.LockID)
	require.NoError(t, err)
	require.Equal(t, commitment.StatusCancelled, lock.Status)

	active, err := eng.CreateLock(context.Background(), commitment.CreateLockRequest{
		Owner: owner, Asset: nativeAsset(), Amount: uint256.NewInt(10),
		ExpiresIn: 60, Fulfillment: testFulfillment(owner),
	})
	require.NoError(t, err)
	sig := signApproval(t, active, testChainID, priv)
	_, err = eng.SignLock(context.Background(), active.LockID, sig)
	require.NoError(t, err)

	cancelSig2 := cancelSignature(t, active.LockID, priv)
	_, err = eng.CancelLock(context.Background(), active.LockID, cancelSig2)
	require.NoError(t, err)
	require.Equal(t, ccmtypes.ZeroHash, eng.GetStateRoot())
}

func TestCancelLock_TerminalStatusRejected(t *testing.T) {
	clock := newFakeClock(1_000)
	eng := newTestEngine(t, clock, commitment.EnclaveConfig{})
	owner, priv := newTestAccount(t)

	resp, err := eng.CreateLock(context.Background(), commitment.CreateLockRequest{
		Owner: owner, Asset: nativeAsset(), Amount: uint256.NewInt(10),
		ExpiresIn: 60, Fulfillment: testFulfillment(owner),
	})
	require.NoError(t, err)
	cancelSig := cancelSignature(t, resp.LockID, priv)
	_, err = eng.CancelLock(context.Background(), resp.LockID, cancelSig)
	require.NoError(t, err)

	_, err = eng.CancelLock(context.Background(), resp.LockID, cancelSig)
	require.Error(t, err)
	kind, ok := commitment.KindOf(err)
	require.True(t, ok)
	require.Equal(t, commitment.KindInvalidLockStatus, kind)
}

func TestCleanupExpiredLocks(t *testing.T) {
	clock := newFakeClock(1_000)
	eng := newTestEngine(t, clock, commitment.EnclaveConfig{})
	owner, priv := newTestAccount(t)

	resp, err := eng.CreateLock(context.Background(), commitment.CreateLockRequest{
		Owner: owner, Asset: nativeAsset(), Amount: uint256.NewInt(10),
		ExpiresIn: 30, Fulfillment: testFulfillment(owner),
	})
	require.NoError(t, err)
	sig := signApproval(t, resp, testChainID, priv)
	_, err = eng.SignLock(context.Background(), resp.LockID, sig)
	require.NoError(t, err)

	clock.Advance(31)
	count, err := eng.CleanupExpiredLocks(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, count)

	lock, err := eng.GetLock(resp.LockID)
	require.NoError(t, err)
	require.Equal(t, commitment.StatusExpired, lock.Status)
}

func TestNoncesMonotonicPerOwner(t *testing.T) {
	clock := newFakeClock(1_000)
	eng := newTestEngine(t, clock, commitment.EnclaveConfig{})
	owner, _ := newTestAccount(t)

	var nonces []*uint256.Int
	for i := 0; i < 3; i++ {
		resp, err := eng.CreateLock(context.Background(), commitment.CreateLockRequest{
			Owner: owner, Asset: nativeAsset(), Amount: uint256.NewInt(1),
			ExpiresIn: 60, Fulfillment: testFulfillment(owner),
		})
		require.NoError(t, err)
		nonces = append(nonces, resp.Nonce)
	}
	for i := 1; i < len(nonces); i++ {
		require.Equal(t, 1, nonces[i].Cmp(nonces[i-1]))
	}
}

func TestGetLockedBalanceSumsActiveOnly(t *testing.T) {
	clock := newFakeClock(1_000)
	eng := newTestEngine(t, clock, commitment.EnclaveConfig{})
	owner, priv := newTestAccount(t)

	pending, err := eng.CreateLock(context.Background(), commitment.CreateLockRequest{
		Owner: owner, Asset: nativeAsset(), Amount: uint256.NewInt(7),
		ExpiresIn: 60, Fulfillment: testFulfillment(owner),
	})
	require.NoError(t, err)
	require.Equal(t, uint256.NewInt(0), eng.GetLockedBalance(owner, nativeAsset()))

	sig := signApproval(t, pending, testChainID, priv)
	_, err = eng.SignLock(context.Background(), pending.LockID, sig)
	require.NoError(t, err)
	require.Equal(t, uint256.NewInt(7), eng.GetLockedBalance(owner, nativeAsset()))
}

func cancelSignature(t *testing.T, lockID ccmtypes.Hash, priv *ecdsaPrivateKeyAlias) ccmtypes.Signature {
	t.Helper()
	msg := ccmcrypto.NewEncoder().Bytes32(lockID).BytesTail([]byte("CANCEL")).Bytes()
	hash := ccmcrypto.Keccak256(msg)
	sig, err := ccmcrypto.Sign(hash, priv)
	require.NoError(t, err)
	return sig
}
