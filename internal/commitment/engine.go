package commitment

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/holiman/uint256"

	gethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/R3E-Network/credible-commitment-machine/internal/ccmcrypto"
	"github.com/R3E-Network/credible-commitment-machine/internal/ccmtypes"
	"github.com/R3E-Network/credible-commitment-machine/internal/identifiers"
	"github.com/R3E-Network/credible-commitment-machine/internal/merkle"
	"github.com/R3E-Network/credible-commitment-machine/internal/settlement"
	platformos "github.com/R3E-Network/credible-commitment-machine/platform/os"
)

// Dependencies are the capabilities and injected components a
// CommitmentEngine is built from. Verifier and Logger are optional.
type Dependencies struct {
	Time     platformos.SecureTime
	Random   platformos.SecureRandom
	Attestor platformos.Attestor
	Verifier FulfillmentVerifier
	Logger   platformos.Logger
}

// CommitmentEngine is the single-writer lock state machine described in
// its lifecycle document. All operations serialize behind mu; read-only queries
// take the same lock since the engine's throughput does not warrant a
// finer-grained scheme.
type CommitmentEngine struct {
	mu sync.Mutex

	timeCap     platformos.SecureTime
	randomCap   platformos.SecureRandom
	attestorCap platformos.Attestor
	verifier    FulfillmentVerifier
	logger      platformos.Logger

	config      EnclaveConfig
	privateKey  *ecdsa.PrivateKey
	pubKeyBytes []byte
	state       *EnclaveState
}

// NewCommitmentEngine constructs an uninitialized engine. Call Initialize
// before any other operation.
func NewCommitmentEngine(deps Dependencies) *CommitmentEngine {
	if deps.Verifier == nil {
		deps.Verifier = DefaultFulfillmentVerifier{}
	}
	return &CommitmentEngine{
		timeCap:     deps.Time,
		randomCap:   deps.Random,
		attestorCap: deps.Attestor,
		verifier:    deps.Verifier,
		logger:      deps.Logger,
	}
}

// Initialize generates the enclave's ephemeral key and identity and
// installs config. Calling it a second time is a no-op.
func (e *CommitmentEngine) Initialize(ctx context.Context, config EnclaveConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != nil {
		return nil
	}
	config.applyDefaults()

	keyBytes, err := e.randomCap.Bytes(ctx, 32)
	if err != nil {
		return newErr(KindInternal, "", fmt.Errorf("generate private key material: %w", err))
	}
	priv, err := gethcrypto.ToECDSA(keyBytes)
	if err != nil {
		return newErr(KindInternal, "", fmt.Errorf("derive private key: %w", err))
	}

	bootTime, err := e.timeCap.Now(ctx)
	if err != nil {
		return newErr(KindInternal, "", fmt.Errorf("read boot time: %w", err))
	}

	idBytes, err := e.randomCap.Bytes(ctx, 32)
	if err != nil {
		return newErr(KindInternal, "", fmt.Errorf("generate enclave id: %w", err))
	}
	var enclaveID ccmtypes.Hash
	copy(enclaveID[:], idBytes)

	e.privateKey = priv
	e.pubKeyBytes = ccmcrypto.PublicKeyBytes(&priv.PublicKey)
	e.config = config
	e.state = &EnclaveState{
		Address:     ccmcrypto.AddressFromPublicKey(&priv.PublicKey),
		EnclaveID:   enclaveID,
		BootTime:    bootTime,
		Locks:       make(map[ccmtypes.Hash]*ResourceLock),
		Nonces:      make(map[ccmtypes.Address]*uint256.Int),
		DailyVolume: make(map[string]*uint256.Int),
		Merkle:      merkle.New(),
		StateRoot:   ccmtypes.ZeroHash,
	}

	if e.logger != nil {
		e.logger.Info("enclave initialized", "enclaveId", enclaveID.Hex(), "address", e.state.Address.Hex())
	}
	return nil
}

func (e *CommitmentEngine) requireInitializedLocked() error {
	if e.state == nil {
		return newErr(KindInternal, "", errors.New("enclave not initialized"))
	}
	return nil
}

// GenerateBootAttestation produces the boot-time identity attestation.
func (e *CommitmentEngine) GenerateBootAttestation(ctx context.Context) (*BootAttestation, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireInitializedLocked(); err != nil {
		return nil, err
	}

	userData := ccmcrypto.Keccak256Bytes(e.state.EnclaveID[:], e.pubKeyBytes)
	doc, codeHash, ok, err := e.attestorCap.GetAttestationDocument(ctx, e.pubKeyBytes, userData[:], e.state.EnclaveID[:])
	if err != nil {
		return nil, newErr(KindAttestorUnavailable, "", err)
	}

	hash := ccmcrypto.Keccak256(ccmcrypto.NewEncoder().
		Bytes32(e.state.EnclaveID).
		BytesTail(e.pubKeyBytes).
		Uint64(e.state.BootTime).
		Bytes())
	sig, err := ccmcrypto.Sign(hash, e.privateKey)
	if err != nil {
		return nil, newErr(KindInternal, "", err)
	}

	return &BootAttestation{
		EnclaveID:           e.state.EnclaveID,
		PublicKey:           e.pubKeyBytes,
		BootTime:            e.state.BootTime,
		CodeHash:            codeHash,
		AttestationDocument: doc,
		Signature:           sig,
		IsRealAttestation:   ok,
	}, nil
}

func (e *CommitmentEngine) validateAsset(asset identifiers.AssetIdentifier) error {
	if !e.config.SupportedChains[asset.ChainID] {
		return newErr(KindUnsupportedChain, "", fmt.Errorf("chain %d is not supported", asset.ChainID))
	}
	if !asset.Kind.Valid() {
		return newErr(KindUnsupportedAssetKind, "", fmt.Errorf("asset kind %d is invalid", asset.Kind))
	}
	if err := asset.Validate(); err != nil {
		return newErr(KindInvalidAsset, "", err)
	}
	return nil
}

// activeLocksAndSum returns owner's Active locks and the sum of their
// amounts. Caller must hold mu.
func (e *CommitmentEngine) activeLocksAndSum(owner ccmtypes.Address) ([]*ResourceLock, *uint256.Int) {
	var active []*ResourceLock
	sum := uint256.NewInt(0)
	for _, l := range e.state.Locks {
		if l.Owner == owner && l.Status == StatusActive {
			active = append(active, l)
			sum = new(uint256.Int).Add(sum, l.Amount)
		}
	}
	return active, sum
}

func (e *CommitmentEngine) nextNonceLocked(owner ccmtypes.Address) *uint256.Int {
	cur := e.state.Nonces[owner]
	if cur == nil {
		cur = uint256.NewInt(0)
	}
	next := new(uint256.Int).Add(cur, uint256.NewInt(1))
	e.state.Nonces[owner] = next
	return next
}

func utcDateKey(unixSeconds uint64) string {
	return time.Unix(int64(unixSeconds), 0).UTC().Format("2006-01-02")
}

// CreateLock validates request and, on success, inserts a Pending lock
// and returns the typed-data payload the owner must countersign.
func (e *CommitmentEngine) CreateLock(ctx context.Context, req CreateLockRequest) (*CreateLockResponse, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireInitializedLocked(); err != nil {
		return nil, err
	}

	if err := e.validateAsset(req.Asset); err != nil {
		return nil, err
	}
	if req.Amount == nil || req.Amount.IsZero() {
		return nil, newErr(KindAmountOutOfRange, "", errors.New("amount must be greater than zero"))
	}
	if req.Amount.Cmp(e.config.RiskLimits.MaxSingleLockAmount) > 0 {
		return nil, newErr(KindAmountOutOfRange, "", errors.New("amount exceeds maxSingleLockAmount"))
	}
	if req.ExpiresIn < e.config.MinLockDuration || req.ExpiresIn > e.config.MaxLockDuration {
		return nil, newErr(KindDurationOutOfRange, "", fmt.Errorf("expiresIn %d outside [%d,%d]", req.ExpiresIn, e.config.MinLockDuration, e.config.MaxLockDuration))
	}

	activeLocks, activeSum := e.activeLocksAndSum(req.Owner)
	if uint32(len(activeLocks)) >= e.config.RiskLimits.MaxConcurrentLocks {
		return nil, newErr(KindRiskLimitExceeded, "concurrent", errors.New("max concurrent locks reached"))
	}
	if new(uint256.Int).Add(activeSum, req.Amount).Cmp(e.config.RiskLimits.MaxTotalLockedPerAccount) > 0 {
		return nil, newErr(KindRiskLimitExceeded, "account", errors.New("max total locked per account exceeded"))
	}

	now, err := e.timeCap.Now(ctx)
	if err != nil {
		return nil, newErr(KindInternal, "", err)
	}

	dateKey := utcDateKey(now)
	dailyTotal := e.state.DailyVolume[dateKey]
	if dailyTotal == nil {
		dailyTotal = uint256.NewInt(0)
	}
	if new(uint256.Int).Add(dailyTotal, req.Amount).Cmp(e.config.RiskLimits.MaxDailyVolume) > 0 {
		return nil, newErr(KindRiskLimitExceeded, "daily", errors.New("max daily volume exceeded"))
	}

	if err := e.validateAsset(req.Fulfillment.TargetAsset); err != nil {
		return nil, err
	}

	nonce := e.nextNonceLocked(req.Owner)
	lockedAt := now
	expiresAt := lockedAt + req.ExpiresIn
	assetHash := req.Asset.Hash()
	id := identifiers.LockID(req.Owner, assetHash, req.Amount, nonce, lockedAt)

	lock := &ResourceLock{
		ID:          id,
		Owner:       req.Owner,
		Asset:       req.Asset,
		Amount:      req.Amount,
		LockedAt:    lockedAt,
		ExpiresAt:   expiresAt,
		Nonce:       nonce,
		Fulfillment: req.Fulfillment,
		Status:      StatusPending,
	}
	e.state.Locks[id] = lock

	domain := ccmcrypto.CCMDomain(req.Asset.ChainID)
	approval := ccmcrypto.LockApproval{
		LockID:          id,
		Owner:           req.Owner,
		Asset:           assetHash,
		Amount:          req.Amount,
		Nonce:           nonce,
		ExpiresAt:       expiresAt,
		FulfillmentHash: req.Fulfillment.Hash(),
	}

	return &CreateLockResponse{
		LockID:              id,
		Status:              StatusPending,
		Nonce:               nonce,
		TypedData:           approval,
		DomainSeparator:     domain.Separator(),
		ExpirationTimestamp: now + 30,
	}, nil
}

// signCommitmentLocked computes lockDataHash and commitmentHash for lock
// at timestamp now, signs commitmentHash with the enclave key, and
// returns the resulting CCMAttestation. Caller must hold mu.
func (e *CommitmentEngine) signCommitmentLocked(lock *ResourceLock, now uint64) (*CCMAttestation, error) {
	lockDataHash := ccmcrypto.Keccak256(ccmcrypto.NewEncoder().
		Bytes32(lock.ID).
		Address(lock.Owner).
		Bytes32(lock.Asset.Hash()).
		Uint256(lock.Amount).
		Uint256(lock.Nonce).
		Uint64(lock.ExpiresAt).
		Bytes32(lock.Fulfillment.Hash()).
		Bytes())

	commitmentHash := ccmcrypto.Keccak256(ccmcrypto.NewEncoder().
		Bytes32(e.state.EnclaveID).
		Uint64(now).
		Bytes32(lockDataHash).
		Bytes())

	sig, err := ccmcrypto.Sign(commitmentHash, e.privateKey)
	if err != nil {
		return nil, newErr(KindInternal, "", err)
	}
	return &CCMAttestation{
		EnclaveID:      e.state.EnclaveID,
		Timestamp:      now,
		CommitmentHash: commitmentHash,
		Signature:      sig,
	}, nil
}

func (e *CommitmentEngine) buildCommitmentLocked(lock *ResourceLock, attestation *CCMAttestation) Commitment {
	userSigHash := ccmtypes.ZeroHash
	if lock.UserSignature != nil {
		userSigHash = ccmcrypto.Keccak256(lock.UserSignature[:])
	}
	return Commitment{
		LockID:               lock.ID,
		ProtocolVersion:      1,
		SourceChainID:        lock.Asset.ChainID,
		SmartAccount:         lock.Owner,
		LockedAsset:          lock.Asset,
		LockedAmount:         lock.Amount,
		CreatedAt:            lock.LockedAt,
		ExpiresAt:            lock.ExpiresAt,
		SettlementDeadline:   lock.ExpiresAt + e.config.SettlementBuffer,
		FulfillmentCondition: lock.Fulfillment,
		Nonce:                lock.Nonce,
		StateRoot:            e.state.StateRoot,
		UserSignatureHash:    userSigHash,
		CCMAttestation:       *attestation,
	}
}

// SignLock verifies userSig recovers to the lock's owner, then
// transitions it from Pending to Active.
func (e *CommitmentEngine) SignLock(ctx context.Context, lockID ccmtypes.Hash, userSig ccmtypes.Signature) (*SignLockResponse, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireInitializedLocked(); err != nil {
		return nil, err
	}

	lock, ok := e.state.Locks[lockID]
	if !ok {
		return nil, newErr(KindLockNotFound, "", fmt.Errorf("lock %s not found", lockID.Hex()))
	}
	if lock.Status != StatusPending {
		return nil, newErr(KindInvalidLockStatus, "", fmt.Errorf("lock status is %s, expected Pending", lock.Status))
	}

	domain := ccmcrypto.CCMDomain(lock.Asset.ChainID)
	approval := ccmcrypto.LockApproval{
		LockID:          lock.ID,
		Owner:           lock.Owner,
		Asset:           lock.Asset.Hash(),
		Amount:          lock.Amount,
		Nonce:           lock.Nonce,
		ExpiresAt:       lock.ExpiresAt,
		FulfillmentHash: lock.Fulfillment.Hash(),
	}
	hash := ccmcrypto.HashLockApproval(domain, approval)

	recovered, err := ccmcrypto.Recover(hash, userSig)
	if err != nil || !recovered.Equal(lock.Owner) {
		return nil, newErr(KindInvalidSignature, "", errors.New("recovered signer does not match lock owner"))
	}

	now, err := e.timeCap.Now(ctx)
	if err != nil {
		return nil, newErr(KindInternal, "", err)
	}

	attestation, err := e.signCommitmentLocked(lock, now)
	if err != nil {
		return nil, err
	}

	lock.UserSignature = &userSig
	lock.CCMSignature = &attestation.Signature
	lock.Status = StatusActive

	e.state.Merkle.AddLeaf(lock.ID)
	e.state.StateRoot = e.state.Merkle.GetRoot()

	dateKey := utcDateKey(now)
	cur := e.state.DailyVolume[dateKey]
	if cur == nil {
		cur = uint256.NewInt(0)
	}
	e.state.DailyVolume[dateKey] = new(uint256.Int).Add(cur, lock.Amount)

	commitment := e.buildCommitmentLocked(lock, attestation)
	return &SignLockResponse{LockID: lock.ID, Status: lock.Status, Commitment: commitment}, nil
}

// VerifyFulfillment checks proof against the injected FulfillmentVerifier
// and, on success, transitions the lock to Fulfilled and builds its
// settlement UserOperation.
func (e *CommitmentEngine) VerifyFulfillment(ctx context.Context, lockID ccmtypes.Hash, proof FulfillmentProof) (*FulfillLockResponse, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireInitializedLocked(); err != nil {
		return nil, err
	}

	lock, ok := e.state.Locks[lockID]
	if !ok {
		return nil, newErr(KindLockNotFound, "", fmt.Errorf("lock %s not found", lockID.Hex()))
	}
	if lock.Status != StatusActive {
		return nil, newErr(KindInvalidLockStatus, "", fmt.Errorf("lock status is %s, expected Active", lock.Status))
	}

	now, err := e.timeCap.Now(ctx)
	if err != nil {
		return nil, newErr(KindInternal, "", err)
	}

	if now > lock.ExpiresAt {
		lock.Status = StatusExpired
		e.state.Merkle.RemoveLeaf(lock.ID)
		e.state.StateRoot = e.state.Merkle.GetRoot()
		return nil, newErr(KindLockExpired, "", fmt.Errorf("lock expired at %d, now %d", lock.ExpiresAt, now))
	}

	if err := e.verifier.Verify(ctx, lock, proof); err != nil {
		return nil, newErr(KindVerifierFailed, "", err)
	}

	lock.Status = StatusFulfilled
	e.state.Merkle.RemoveLeaf(lock.ID)
	e.state.StateRoot = e.state.Merkle.GetRoot()

	attestation, err := e.signCommitmentLocked(lock, now)
	if err != nil {
		return nil, err
	}
	commitment := e.buildCommitmentLocked(lock, attestation)

	var userSig ccmtypes.Signature
	if lock.UserSignature != nil {
		userSig = *lock.UserSignature
	}
	userOp, err := settlement.Build(settlement.Params{
		Sender:        lock.Owner,
		Nonce:         lock.Nonce,
		Asset:         lock.Asset,
		Amount:        lock.Amount,
		Recipient:     lock.Fulfillment.Recipient,
		ChainID:       lock.Asset.ChainID,
		UserSignature: userSig,
		Sign: func(hash ccmtypes.Hash) (ccmtypes.Signature, error) {
			return ccmcrypto.Sign(hash, e.privateKey)
		},
	})
	if err != nil {
		return nil, newErr(KindUnsupportedAssetKind, "", err)
	}

	return &FulfillLockResponse{
		LockID:        lock.ID,
		Status:        lock.Status,
		Commitment:    commitment,
		UserOperation: *userOp,
	}, nil
}

// CancelLock verifies userSig over the cancellation message and, if the
// lock is Pending or Active, transitions it to Cancelled.
func (e *CommitmentEngine) CancelLock(ctx context.Context, lockID ccmtypes.Hash, userSig ccmtypes.Signature) (*AppAttestation, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireInitializedLocked(); err != nil {
		return nil, err
	}

	lock, ok := e.state.Locks[lockID]
	if !ok {
		return nil, newErr(KindLockNotFound, "", fmt.Errorf("lock %s not found", lockID.Hex()))
	}
	if lock.Status != StatusPending && lock.Status != StatusActive {
		return nil, newErr(KindInvalidLockStatus, "", fmt.Errorf("lock status is %s, cannot cancel", lock.Status))
	}

	cancelMsg := ccmcrypto.Keccak256(ccmcrypto.NewEncoder().Bytes32(lockID).BytesTail([]byte("CANCEL")).Bytes())
	recovered, err := ccmcrypto.Recover(cancelMsg, userSig)
	if err != nil || !recovered.Equal(lock.Owner) {
		return nil, newErr(KindInvalidSignature, "", errors.New("cancel signature does not match lock owner"))
	}

	wasActive := lock.Status == StatusActive
	lock.Status = StatusCancelled
	if wasActive {
		e.state.Merkle.RemoveLeaf(lock.ID)
		e.state.StateRoot = e.state.Merkle.GetRoot()
	}

	now, err := e.timeCap.Now(ctx)
	if err != nil {
		return nil, newErr(KindInternal, "", err)
	}

	dataHash := ccmcrypto.Keccak256(ccmcrypto.NewEncoder().Bytes32(lockID).Uint8(lock.Status.Code()).Bytes())
	sig, err := ccmcrypto.Sign(cancelMsg, e.privateKey)
	if err != nil {
		return nil, newErr(KindInternal, "", err)
	}

	return &AppAttestation{
		EnclaveID: e.state.EnclaveID,
		Operation: "CANCEL",
		Timestamp: now,
		DataHash:  dataHash,
		Signature: sig,
	}, nil
}

// GetLock returns a copy of the lock with the given ID.
func (e *CommitmentEngine) GetLock(lockID ccmtypes.Hash) (*ResourceLock, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireInitializedLocked(); err != nil {
		return nil, err
	}
	lock, ok := e.state.Locks[lockID]
	if !ok {
		return nil, newErr(KindLockNotFound, "", fmt.Errorf("lock %s not found", lockID.Hex()))
	}
	copied := *lock
	return &copied, nil
}

// GetActiveLocks returns copies of owner's currently Active locks.
func (e *CommitmentEngine) GetActiveLocks(owner ccmtypes.Address) []*ResourceLock {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return nil
	}
	active, _ := e.activeLocksAndSum(owner)
	out := make([]*ResourceLock, len(active))
	for i, l := range active {
		copied := *l
		out[i] = &copied
	}
	return out
}

// GetLockedBalance sums the amount of owner's Active locks in asset.
func (e *CommitmentEngine) GetLockedBalance(owner ccmtypes.Address, asset identifiers.AssetIdentifier) *uint256.Int {
	e.mu.Lock()
	defer e.mu.Unlock()
	sum := uint256.NewInt(0)
	if e.state == nil {
		return sum
	}
	assetHash := asset.Hash()
	for _, l := range e.state.Locks {
		if l.Owner == owner && l.Status == StatusActive && l.Asset.Hash() == assetHash {
			sum = new(uint256.Int).Add(sum, l.Amount)
		}
	}
	return sum
}

// GetStateRoot returns the current Merkle state root.
func (e *CommitmentEngine) GetStateRoot() ccmtypes.Hash {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return ccmtypes.ZeroHash
	}
	return e.state.StateRoot
}

// GetEnclavePublicKey returns the enclave's uncompressed public key.
// The private key itself never leaves the engine.
func (e *CommitmentEngine) GetEnclavePublicKey() []byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pubKeyBytes
}

// GetEnclaveID returns the enclave's random identity.
func (e *CommitmentEngine) GetEnclaveID() ccmtypes.Hash {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return ccmtypes.ZeroHash
	}
	return e.state.EnclaveID
}

// CleanupExpiredLocks reaps Active locks past their expiresAt and
// returns how many were transitioned.
func (e *CommitmentEngine) CleanupExpiredLocks(ctx context.Context) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireInitializedLocked(); err != nil {
		return 0, err
	}

	now, err := e.timeCap.Now(ctx)
	if err != nil {
		return 0, newErr(KindInternal, "", err)
	}

	count := 0
	for _, l := range e.state.Locks {
		if l.Status == StatusActive && now > l.ExpiresAt {
			l.Status = StatusExpired
			e.state.Merkle.RemoveLeaf(l.ID)
			count++
		}
	}
	if count > 0 {
		e.state.StateRoot = e.state.Merkle.GetRoot()
	}
	return count, nil
}
