package ccm

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/R3E-Network/credible-commitment-machine/tee/attestation"
	"github.com/R3E-Network/credible-commitment-machine/tee/enclave"
)

// runtimeRandom adapts tee/enclave.Runtime's random source to
// platform/os.SecureRandom, so the enclave's ephemeral signing key is
// generated through the TEE runtime's GenerateRandom (which reads
// crypto/rand in both simulation and hardware mode).
type runtimeRandom struct {
	runtime enclave.Runtime
}

func (r runtimeRandom) Bytes(ctx context.Context, n int) ([]byte, error) {
	return r.runtime.GenerateRandom(n)
}

// runtimeAttestor adapts tee/attestation.Attestor's quote generation to
// platform/os.Attestor's boot-attestation shape.
type runtimeAttestor struct {
	attestor *attestation.Attestor
}

func (a runtimeAttestor) GetAttestationDocument(ctx context.Context, publicKey, userData, nonce []byte) ([]byte, []byte, bool, error) {
	quote, err := a.attestor.GenerateQuote(ctx, userData)
	if err != nil {
		return nil, nil, false, err
	}
	codeHash, err := hex.DecodeString(quote.MREnclave)
	if err != nil {
		return nil, nil, false, fmt.Errorf("decode MREnclave: %w", err)
	}
	isReal := a.attestor.Mode() == enclave.ModeHardware
	return quote.RawQuote, codeHash, isReal, nil
}
