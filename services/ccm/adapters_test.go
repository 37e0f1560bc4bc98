package ccm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/credible-commitment-machine/tee/attestation"
	"github.com/R3E-Network/credible-commitment-machine/tee/enclave"
)

func TestRuntimeAttestor_GetAttestationDocumentReflectsRuntimeMode(t *testing.T) {
	simRuntime, err := enclave.New(enclave.Config{EnclaveID: "e1", Mode: enclave.ModeSimulation})
	require.NoError(t, err)
	require.NoError(t, simRuntime.Initialize(context.Background()))
	simAttestor, err := attestation.New(attestation.Config{Runtime: simRuntime, EnclaveID: "e1"})
	require.NoError(t, err)

	_, codeHash, ok, err := runtimeAttestor{attestor: simAttestor}.GetAttestationDocument(context.Background(), nil, []byte("pk"), nil)
	require.NoError(t, err)
	require.False(t, ok)
	// GetMeasurement hashes with sha256, so a correctly hex-decoded
	// MREnclave is exactly 32 bytes; the pre-fix code passed through the
	// 64-byte ASCII hex string instead.
	require.Len(t, codeHash, 32)

	hwRuntime, err := enclave.New(enclave.Config{EnclaveID: "e2", Mode: enclave.ModeHardware})
	require.NoError(t, err)
	require.NoError(t, hwRuntime.Initialize(context.Background()))
	hwAttestor, err := attestation.New(attestation.Config{Runtime: hwRuntime, EnclaveID: "e2"})
	require.NoError(t, err)

	_, _, ok, err = runtimeAttestor{attestor: hwAttestor}.GetAttestationDocument(context.Background(), nil, []byte("pk"), nil)
	require.NoError(t, err)
	require.True(t, ok)
}
