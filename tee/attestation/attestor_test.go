package attestation_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/credible-commitment-machine/tee/attestation"
	"github.com/R3E-Network/credible-commitment-machine/tee/enclave"
)

func newTestRuntime(t *testing.T, mode enclave.Mode) enclave.Runtime {
	t.Helper()
	rt, err := enclave.New(enclave.Config{EnclaveID: "test-enclave", Mode: mode})
	require.NoError(t, err)
	require.NoError(t, rt.Initialize(context.Background()))
	return rt
}

func TestAttestor_ModeMirrorsRuntime(t *testing.T) {
	simRuntime := newTestRuntime(t, enclave.ModeSimulation)
	a, err := attestation.New(attestation.Config{Runtime: simRuntime, EnclaveID: "test-enclave"})
	require.NoError(t, err)
	require.Equal(t, enclave.ModeSimulation, a.Mode())

	hwRuntime := newTestRuntime(t, enclave.ModeHardware)
	a, err = attestation.New(attestation.Config{Runtime: hwRuntime, EnclaveID: "test-enclave"})
	require.NoError(t, err)
	require.Equal(t, enclave.ModeHardware, a.Mode())
}

func TestAttestor_GenerateQuoteBindsUserDataAndMeasurements(t *testing.T) {
	rt := newTestRuntime(t, enclave.ModeSimulation)
	a, err := attestation.New(attestation.Config{Runtime: rt, EnclaveID: "test-enclave"})
	require.NoError(t, err)

	quote, err := a.GenerateQuote(context.Background(), []byte("nonce"))
	require.NoError(t, err)
	require.NotEmpty(t, quote.RawQuote)
	require.Equal(t, []byte("nonce"), quote.UserData)

	verification, err := a.VerifyQuote(context.Background(), quote)
	require.NoError(t, err)
	require.True(t, verification.Valid)
}

func TestAttestor_GetReportReflectsMode(t *testing.T) {
	rt := newTestRuntime(t, enclave.ModeHardware)
	a, err := attestation.New(attestation.Config{Runtime: rt, EnclaveID: "test-enclave"})
	require.NoError(t, err)

	report, err := a.GetReport(context.Background())
	require.NoError(t, err)
	require.Equal(t, "hardware", report.Mode)
}
