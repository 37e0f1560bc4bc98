package enclave_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/credible-commitment-machine/tee/enclave"
)

func TestNew_DefaultsToSimulationMode(t *testing.T) {
	rt, err := enclave.New(enclave.Config{EnclaveID: "test"})
	require.NoError(t, err)
	require.Equal(t, enclave.ModeSimulation, rt.Mode())
}

func TestRuntime_GenerateRandomRequiresInitialize(t *testing.T) {
	rt, err := enclave.New(enclave.Config{EnclaveID: "test", Mode: enclave.ModeSimulation})
	require.NoError(t, err)

	_, err = rt.GenerateRandom(32)
	require.Error(t, err)

	require.NoError(t, rt.Initialize(context.Background()))
	buf, err := rt.GenerateRandom(32)
	require.NoError(t, err)
	require.Len(t, buf, 32)
}

func TestRuntime_MeasurementsAreDeterministicPerEnclaveID(t *testing.T) {
	a, err := enclave.New(enclave.Config{EnclaveID: "enclave-a"})
	require.NoError(t, err)
	b, err := enclave.New(enclave.Config{EnclaveID: "enclave-a"})
	require.NoError(t, err)

	measA, err := a.GetMeasurement()
	require.NoError(t, err)
	measB, err := b.GetMeasurement()
	require.NoError(t, err)
	require.Equal(t, measA, measB)
}

func TestDetectMode_UsesMarbleRunEnvMarkers(t *testing.T) {
	t.Setenv("EDG_MARBLE_TYPE", "")
	t.Setenv("EDG_MARBLE_UUID", "")
	require.Equal(t, enclave.ModeSimulation, enclave.DetectMode())

	t.Setenv("EDG_MARBLE_TYPE", "ccm")
	require.Equal(t, enclave.ModeHardware, enclave.DetectMode())
}
