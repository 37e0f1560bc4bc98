package os

import (
	"crypto/rand"
	"time"

	"github.com/R3E-Network/credible-commitment-machine/internal/ccmcrypto"
)

// processStart anchors systemNowUnix: its wall-clock reading supplies the
// Unix offset and its monotonic reading measures elapsed time, so a host
// clock adjustment after startup does not move the result.
var processStart = time.Now()

func systemNowUnix() uint64 {
	return uint64(processStart.Unix()) + uint64(time.Since(processStart)/time.Second)
}

func cryptoRandBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

// deterministicMockDocument builds a reproducible stand-in attestation
// document out of its inputs, so simulation-mode runs are inspectable
// and comparable across restarts without depending on a real quoting
// service.
func deterministicMockDocument(publicKey, userData, nonce []byte) []byte {
	h := ccmcrypto.Keccak256Bytes(publicKey, userData, nonce, []byte("mock-attestation"))
	return h
}

func mockCodeHash() []byte {
	h := ccmcrypto.Keccak256Bytes([]byte("ccm-simulation-mode"))
	return h[:]
}
