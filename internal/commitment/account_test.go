package commitment_test

import (
	"crypto/ecdsa"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/credible-commitment-machine/internal/ccmcrypto"
	"github.com/R3E-Network/credible-commitment-machine/internal/ccmtypes"
)

// ecdsaPrivateKeyAlias avoids repeating the fully qualified crypto/ecdsa
// import at every test signature site.
type ecdsaPrivateKeyAlias = ecdsa.PrivateKey

// newTestAccount generates a fresh secp256k1 keypair and its derived
// address, standing in for a wallet the RPC caller controls.
func newTestAccount(t *testing.T) (ccmtypes.Address, *ecdsaPrivateKeyAlias) {
	t.Helper()
	priv, err := ccmcrypto.GenerateKey()
	require.NoError(t, err)
	return ccmcrypto.AddressFromPublicKey(&priv.PublicKey), priv
}
