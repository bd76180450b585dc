package webserver

import (
	"bytes"
	"crypto/ed25519"
	"encoding/hex"
	"strings"

	"github.com/juju/errors"

	"github.com/stake-plus/cardano-gov-sentiment/src/cardano"
)

func decodeHex(s string) ([]byte, error) {
	return hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
}

// verifyDRepSignature checks that pubHex hashes to the DRep's key credential
// and that sigHex is its Ed25519 signature over the nonce. Wallets that sign
// the hex-encoded payload are accepted too.
func verifyDRepSignature(cred cardano.DRepCredential, pubHex, sigHex, nonce string) error {
	if cred.Script {
		return errors.NotValidf("script drep login")
	}
	pub, err := decodeHex(pubHex)
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return errors.NotValidf("publicKey")
	}
	sig, err := decodeHex(sigHex)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return errors.NotValidf("signature")
	}
	if !bytes.Equal(cardano.KeyHash(pub), cred.Hash) {
		return errors.Unauthorizedf("public key does not match drep")
	}
	for _, msg := range [][]byte{[]byte(nonce), []byte(hex.EncodeToString([]byte(nonce)))} {
		if ed25519.Verify(pub, msg, sig) {
			return nil
		}
	}
	return errors.Unauthorizedf("bad signature")
}
