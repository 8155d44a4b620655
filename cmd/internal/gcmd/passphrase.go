package gcmd

import (
	"crypto/ed25519"

	libp2pcrypto "github.com/libp2p/go-libp2p/core/crypto"
	"golang.org/x/crypto/blake2b"

	"github.com/goban-engine/goban/gcrypto"
)

// SignerFromInsecurePassphrase derives a deterministic ed25519 signer
// from a passphrase. Insecure because the passphrase is taken on the
// command line; fine for prototyping, unacceptable for anything real.
func SignerFromInsecurePassphrase(prefix, insecurePassphrase string) (gcrypto.Ed25519Signer, error) {
	bh, err := blake2b.New(ed25519.SeedSize, nil)
	if err != nil {
		return gcrypto.Ed25519Signer{}, err
	}
	bh.Write([]byte(prefix + insecurePassphrase))
	seed := bh.Sum(nil)

	return gcrypto.NewEd25519Signer(ed25519.NewKeyFromSeed(seed)), nil
}

// Libp2pKeyFromInsecurePassphrase derives the libp2p network identity
// from a passphrase, so restarting a player keeps the same peer ID.
// The prefix must differ from the signer prefix so the two keys
// never coincide.
func Libp2pKeyFromInsecurePassphrase(prefix, insecurePassphrase string) (libp2pcrypto.PrivKey, error) {
	bh, err := blake2b.New(ed25519.SeedSize, nil)
	if err != nil {
		return nil, err
	}
	bh.Write([]byte(prefix + insecurePassphrase))
	seed := bh.Sum(nil)

	privKey := ed25519.NewKeyFromSeed(seed)

	priv, _, err := libp2pcrypto.KeyPairFromStdKey(&privKey)
	if err != nil {
		return nil, err
	}
	return priv, nil
}
