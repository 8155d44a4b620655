package gcrypto

import "context"

// Signer produces signatures over move content.
type Signer interface {
	// PubKey returns the signer's public key.
	PubKey() PubKey

	// Sign returns the signature for a given input.
	// It accepts a context in case the signing happens remotely,
	// for example on a hardware token or an agent process.
	Sign(ctx context.Context, input []byte) (signature []byte, err error)
}
