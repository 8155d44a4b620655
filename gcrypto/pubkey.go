package gcrypto

// PubKey is the common interface for public keys used to
// authenticate move records exchanged between peers.
type PubKey interface {
	// PubKeyBytes returns the raw key material,
	// without any type prefix.
	PubKeyBytes() []byte

	// Equal reports whether other is the same key.
	Equal(other PubKey) bool

	// Verify reports whether sig is a valid signature
	// by this key over msg.
	Verify(msg, sig []byte) bool

	// TypeName is the registry name for the key's type.
	TypeName() string
}
