package gcrypto

import "errors"

// ErrInvalidSignature indicates a signature that does not
// verify against the claimed signer and content.
var ErrInvalidSignature = errors.New("signature could not be verified")

// ErrUnsigned indicates content that carries no signature at all,
// in a context where one was required.
var ErrUnsigned = errors.New("content is not signed")
