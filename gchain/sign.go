package gchain

import (
	"context"
	"errors"
	"fmt"

	"github.com/goban-engine/goban/gcrypto"
)

// SigningContent returns the bytes a blob signature covers:
// the blob's hash computed with the signature fields cleared.
// Clearing them first keeps the signature out of its own input.
func (b MoveBlob) SigningContent() ([]byte, error) {
	unsigned := b
	unsigned.Record.Signature = nil
	unsigned.Record.Signer = nil
	return unsigned.Hash()
}

// Sign signs the blob's content and stores the signature and the
// signer's marshalled public key on the move record.
func (b *MoveBlob) Sign(ctx context.Context, signer gcrypto.Signer, reg *gcrypto.Registry) error {
	content, err := b.SigningContent()
	if err != nil {
		return err
	}

	sig, err := signer.Sign(ctx, content)
	if err != nil {
		return fmt.Errorf("signing blob content: %w", err)
	}

	b.Record.Signature = sig
	b.Record.Signer = reg.Marshal(signer.PubKey())
	return nil
}

// VerifySignature checks the blob's signature against its declared
// signer. It fails closed: an unsigned blob returns
// [gcrypto.ErrUnsigned], and any malformed or mismatched signature
// returns [gcrypto.ErrInvalidSignature].
func (b MoveBlob) VerifySignature(reg *gcrypto.Registry) error {
	if len(b.Record.Signature) == 0 || len(b.Record.Signer) == 0 {
		return gcrypto.ErrUnsigned
	}

	pub, err := reg.Unmarshal(b.Record.Signer)
	if err != nil {
		return fmt.Errorf("decoding declared signer: %w", err)
	}

	content, err := b.SigningContent()
	if err != nil {
		return err
	}

	if !pub.Verify(content, b.Record.Signature) {
		return gcrypto.ErrInvalidSignature
	}
	return nil
}

// VerifySignatureLenient is VerifySignature except that unsigned
// blobs pass. Only for contexts where the caller explicitly
// accepts unsigned data, such as games with legacy peers.
func (b MoveBlob) VerifySignatureLenient(reg *gcrypto.Registry) error {
	err := b.VerifySignature(reg)
	if errors.Is(err, gcrypto.ErrUnsigned) {
		return nil
	}
	return err
}
