package gchain_test

import (
	"context"
	"testing"

	"github.com/goban-engine/goban/gchain"
	"github.com/goban-engine/goban/gcrypto"
	"github.com/goban-engine/goban/gcrypto/gcryptotest"
	"github.com/goban-engine/goban/ggame"
	"github.com/stretchr/testify/require"
)

func TestMoveBlob_SignVerify(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	var reg gcrypto.Registry
	gcrypto.RegisterEd25519(&reg)

	signers := gcryptotest.DeterministicEd25519Signers(2)

	blobs := buildBlobs(t, gchain.NewGameID(), []ggame.Move{place(2, 2)})
	blob := blobs[0]

	// Unsigned verification fails closed, lenient passes.
	require.ErrorIs(t, blob.VerifySignature(&reg), gcrypto.ErrUnsigned)
	require.NoError(t, blob.VerifySignatureLenient(&reg))

	require.NoError(t, blob.Sign(ctx, signers[0], &reg))
	require.NotEmpty(t, blob.Record.Signature)
	require.NotEmpty(t, blob.Record.Signer)

	require.NoError(t, blob.VerifySignature(&reg))
	require.NoError(t, blob.VerifySignatureLenient(&reg))
}

func TestMoveBlob_SignatureInvalidAfterMutation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	var reg gcrypto.Registry
	gcrypto.RegisterEd25519(&reg)

	signers := gcryptotest.DeterministicEd25519Signers(2)

	blobs := buildBlobs(t, gchain.NewGameID(), []ggame.Move{place(2, 2)})
	blob := blobs[0]
	require.NoError(t, blob.Sign(ctx, signers[0], &reg))

	mutated := blob
	mutated.Record.Timestamp++
	require.ErrorIs(t, mutated.VerifySignature(&reg), gcrypto.ErrInvalidSignature)
	require.ErrorIs(t, mutated.VerifySignatureLenient(&reg), gcrypto.ErrInvalidSignature)
}

func TestMoveBlob_SignatureBoundToSigner(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	var reg gcrypto.Registry
	gcrypto.RegisterEd25519(&reg)

	signers := gcryptotest.DeterministicEd25519Signers(2)

	blobs := buildBlobs(t, gchain.NewGameID(), []ggame.Move{place(2, 2)})
	blob := blobs[0]
	require.NoError(t, blob.Sign(ctx, signers[0], &reg))

	// Swapping in another peer's key invalidates the signature.
	forged := blob
	forged.Record.Signer = reg.Marshal(signers[1].PubKey())
	require.ErrorIs(t, forged.VerifySignature(&reg), gcrypto.ErrInvalidSignature)
}
