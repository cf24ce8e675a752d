package rangeproof_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/certen/private-currency/pkg/pedersen"
	"github.com/certen/private-currency/pkg/rangeproof"
)

func TestRangeProofSerializedSize(t *testing.T) {
	_, opening := pedersen.New(12345)
	proof, err := rangeproof.Prove(opening)
	require.NoError(t, err)

	encoded, err := proof.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, encoded, rangeproof.ElementsSize*32)
	require.Equal(t, 21, rangeproof.ElementsSize)
}

func TestHonestProofVerifies(t *testing.T) {
	commitment, opening := pedersen.New(42)
	proof, err := rangeproof.Prove(opening)
	require.NoError(t, err)
	require.True(t, proof.Verify(commitment))
}

func TestProofForZeroVerifies(t *testing.T) {
	commitment, opening := pedersen.New(0)
	proof, err := rangeproof.Prove(opening)
	require.NoError(t, err)
	require.True(t, proof.Verify(commitment))
}

func TestIncorrectProofDoesNotVerify(t *testing.T) {
	commitment, opening := pedersen.New(100)
	proof, err := rangeproof.Prove(opening)
	require.NoError(t, err)

	_, wrongOpening := pedersen.New(100)
	wrongCommitment := pedersen.FromOpening(wrongOpening)
	require.False(t, proof.Verify(wrongCommitment))

	_ = commitment
}

func TestProofRoundTrip(t *testing.T) {
	_, opening := pedersen.New(777)
	proof, err := rangeproof.Prove(opening)
	require.NoError(t, err)

	encoded, err := proof.MarshalBinary()
	require.NoError(t, err)

	var decoded rangeproof.Proof
	require.NoError(t, decoded.UnmarshalBinary(encoded))

	commitment := pedersen.FromOpening(opening)
	require.True(t, decoded.Verify(commitment))
}
