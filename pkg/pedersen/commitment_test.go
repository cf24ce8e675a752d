package pedersen_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/certen/private-currency/pkg/pedersen"
)

func TestCommitmentArithmetic(t *testing.T) {
	a, openA := pedersen.New(10)
	b, openB := pedersen.New(20)

	sumOpen, err := openA.Add(openB)
	require.NoError(t, err)
	require.Equal(t, uint64(30), sumOpen.Value)

	sumComm := a.Add(b)
	require.True(t, sumComm.Verify(sumOpen))

	diffOpen, err := openB.Sub(openA)
	require.NoError(t, err)
	require.Equal(t, uint64(10), diffOpen.Value)

	diffComm := b.Sub(a)
	require.True(t, diffComm.Verify(diffOpen))
}

func TestOpeningOverflow(t *testing.T) {
	big := pedersen.WithNoBlinding(^uint64(0))
	one := pedersen.WithNoBlinding(1)
	_, err := big.Add(one)
	require.ErrorIs(t, err, pedersen.ErrArithmeticOverflow)
}

func TestOpeningUnderflow(t *testing.T) {
	small := pedersen.WithNoBlinding(1)
	big := pedersen.WithNoBlinding(2)
	_, err := small.Sub(big)
	require.ErrorIs(t, err, pedersen.ErrArithmeticUnderflow)
}

func TestCommitmentRoundTrip(t *testing.T) {
	c, open := pedersen.New(42)
	encoded, err := c.Bytes()
	require.NoError(t, err)
	require.Len(t, encoded, 32)

	decoded, err := pedersen.CommitmentFromBytes(encoded[:])
	require.NoError(t, err)
	require.True(t, decoded.Verify(open))
}

func TestOpeningRoundTrip(t *testing.T) {
	_, open := pedersen.New(7)
	encoded, err := open.Bytes()
	require.NoError(t, err)
	require.Len(t, encoded, 40)

	decoded, err := pedersen.OpeningFromBytes(encoded[:])
	require.NoError(t, err)
	require.Equal(t, open.Value, decoded.Value)
}

func TestWithNoBlindingIsDeterministic(t *testing.T) {
	a := pedersen.FromOpening(pedersen.WithNoBlinding(100))
	b := pedersen.FromOpening(pedersen.WithNoBlinding(100))
	require.True(t, a.IsEqual(b))
}
