package enc_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/certen/private-currency/pkg/enc"
	"github.com/certen/private-currency/pkg/keys"
)

func TestEncryptionKeysCanBeCreatedFromSigningKeys(t *testing.T) {
	const msg = "Hello, world!"

	pk, sk, err := keys.Generate()
	require.NoError(t, err)
	encPK, encSK := enc.KeypairFromEd25519(pk, sk)

	sealed, err := enc.Seal([]byte(msg), encPK, encSK)
	require.NoError(t, err)
	opened, err := sealed.Open(encPK, encSK)
	require.NoError(t, err)
	require.Equal(t, msg, string(opened))

	pk2, sk2, err := keys.Generate()
	require.NoError(t, err)
	encPK2, encSK2 := enc.KeypairFromEd25519(pk2, sk2)

	sealedToOther, err := enc.Seal([]byte(msg), encPK2, encSK)
	require.NoError(t, err)
	opened, err = sealedToOther.Open(encPK, encSK2)
	require.NoError(t, err)
	require.Equal(t, msg, string(opened))
}

func TestOpenAsSenderMatchesReceiverOpen(t *testing.T) {
	const msg = "hello"

	senderPK, senderSK, err := keys.Generate()
	require.NoError(t, err)
	receiverPK, receiverSK, err := keys.Generate()
	require.NoError(t, err)

	senderEncPK, senderEncSK := enc.KeypairFromEd25519(senderPK, senderSK)
	receiverEncPK, receiverEncSK := enc.KeypairFromEd25519(receiverPK, receiverSK)

	sealed, err := enc.Seal([]byte(msg), receiverEncPK, senderEncSK)
	require.NoError(t, err)

	viaReceiver, err := sealed.Open(senderEncPK, receiverEncSK)
	require.NoError(t, err)
	require.Equal(t, msg, string(viaReceiver))

	viaSender, err := sealed.OpenAsSender(receiverEncPK, senderEncSK)
	require.NoError(t, err)
	require.Equal(t, msg, string(viaSender))
}
