package authndata

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/binary"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildAuthData(t *testing.T, flags byte, counter uint32, attestedCredentialData []byte) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	buf.Write(bytes.Repeat([]byte{0xAB}, 32))
	buf.WriteByte(flags)
	counterBytes := make([]byte, 4)
	binary.BigEndian.PutUint32(counterBytes, counter)
	buf.Write(counterBytes)
	buf.Write(attestedCredentialData)
	return buf.Bytes()
}

func buildCredentialData(t *testing.T, aaguid [16]byte, credID []byte) []byte {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	coseKey := map[int]interface{}{
		1: 2, 3: -7, -1: 1,
		-2: key.PublicKey.X.Bytes(),
		-3: key.PublicKey.Y.Bytes(),
	}
	coseBytes, err := cbor.Marshal(coseKey)
	require.NoError(t, err)

	buf := new(bytes.Buffer)
	buf.Write(aaguid[:])
	idLen := make([]byte, 2)
	binary.BigEndian.PutUint16(idLen, uint16(len(credID)))
	buf.Write(idLen)
	buf.Write(credID)
	buf.Write(coseBytes)
	return buf.Bytes()
}

func TestParseRejectsShortInput(t *testing.T) {
	_, err := Parse(make([]byte, 10))
	assert.Error(t, err)
}

func TestParseWithoutAttestedCredentialData(t *testing.T) {
	data := buildAuthData(t, 0x01, 5, nil)
	ad, err := Parse(data)
	require.NoError(t, err)
	assert.True(t, ad.UserPresent)
	assert.False(t, ad.UserVerified)
	assert.Equal(t, uint32(5), ad.Counter)
	assert.Nil(t, ad.Credential)
	assert.Equal(t, data, ad.Raw)
}

func TestParseWithAttestedCredentialData(t *testing.T) {
	aaguid := [16]byte{1, 2, 3, 4}
	cred := buildCredentialData(t, aaguid, []byte{0x10, 0x20, 0x30})
	data := buildAuthData(t, 0x45, 1, cred) // UP | UV | AT

	ad, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, aaguid[:], ad.AAGUID)
	assert.Equal(t, []byte{0x10, 0x20, 0x30}, ad.CredentialID)
	require.NotNil(t, ad.Credential)
	assert.False(t, ad.Credential.PublicKey.IsZero())
}

func TestParseRejectsUnsupportedExtensionData(t *testing.T) {
	aaguid := [16]byte{}
	cred := buildCredentialData(t, aaguid, []byte{0x01})
	data := buildAuthData(t, 0xC1, 1, cred) // UP | AT | ED
	data = append(data, 0xA0)               // trailing extension bytes

	_, err := Parse(data)
	assert.Error(t, err)
}

func TestParseRejectsTruncatedCredentialData(t *testing.T) {
	data := buildAuthData(t, 0x41, 1, []byte{0x01, 0x02})
	_, err := Parse(data)
	assert.Error(t, err)
}
