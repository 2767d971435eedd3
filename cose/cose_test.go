package cose

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/asn1"
	"math/big"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToCoseSignAlgKnownAndUnknown(t *testing.T) {
	alg, ok := ToCoseSignAlg(ES256)
	require.True(t, ok)
	assert.Equal(t, x509.ECDSA, alg.PublicKeyAlgorithm)
	assert.True(t, alg.IsECDSA())

	_, ok = ToCoseSignAlg(-99999)
	assert.False(t, ok)
}

func TestRegisterSignAlgReplacesExisting(t *testing.T) {
	orig, _ := ToCoseSignAlg(ES256)
	defer RegisterSignAlg(ES256, orig.Algorithm, orig.PublicKeyAlgorithm, orig.Hash)

	RegisterSignAlg(ES256, x509.ECDSAWithSHA512, x509.ECDSA, 0)
	updated, ok := ToCoseSignAlg(ES256)
	require.True(t, ok)
	assert.Equal(t, x509.ECDSAWithSHA512, updated.Algorithm)
}

func TestPublicKeyEqualRSA(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	a, ok := FromX509(&key.PublicKey)
	require.True(t, ok)
	b := FromRSAMaterial(key.PublicKey.N.Bytes(), key.PublicKey.E)

	assert.True(t, a.Equal(b))
	assert.False(t, a.IsZero())
}

func TestPublicKeyEqualECDSA(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	a, ok := FromX509(&key.PublicKey)
	require.True(t, ok)
	b := FromECCMaterial(elliptic.P256(), key.PublicKey.X.Bytes(), key.PublicKey.Y.Bytes())

	assert.True(t, a.Equal(b))
}

func TestPublicKeyNotEqualAcrossTypes(t *testing.T) {
	rsaKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	eccKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	a, _ := FromX509(&rsaKey.PublicKey)
	b, _ := FromX509(&eccKey.PublicKey)
	assert.False(t, a.Equal(b))
}

func TestFromX509RejectsUnsupportedKeyType(t *testing.T) {
	_, ok := FromX509("not a key")
	assert.False(t, ok)
}

func TestVerifyAndroidECDSARoundTrip(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	alg, ok := ToCoseSignAlg(ES256)
	require.True(t, ok)

	message := []byte("attested payload")
	h := alg.Hash.New()
	h.Write(message)
	digest := h.Sum(nil)

	r, s, err := ecdsa.Sign(rand.Reader, key, digest)
	require.NoError(t, err)
	sig, err := asn1.Marshal(struct{ R, S *big.Int }{r, s})
	require.NoError(t, err)

	pub, ok := FromX509(&key.PublicKey)
	require.True(t, ok)
	assert.NoError(t, VerifyAndroid(alg, pub, message, sig))

	assert.Error(t, VerifyAndroid(alg, pub, []byte("tampered"), sig))
}

func TestVerifyAndroidRSARoundTrip(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	alg, ok := ToCoseSignAlg(RS256)
	require.True(t, ok)

	message := []byte("attested payload")
	h := alg.Hash.New()
	h.Write(message)
	digest := h.Sum(nil)

	sig, err := rsa.SignPKCS1v15(rand.Reader, key, alg.Hash, digest)
	require.NoError(t, err)

	pub, ok := FromX509(&key.PublicKey)
	require.True(t, ok)
	assert.NoError(t, VerifyAndroid(alg, pub, message, sig))
}

func TestVerifyTPMReturnsBoolNotError(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	alg, _ := ToCoseSignAlg(ES256)
	pub, _ := FromX509(&key.PublicKey)

	assert.False(t, VerifyTPM(alg, pub, []byte("msg"), []byte("garbage")))
}

func TestFromCOSERoundTripECDSA(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	coseKey := map[int]interface{}{
		1:  2, // kty: EC2
		3:  ES256,
		-1: 1, // crv: P-256
		-2: key.PublicKey.X.Bytes(),
		-3: key.PublicKey.Y.Bytes(),
	}
	data, err := cbor.Marshal(coseKey)
	require.NoError(t, err)

	pub, alg, err := FromCOSE(data)
	require.NoError(t, err)
	assert.Equal(t, int32(ES256), alg.COSEAlgorithm)

	want, ok := FromX509(&key.PublicKey)
	require.True(t, ok)
	assert.True(t, pub.Equal(want))
}

func TestCOSEKeyLengthStopsAtKeyBoundary(t *testing.T) {
	coseKey := map[int]interface{}{1: 2, 3: ES256, -1: 1, -2: []byte{1}, -3: []byte{2}}
	data, err := cbor.Marshal(coseKey)
	require.NoError(t, err)

	trailing := append(append([]byte{}, data...), 0xAA, 0xBB, 0xCC)
	n, err := COSEKeyLength(trailing)
	require.NoError(t, err)
	assert.Equal(t, len(data), n)
}
