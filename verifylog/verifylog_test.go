package verifylog

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/binary"
	"math/big"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hwattest/core"
	"github.com/hwattest/core/androidkey"
	"github.com/hwattest/core/authndata"
	"github.com/hwattest/core/cose"
)

// oidAndroidAttestationExtension mirrors androidkey's own extension OID so
// this package's tests can build a statement without reaching into that
// package's internals.
var oidAndroidAttestationExtension = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 11129, 2, 1, 17}

func u32be(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

func buildAuthData(t *testing.T, pub *ecdsa.PublicKey) []byte {
	t.Helper()
	coseKey := map[int]interface{}{
		1: 2, 3: cose.ES256, -1: 1,
		-2: pub.X.Bytes(),
		-3: pub.Y.Bytes(),
	}
	coseBytes, err := cbor.Marshal(coseKey)
	require.NoError(t, err)

	var buf bytes.Buffer
	buf.Write(bytes.Repeat([]byte{0xAB}, 32)) // rpIdHash
	buf.WriteByte(0x41)                       // UP | AT
	buf.Write(u32be(1))                       // counter
	buf.Write(make([]byte, 16))                // aaguid
	credID := []byte{0xAA, 0xBB}
	buf.Write([]byte{0x00, byte(len(credID))})
	buf.Write(credID)
	buf.Write(coseBytes)
	return buf.Bytes()
}

// androidKeyFixture builds an end-to-end-valid android-key statement and
// matching authenticatorData, using a hand-built minimal attestation
// extension (version/securityLevel/challenge, an empty softwareEnforced list,
// and a teeEnforced list carrying purpose=sign and origin=generated).
func androidKeyFixture(t *testing.T) (*androidkey.Statement, *authndata.AuthenticatorData, []byte) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	challenge := bytes.Repeat([]byte{0x42}, 32)
	extValue := buildExtensionValue(challenge)
	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "verifylog test"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		ExtraExtensions: []pkix.Extension{
			{Id: oidAndroidAttestationExtension, Value: extValue},
		},
	}
	certDER, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	require.NoError(t, err)

	authDataRaw := buildAuthData(t, &key.PublicKey)
	ad, err := authndata.Parse(authDataRaw)
	require.NoError(t, err)

	alg, ok := cose.ToCoseSignAlg(cose.ES256)
	require.True(t, ok)
	signed := append(append([]byte{}, authDataRaw...), challenge...)
	h := alg.Hash.New()
	h.Write(signed)
	sum := h.Sum(nil)
	r, s, err := ecdsa.Sign(rand.Reader, key, sum)
	require.NoError(t, err)
	sig, err := asn1.Marshal(struct{ R, S *big.Int }{r, s})
	require.NoError(t, err)

	algRaw, _ := cbor.Marshal(int32(cose.ES256))
	sigRaw, _ := cbor.Marshal(sig)
	x5cRaw, _ := cbor.Marshal([][]byte{certDER})
	m := attestcore.CBORMap{"alg": algRaw, "sig": sigRaw, "x5c": x5cRaw}

	stmt, err := androidkey.Decode(m)
	require.NoError(t, err)

	return stmt, ad, challenge
}

func identifierOctets(class byte, compound bool, tag int) []byte {
	first := class << 6
	if compound {
		first |= 0x20
	}
	if tag < 31 {
		first |= byte(tag)
		return []byte{first}
	}
	first |= 0x1F
	tagBytes := []byte{byte(tag & 0x7F)}
	rest := tag >> 7
	for rest > 0 {
		tagBytes = append([]byte{byte(rest&0x7F) | 0x80}, tagBytes...)
		rest >>= 7
	}
	return append([]byte{first}, tagBytes...)
}

func tlv(class byte, tag int, compound bool, content []byte) []byte {
	id := identifierOctets(class, compound, tag)
	if len(content) < 128 {
		return append(append(id, byte(len(content))), content...)
	}
	var lenBytes []byte
	n := len(content)
	for n > 0 {
		lenBytes = append([]byte{byte(n & 0xFF)}, lenBytes...)
		n >>= 8
	}
	header := append(id, 0x80|byte(len(lenBytes)))
	return append(header, content...)
}

func asn1Integer(v int64) []byte {
	return tlv(0, 2, false, []byte{byte(v)})
}

func asn1OctetString(content []byte) []byte {
	return tlv(0, 4, false, content)
}

func asn1Sequence(content []byte) []byte {
	return tlv(0, 16, true, content)
}

func asn1SetOf(elements ...[]byte) []byte {
	var content []byte
	for _, e := range elements {
		content = append(content, e...)
	}
	return tlv(0, 17, true, content)
}

func explicitField(tag int, inner []byte) []byte {
	return tlv(2, tag, true, inner)
}

// authorizationListWithOriginAndPurpose builds an AuthorizationList SEQUENCE
// content carrying only purpose(1)=sign and origin(702)=generated, the
// minimum the default-policy check in androidkey.Verify requires.
func authorizationListWithOriginAndPurpose() []byte {
	var content []byte
	content = append(content, explicitField(1, asn1SetOf(asn1Integer(2)))...) // purpose = KM_PURPOSE_SIGN
	content = append(content, explicitField(702, asn1Integer(0))...)          // origin = KM_ORIGIN_GENERATED
	return content
}

func buildExtensionValue(challenge []byte) []byte {
	fields := [][]byte{
		asn1Integer(3),
		asn1Integer(1),
		asn1Integer(4),
		asn1Integer(1),
		asn1OctetString(challenge),
		asn1OctetString(nil),
		asn1Sequence(nil),
		asn1Sequence(authorizationListWithOriginAndPurpose()),
	}
	var content []byte
	for _, f := range fields {
		content = append(content, f...)
	}
	return asn1Sequence(content)
}

func TestVerifyAndroidKeyLogsSuccess(t *testing.T) {
	stmt, ad, challenge := androidKeyFixture(t)

	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	attType, trustPath, err := VerifyAndroidKey(logger, stmt, ad, challenge, androidkey.Config{RequiredTrustLevel: androidkey.SoftwareEnforced})
	require.NoError(t, err)
	assert.Equal(t, attestcore.AttestationTypeBasic, attType)
	assert.Len(t, trustPath, 1)

	out := buf.String()
	assert.Contains(t, out, `"level":"info"`)
	assert.Contains(t, out, `"format":"android-key"`)
	assert.Contains(t, out, "attestation accepted")
}

func TestVerifyAndroidKeyLogsFailure(t *testing.T) {
	stmt, ad, _ := androidKeyFixture(t)
	wrongHash := bytes.Repeat([]byte{0x99}, 32)

	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	_, _, err := VerifyAndroidKey(logger, stmt, ad, wrongHash, androidkey.Config{RequiredTrustLevel: androidkey.SoftwareEnforced})
	require.Error(t, err)

	out := buf.String()
	assert.Contains(t, out, `"level":"warn"`)
	assert.Contains(t, out, `"stage":"verify"`)
	assert.Contains(t, out, "attestation rejected")
}

func TestFormatAAGUIDRejectsWrongLength(t *testing.T) {
	assert.Equal(t, "", formatAAGUID([]byte{0x01, 0x02}))
}

func TestFormatAAGUIDValid(t *testing.T) {
	raw := bytes.Repeat([]byte{0x07}, 16)
	s := formatAAGUID(raw)
	assert.NotEmpty(t, s)
	assert.Contains(t, s, "-")
}
