// Package tpm implements the TPM attestation format: the TPMS_ATTEST/
// TPMT_PUBLIC wire decoders and SAN extension walk (spec component C4), the
// CBOR statement decoder (C5), and the verification engine (C6), combined
// into one package because the teacher's tpm package keeps them together
// too.
package tpm

import (
	"crypto/elliptic"
	"crypto/x509"

	"github.com/hwattest/core"
	"github.com/hwattest/core/cose"
	"github.com/hwattest/core/internal/der"
)

// aaguidExtensionOID is the AIK certificate's optional AAGUID extension
// (spec section 6), carrying the authenticator model identifier as an
// OCTET STRING wrapping a 16-byte OCTET STRING.
var aaguidExtensionOID = []int{1, 3, 6, 1, 4, 1, 45724, 1, 1, 4}

// Statement is a decoded, immutable TPM attestation statement (spec section
// 3's data model). It is constructed once by Decode and consumed once by
// Verify.
type Statement struct {
	Ver         string
	Sig         []byte
	CertInfoRaw []byte
	PubAreaRaw  []byte
	Attest      *Attest
	Public      *Public
	X5C         attestcore.TrustPath // AIK certificate chain, AIK first
	Alg         cose.SignAlg
	PubAreaKey  cose.PublicKey // the public key TPMT_PUBLIC encodes, reconstructed for comparison
	AAGUID      []byte         // 16 bytes if the AIK cert carries the AAGUID extension, else nil
}

// Decode decodes a TPM attestation statement from its CBOR value tree (spec
// section 4.5).
func Decode(m attestcore.CBORMap) (*Statement, error) {
	f, ok := extractFields(m)
	if !ok {
		return nil, &DecodeError{Kind: UnexpectedCborStructure, Map: m}
	}
	if f.hasECDAA {
		return nil, &DecodeError{Kind: ECDAAUnsupported}
	}

	alg, ok := cose.ToCoseSignAlg(f.alg)
	if !ok {
		return nil, &DecodeError{Kind: UnknownAlgorithmIdentifier, Algorithm: f.alg}
	}

	x5c, err := decodeCertChain(f.x5cRaw)
	if err != nil {
		return nil, err
	}

	attest, err := ParseAttest(f.certInfo)
	if err != nil {
		return nil, err
	}
	pub, err := ParsePublic(f.pubArea)
	if err != nil {
		return nil, err
	}

	pubAreaKey, err := derivePublicKey(pub)
	if err != nil {
		return nil, &DecodeError{Kind: ExtractingPublicKey}
	}

	aaguid, err := parseAAGUIDExtension(x5c[0])
	if err != nil {
		return nil, err
	}

	return &Statement{
		Ver:         f.ver,
		Sig:         f.sig,
		CertInfoRaw: f.certInfo,
		PubAreaRaw:  f.pubArea,
		Attest:      attest,
		Public:      pub,
		X5C:         x5c,
		Alg:         alg,
		PubAreaKey:  pubAreaKey,
		AAGUID:      aaguid,
	}, nil
}

// derivePublicKey reconstructs the public key TPMT_PUBLIC's unique field
// encodes (spec section 4.5's pubAreaKey derivation).
func derivePublicKey(p *Public) (cose.PublicKey, error) {
	switch {
	case p.RSA != nil:
		return cose.FromRSAMaterial(p.RSAN, int(p.RSA.Exponent)), nil
	case p.ECC != nil:
		curve := eccCurve(p.ECC.Curve)
		if curve == nil {
			return cose.PublicKey{}, &DecodeError{Kind: ExtractingPublicKey}
		}
		return cose.FromECCMaterial(curve, p.EccX, p.EccY), nil
	default:
		return cose.PublicKey{}, &DecodeError{Kind: ExtractingPublicKey}
	}
}

func eccCurve(id uint16) elliptic.Curve {
	switch id {
	case curveP256:
		return elliptic.P256()
	case curveP384:
		return elliptic.P384()
	case curveP521:
		return elliptic.P521()
	default:
		return nil
	}
}

// parseAAGUIDExtension extracts the optional AAGUID extension from cert:
// an OCTET STRING wrapping a 16-byte OCTET STRING. A missing extension is
// not an error; a present-but-malformed one is.
func parseAAGUIDExtension(cert *x509.Certificate) ([]byte, error) {
	var raw []byte
	for _, ext := range cert.Extensions {
		if ext.Id.Equal(aaguidExtensionOID) {
			raw = ext.Value
			break
		}
	}
	if raw == nil {
		return nil, nil
	}

	outer, err := der.NewCursor(raw).Next()
	if err != nil {
		return nil, &DecodeError{Kind: CertificateExtensionMalformed, Detail: "malformed aaguid extension: " + err.Error()}
	}
	if outer.Tag != 4 { // OCTET STRING
		return nil, &DecodeError{Kind: CertificateExtensionMalformed, Detail: "aaguid extension is not an OCTET STRING"}
	}
	if len(outer.Bytes) != 16 {
		return nil, &DecodeError{Kind: CertificateExtensionMalformed, Detail: "aaguid extension content is not 16 bytes"}
	}
	return outer.Bytes, nil
}
