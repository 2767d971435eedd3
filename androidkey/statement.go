// Package androidkey implements the Android Key attestation format: the
// keystore attestation extension decoder (spec component C3), the CBOR
// statement decoder (C5), and the verification engine (C6), combined into
// one package because the teacher's androidkeystore package keeps them
// together too.
package androidkey

import (
	"github.com/hwattest/core"
	"github.com/hwattest/core/cose"
)

// Statement is a decoded, immutable Android Key attestation statement (spec
// section 3's data model). It is constructed once by Decode and consumed
// once by Verify.
type Statement struct {
	Sig       []byte
	X5C       attestcore.TrustPath // x5c, first certificate first
	Alg       cose.SignAlg
	PublicKey cose.PublicKey // credCert's subject public key, as a comparable key
	Ext       *attestationExtension
}

// Decode decodes an Android Key attestation statement from its CBOR value
// tree (spec section 4.5).
func Decode(m attestcore.CBORMap) (*Statement, error) {
	algRaw, sigRaw, x5cRaw, ok := extractFields(m)
	if !ok {
		return nil, &DecodeError{Kind: UnexpectedCborStructure, Map: m}
	}

	alg, ok := cose.ToCoseSignAlg(algRaw)
	if !ok {
		return nil, &DecodeError{Kind: UnknownAlgorithmIdentifier, Algorithm: algRaw}
	}

	x5c, err := decodeCertChain(x5cRaw)
	if err != nil {
		return nil, err
	}
	credCert := x5c[0]

	pub, ok := cose.FromX509(credCert.PublicKey)
	if !ok {
		return nil, &DecodeError{Kind: PublicKeyUnsupported, RawKey: rawSubjectPublicKey(credCert)}
	}

	ext, err := parseAttestationExtension(credCert)
	if err != nil {
		return nil, err
	}

	return &Statement{
		Sig:       sigRaw,
		X5C:       x5c,
		Alg:       alg,
		PublicKey: pub,
		Ext:       ext,
	}, nil
}
