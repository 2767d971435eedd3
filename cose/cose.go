// Package cose implements the COSE/public-key adapter (spec section 4.2,
// component C2): it maps COSE signature algorithm identifiers to Go
// signature/hash algorithm pairs, converts X.509 and COSE_Key public key
// material into one canonically-comparable representation, and verifies
// attestation signatures.
//
// Grounded in the teacher's signaturealgorithm.go (the COSE algorithm
// registry) and credential.go's ParseCredential (COSE_Key decoding),
// generalized so both the Android Key and TPM engines share one adapter
// instead of each reimplementing key comparison.
package cose

import (
	"bytes"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rsa"
	"crypto/x509"
	"encoding/asn1"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"

	"github.com/fxamacker/cbor/v2"
)

// Supported COSE algorithm identifiers, registered in the IANA COSE Algorithm registry.
const (
	ES256 = -7     // ECDSA with SHA-256
	ES384 = -35    // ECDSA with SHA-384
	ES512 = -36    // ECDSA with SHA-512
	PS256 = -37    // RSASSA-PSS with SHA-256
	PS384 = -38    // RSASSA-PSS with SHA-384
	PS512 = -39    // RSASSA-PSS with SHA-512
	RS1   = -65535 // RSASSA-PKCS1-v1_5 with SHA-1
	RS256 = -257   // RSASSA-PKCS1-v1_5 with SHA-256
	RS384 = -258   // RSASSA-PKCS1-v1_5 with SHA-384
	RS512 = -259   // RSASSA-PKCS1-v1_5 with SHA-512
)

// SignAlg is a recognized COSE signature algorithm identifier together with
// the Go-level (signature algorithm, public key algorithm, hash) triple it
// denotes.
type SignAlg struct {
	COSEAlgorithm      int32
	Algorithm          x509.SignatureAlgorithm
	PublicKeyAlgorithm x509.PublicKeyAlgorithm
	Hash               crypto.Hash
}

// IsRSA reports whether alg uses an RSA public key.
func (a SignAlg) IsRSA() bool { return a.PublicKeyAlgorithm == x509.RSA }

// IsRSAPSS reports whether alg is an RSASSA-PSS variant.
func (a SignAlg) IsRSAPSS() bool {
	switch a.Algorithm {
	case x509.SHA256WithRSAPSS, x509.SHA384WithRSAPSS, x509.SHA512WithRSAPSS:
		return true
	default:
		return false
	}
}

// IsECDSA reports whether alg uses an ECDSA public key.
func (a SignAlg) IsECDSA() bool { return a.PublicKeyAlgorithm == x509.ECDSA }

var (
	registryMu sync.Mutex
	registry   atomic.Value // []SignAlg
)

// RegisterSignAlg registers (or replaces) a COSE algorithm identifier's mapping.
func RegisterSignAlg(coseAlg int32, sigAlg x509.SignatureAlgorithm, pkAlg x509.PublicKeyAlgorithm, hash crypto.Hash) {
	registryMu.Lock()
	defer registryMu.Unlock()
	algs, _ := registry.Load().([]SignAlg)
	for i := range algs {
		if algs[i].COSEAlgorithm == coseAlg {
			algs[i] = SignAlg{coseAlg, sigAlg, pkAlg, hash}
			registry.Store(algs)
			return
		}
	}
	registry.Store(append(algs, SignAlg{coseAlg, sigAlg, pkAlg, hash}))
}

// ToCoseSignAlg recognizes a supported COSE signature algorithm identifier (spec
// section 4.2's toCoseSignAlg).
func ToCoseSignAlg(coseAlg int32) (SignAlg, bool) {
	algs, _ := registry.Load().([]SignAlg)
	for _, a := range algs {
		if a.COSEAlgorithm == coseAlg {
			return a, true
		}
	}
	return SignAlg{}, false
}

// HashWithAlg produces the hash digest matching alg (spec section 4.2's
// hashWithCorrectAlgorithm). The TPM engine uses it to check
// certInfo.extraData and to compute the pubArea name digest.
func HashWithAlg(alg SignAlg, message []byte) ([]byte, bool) {
	if !alg.Hash.Available() {
		return nil, false
	}
	h := alg.Hash.New()
	h.Write(message)
	return h.Sum(nil), true
}

func init() {
	RegisterSignAlg(ES256, x509.ECDSAWithSHA256, x509.ECDSA, crypto.SHA256)
	RegisterSignAlg(ES384, x509.ECDSAWithSHA384, x509.ECDSA, crypto.SHA384)
	RegisterSignAlg(ES512, x509.ECDSAWithSHA512, x509.ECDSA, crypto.SHA512)
	RegisterSignAlg(PS256, x509.SHA256WithRSAPSS, x509.RSA, crypto.SHA256)
	RegisterSignAlg(PS384, x509.SHA384WithRSAPSS, x509.RSA, crypto.SHA384)
	RegisterSignAlg(PS512, x509.SHA512WithRSAPSS, x509.RSA, crypto.SHA512)
	RegisterSignAlg(RS1, x509.SHA1WithRSA, x509.RSA, crypto.SHA1)
	RegisterSignAlg(RS256, x509.SHA256WithRSA, x509.RSA, crypto.SHA256)
	RegisterSignAlg(RS384, x509.SHA384WithRSA, x509.RSA, crypto.SHA384)
	RegisterSignAlg(RS512, x509.SHA512WithRSA, x509.RSA, crypto.SHA512)
}

// PublicKey is a canonically-comparable RSA or ECDSA public key. Two
// PublicKey values compare equal by key material (modulus+exponent, or
// curve+X+Y) regardless of which encoding (X.509 SubjectPublicKeyInfo,
// COSE_Key, or TPMT_PUBLIC) they were reconstructed from — spec section 9's
// "Public-key equality" design note.
type PublicKey struct {
	native crypto.PublicKey
}

// Native returns the underlying *rsa.PublicKey or *ecdsa.PublicKey.
func (k PublicKey) Native() crypto.PublicKey { return k.native }

// IsZero reports whether k holds no key material.
func (k PublicKey) IsZero() bool { return k.native == nil }

// Equal reports whether k and other denote the same key material.
func (k PublicKey) Equal(other PublicKey) bool {
	switch a := k.native.(type) {
	case *rsa.PublicKey:
		b, ok := other.native.(*rsa.PublicKey)
		return ok && a.E == b.E && a.N != nil && b.N != nil && a.N.Cmp(b.N) == 0
	case *ecdsa.PublicKey:
		b, ok := other.native.(*ecdsa.PublicKey)
		return ok && a.Curve == b.Curve && a.X != nil && b.X != nil && a.X.Cmp(b.X) == 0 && a.Y.Cmp(b.Y) == 0
	default:
		return false
	}
}

// FromX509 converts an X.509 SubjectPublicKeyInfo value (spec section 4.2's
// fromX509) to the uniform PublicKey representation. Only RSA and ECDSA are
// recognized; anything else (e.g. Ed25519) reports ok=false.
func FromX509(pub crypto.PublicKey) (key PublicKey, ok bool) {
	switch pub.(type) {
	case *rsa.PublicKey, *ecdsa.PublicKey:
		return PublicKey{native: pub}, true
	default:
		return PublicKey{}, false
	}
}

// FromRSAMaterial builds a PublicKey from raw modulus bytes and an exponent,
// as used to reconstruct TPMT_PUBLIC's RSA unique field (spec section 4.5's
// pubAreaKey derivation).
func FromRSAMaterial(modulus []byte, exponent int) PublicKey {
	return PublicKey{native: &rsa.PublicKey{N: new(big.Int).SetBytes(modulus), E: exponent}}
}

// FromECCMaterial builds a PublicKey from a curve and raw big-endian X/Y
// coordinates, as used to reconstruct TPMT_PUBLIC's ECC unique field.
func FromECCMaterial(curve elliptic.Curve, x, y []byte) PublicKey {
	return PublicKey{native: &ecdsa.PublicKey{Curve: curve, X: new(big.Int).SetBytes(x), Y: new(big.Int).SetBytes(y)}}
}

// FromCOSE reconstructs a PublicKey and the SignAlg it was declared with
// from a COSE_Key CBOR byte string — the credentialPublicKey carried in
// authenticatorData (spec section 4.2's fromCose).
func FromCOSE(coseKeyData []byte) (key PublicKey, alg SignAlg, err error) {
	type rawCOSEKey struct {
		Kty    int             `cbor:"1,keyasint"`
		Alg    int             `cbor:"3,keyasint"`
		CrvOrN cbor.RawMessage `cbor:"-1,keyasint"`
		XOrE   cbor.RawMessage `cbor:"-2,keyasint"`
		Y      cbor.RawMessage `cbor:"-3,keyasint"`
	}
	const (
		ktyEC2 = 2
		ktyRSA = 3
	)
	var raw rawCOSEKey
	if err = cbor.Unmarshal(coseKeyData, &raw); err != nil {
		return PublicKey{}, SignAlg{}, fmt.Errorf("cose: failed to unmarshal COSE_Key: %w", err)
	}
	alg, ok := ToCoseSignAlg(int32(raw.Alg))
	if !ok {
		return PublicKey{}, SignAlg{}, fmt.Errorf("cose: unrecognized COSE algorithm %d", raw.Alg)
	}

	switch raw.Kty {
	case ktyRSA:
		if !alg.IsRSA() {
			return PublicKey{}, SignAlg{}, fmt.Errorf("cose: COSE key type %d and algorithm %d are mismatched", raw.Kty, raw.Alg)
		}
		var nb, eb []byte
		if err = cbor.Unmarshal(raw.CrvOrN, &nb); err != nil {
			return PublicKey{}, SignAlg{}, errors.New("cose: invalid RSA n")
		}
		if err = cbor.Unmarshal(raw.XOrE, &eb); err != nil {
			return PublicKey{}, SignAlg{}, errors.New("cose: invalid RSA e")
		}
		e := new(big.Int).SetBytes(eb)
		return FromRSAMaterial(nb, int(e.Int64())), alg, nil
	case ktyEC2:
		if !alg.IsECDSA() {
			return PublicKey{}, SignAlg{}, fmt.Errorf("cose: COSE key type %d and algorithm %d are mismatched", raw.Kty, raw.Alg)
		}
		var crvID int
		if err = cbor.Unmarshal(raw.CrvOrN, &crvID); err != nil {
			return PublicKey{}, SignAlg{}, errors.New("cose: invalid ECDSA curve")
		}
		curve := coseCurve(crvID)
		if curve == nil {
			return PublicKey{}, SignAlg{}, fmt.Errorf("cose: unsupported COSE curve %d", crvID)
		}
		var xb, yb []byte
		if err = cbor.Unmarshal(raw.XOrE, &xb); err != nil {
			return PublicKey{}, SignAlg{}, errors.New("cose: invalid ECDSA x")
		}
		if err = cbor.Unmarshal(raw.Y, &yb); err != nil {
			return PublicKey{}, SignAlg{}, errors.New("cose: invalid ECDSA y")
		}
		return FromECCMaterial(curve, xb, yb), alg, nil
	default:
		return PublicKey{}, SignAlg{}, fmt.Errorf("cose: unsupported COSE key type %d", raw.Kty)
	}
}

func coseCurve(id int) elliptic.Curve {
	switch id {
	case 1:
		return elliptic.P256()
	case 2:
		return elliptic.P384()
	case 3:
		return elliptic.P521()
	default:
		return nil
	}
}

// VerifyAndroid verifies signature over message using key under the
// signature scheme named by alg (spec section 4.2's verify for Android Key).
func VerifyAndroid(alg SignAlg, key PublicKey, message, signature []byte) error {
	if !alg.Hash.Available() {
		return fmt.Errorf("cose: hash algorithm unavailable for COSE algorithm %d", alg.COSEAlgorithm)
	}
	h := alg.Hash.New()
	h.Write(message)
	digest := h.Sum(nil)

	switch pk := key.native.(type) {
	case *rsa.PublicKey:
		if alg.IsRSAPSS() {
			return rsa.VerifyPSS(pk, alg.Hash, digest, signature, &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthAuto, Hash: alg.Hash})
		}
		return rsa.VerifyPKCS1v15(pk, alg.Hash, digest, signature)
	case *ecdsa.PublicKey:
		var sig struct{ R, S *big.Int }
		rest, err := asn1.Unmarshal(signature, &sig)
		if err != nil {
			return fmt.Errorf("cose: failed to unmarshal ECDSA signature: %w", err)
		}
		if len(rest) != 0 {
			return errors.New("cose: trailing data after ECDSA signature")
		}
		if sig.R.Sign() <= 0 || sig.S.Sign() <= 0 {
			return errors.New("cose: ECDSA signature contained zero or negative values")
		}
		if !ecdsa.Verify(pk, digest, sig.R, sig.S) {
			return errors.New("cose: ECDSA signature verification failed")
		}
		return nil
	default:
		return fmt.Errorf("cose: unsupported public key type %T", key.native)
	}
}

// VerifyTPM verifies signature over message using key under the signature
// scheme named by alg, returning a bool rather than an error (spec section
// 4.2's verify for TPM — TPM verification selects the hash from the
// key/algorithm combination already fixed by alg).
func VerifyTPM(alg SignAlg, key PublicKey, message, signature []byte) bool {
	return VerifyAndroid(alg, key, message, signature) == nil
}

// COSEKeyLength reports how many leading bytes of data a single COSE_Key
// CBOR map occupies, without otherwise decoding it. Callers that receive a
// COSE_Key immediately followed by more data (authenticatorData's
// attestedCredentialData, followed by optional extensions) use this to find
// where the key ends.
func COSEKeyLength(data []byte) (int, error) {
	decoder := cbor.NewDecoder(bytes.NewReader(data))
	var raw cbor.RawMessage
	if err := decoder.Decode(&raw); err != nil {
		return 0, fmt.Errorf("cose: failed to determine COSE_Key length: %w", err)
	}
	return decoder.NumBytesRead(), nil
}
