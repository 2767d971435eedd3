package androidkey

import (
	"crypto/x509"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/hwattest/core"
)

// extractFields pulls alg, sig, and x5c out of the attestation statement's
// CBOR value tree. Missing keys or wrong-typed values report ok=false, at
// which point the caller reports a single UnexpectedCborStructure error
// carrying the whole map (spec section 4.5).
func extractFields(m attestcore.CBORMap) (alg int32, sig []byte, x5c [][]byte, ok bool) {
	algRaw, present := m["alg"]
	if !present {
		return 0, nil, nil, false
	}
	if err := cbor.Unmarshal(algRaw, &alg); err != nil {
		return 0, nil, nil, false
	}

	sigRaw, present := m["sig"]
	if !present {
		return 0, nil, nil, false
	}
	if err := cbor.Unmarshal(sigRaw, &sig); err != nil || len(sig) == 0 {
		return 0, nil, nil, false
	}

	x5cRaw, present := m["x5c"]
	if !present {
		return 0, nil, nil, false
	}
	if err := cbor.Unmarshal(x5cRaw, &x5c); err != nil || len(x5c) == 0 {
		return 0, nil, nil, false
	}

	return alg, sig, x5c, true
}

func decodeCertChain(x5cRaw [][]byte) (attestcore.TrustPath, error) {
	chain := make(attestcore.TrustPath, 0, len(x5cRaw))
	for i, der := range x5cRaw {
		cert, err := x509.ParseCertificate(der)
		if err != nil {
			return nil, &DecodeError{Kind: Certificate, Detail: indexedDetail(i, err)}
		}
		chain = append(chain, cert)
	}
	return chain, nil
}

func indexedDetail(i int, err error) string {
	return fmt.Sprintf("x5c[%d]: %s", i, err.Error())
}

func rawSubjectPublicKey(cert *x509.Certificate) []byte {
	return cert.RawSubjectPublicKeyInfo
}
