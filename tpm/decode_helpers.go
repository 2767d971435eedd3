package tpm

import (
	"crypto/x509"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/hwattest/core"
)

// rawFields is the CBOR shape of a TPM attestation statement (spec section
// 3's data model), read with cbor.RawMessage leaves so each field can be
// validated and unmarshaled on its own terms.
type rawFields struct {
	ver      string
	alg      int32
	x5cRaw   [][]byte
	sig      []byte
	certInfo []byte
	pubArea  []byte
	ecdaaKey []byte
	hasECDAA bool
}

// extractFields pulls ver/alg/sig/certInfo/pubArea and exactly one of
// x5c/ecdaaKeyId out of the statement's CBOR value tree. Missing required
// keys or wrong-typed values report ok=false; the caller reports a single
// UnexpectedCborStructure error carrying the whole map.
func extractFields(m attestcore.CBORMap) (f rawFields, ok bool) {
	verRaw, present := m["ver"]
	if !present {
		return rawFields{}, false
	}
	if err := cbor.Unmarshal(verRaw, &f.ver); err != nil {
		return rawFields{}, false
	}
	if f.ver != "2.0" {
		return rawFields{}, false
	}

	algRaw, present := m["alg"]
	if !present {
		return rawFields{}, false
	}
	if err := cbor.Unmarshal(algRaw, &f.alg); err != nil {
		return rawFields{}, false
	}

	sigRaw, present := m["sig"]
	if !present {
		return rawFields{}, false
	}
	if err := cbor.Unmarshal(sigRaw, &f.sig); err != nil || len(f.sig) == 0 {
		return rawFields{}, false
	}

	certInfoRaw, present := m["certInfo"]
	if !present {
		return rawFields{}, false
	}
	if err := cbor.Unmarshal(certInfoRaw, &f.certInfo); err != nil || len(f.certInfo) == 0 {
		return rawFields{}, false
	}

	pubAreaRaw, present := m["pubArea"]
	if !present {
		return rawFields{}, false
	}
	if err := cbor.Unmarshal(pubAreaRaw, &f.pubArea); err != nil || len(f.pubArea) == 0 {
		return rawFields{}, false
	}

	x5cCBOR, hasX5C := m["x5c"]
	ecdaaCBOR, hasECDAA := m["ecdaaKeyId"]
	switch {
	case hasX5C && hasECDAA:
		return rawFields{}, false // mutually exclusive per the CBOR grammar
	case hasX5C:
		if err := cbor.Unmarshal(x5cCBOR, &f.x5cRaw); err != nil || len(f.x5cRaw) == 0 {
			return rawFields{}, false
		}
	case hasECDAA:
		if err := cbor.Unmarshal(ecdaaCBOR, &f.ecdaaKey); err != nil {
			return rawFields{}, false
		}
		f.hasECDAA = true
	default:
		return rawFields{}, false
	}

	return f, true
}

func decodeCertChain(x5cRaw [][]byte) (attestcore.TrustPath, error) {
	chain := make(attestcore.TrustPath, 0, len(x5cRaw))
	for i, raw := range x5cRaw {
		cert, err := x509.ParseCertificate(raw)
		if err != nil {
			return nil, &DecodeError{Kind: Certificate, Detail: fmt.Sprintf("x5c[%d]: %s", i, err.Error())}
		}
		chain = append(chain, cert)
	}
	return chain, nil
}
