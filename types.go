package attestcore

import (
	"crypto/x509"

	"github.com/fxamacker/cbor/v2"
)

// CBORMap is a CBOR map already decoded to a value tree: string keys to
// still-undecoded CBOR terms. Spec section 4.5 describes both statement
// decoders as accepting "a mapping String → CborTerm" — this is that
// mapping. Each decoder extracts its required keys, unmarshaling each
// cbor.RawMessage into the Go type its grammar demands.
type CBORMap map[string]cbor.RawMessage

// DecodeCBORMap decodes raw CBOR bytes (an attestation statement's attStmt
// payload) into a CBORMap, the value tree the androidkey and tpm statement
// decoders operate on.
func DecodeCBORMap(data []byte) (CBORMap, error) {
	var m CBORMap
	if err := cbor.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// AttestationType identifies the attestation trust model a successful
// verification established, per http://w3c.github.io/webauthn/#sctn-attestation-types.
// Only the two variants this engine can produce are defined here.
type AttestationType int

const (
	// AttestationTypeBasic is returned by a successful Android Key verification.
	AttestationTypeBasic AttestationType = iota + 1
	// AttestationTypeVerifiableUncertain is returned by a successful TPM
	// verification (spec section 4.6.2 step 10: "Verifiable / Uncertain").
	AttestationTypeVerifiableUncertain
)

func (t AttestationType) String() string {
	switch t {
	case AttestationTypeBasic:
		return "Basic"
	case AttestationTypeVerifiableUncertain:
		return "Verifiable/Uncertain"
	default:
		return "Undefined"
	}
}

// TrustPath carries x5c in its original order, for the caller to validate
// against a trust anchor (spec section 1's Non-goals: chain validation to
// trust anchors is an external collaborator's responsibility, not this
// engine's — it receives TrustPath and does that work itself).
type TrustPath []*x509.Certificate
