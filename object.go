package attestcore

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/hwattest/core/authndata"
)

// Format names an attestation statement format this module can decode.
type Format string

const (
	FormatAndroidKey Format = "android-key"
	FormatTPM        Format = "tpm"
)

// AttestationObject is the CBOR-encoded {fmt, authData, attStmt} structure a
// WebAuthn authenticator returns during registration
// (http://w3c.github.io/webauthn/#sctn-attestation). Splitting it out is
// plumbing, not verification: the caller still builds the per-format
// Statement via androidkey.Decode/tpm.Decode and calls the matching Verify.
type AttestationObject struct {
	Format        Format
	AuthnData     *authndata.AuthenticatorData
	StatementCBOR CBORMap
}

// ParseAttestationObject decodes a CBOR attestation object and parses its
// authenticatorData, without touching the format-specific attStmt payload —
// that stays as a CBORMap for the caller to hand to androidkey.Decode or
// tpm.Decode once it has picked the matching package for Format.
//
// Grounded on the teacher's parseAttestationObject (attestation.go), trimmed
// to the two formats this module implements; formats other than Android Key
// and TPM are reported as an unsupported format rather than dispatched to a
// plugin registry, since no other format has an engine here.
func ParseAttestationObject(data []byte) (*AttestationObject, error) {
	var raw struct {
		AuthnData []byte          `cbor:"authData"`
		Fmt       string          `cbor:"fmt"`
		AttStmt   cbor.RawMessage `cbor:"attStmt"`
	}
	if err := cbor.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("attestcore: failed to unmarshal attestation object: %w", err)
	}
	if len(raw.AuthnData) == 0 {
		return nil, fmt.Errorf("attestcore: attestation object is missing authData")
	}
	if raw.Fmt == "" {
		return nil, fmt.Errorf("attestcore: attestation object is missing fmt")
	}

	var format Format
	switch raw.Fmt {
	case string(FormatAndroidKey):
		format = FormatAndroidKey
	case string(FormatTPM):
		format = FormatTPM
	default:
		return nil, fmt.Errorf("attestcore: unsupported attestation statement format %q", raw.Fmt)
	}

	authnData, err := authndata.Parse(raw.AuthnData)
	if err != nil {
		return nil, err
	}
	if len(authnData.CredentialID) == 0 || authnData.Credential == nil {
		return nil, fmt.Errorf("attestcore: attestation object authData has no attested credential data")
	}

	stmt, err := DecodeCBORMap(raw.AttStmt)
	if err != nil {
		return nil, fmt.Errorf("attestcore: failed to unmarshal attestation statement: %w", err)
	}

	return &AttestationObject{Format: format, AuthnData: authnData, StatementCBOR: stmt}, nil
}
