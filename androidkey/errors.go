package androidkey

import (
	"fmt"

	"github.com/hwattest/core"
)

// DecodeErrorKind enumerates the disjoint decode-time failure kinds spec
// section 7 names for Android Key ("Android Key decoding errors").
type DecodeErrorKind int

const (
	UnexpectedCborStructure DecodeErrorKind = iota + 1
	UnknownAlgorithmIdentifier
	Certificate
	CertificateExtensionMissing
	CertificateExtensionMalformed
	PublicKeyUnsupported
)

// DecodeError is returned by Decode. At most one of its detail fields is
// populated, selected by Kind.
type DecodeError struct {
	Kind DecodeErrorKind

	Map       attestcore.CBORMap // UnexpectedCborStructure
	Algorithm int32              // UnknownAlgorithmIdentifier
	Detail    string             // Certificate, CertificateExtensionMalformed
	RawKey    []byte             // PublicKeyUnsupported
}

func (e *DecodeError) Error() string {
	switch e.Kind {
	case UnexpectedCborStructure:
		return fmt.Sprintf("androidkey: unexpected cbor structure in attestation statement: %v", e.Map)
	case UnknownAlgorithmIdentifier:
		return fmt.Sprintf("androidkey: unknown COSE algorithm identifier %d", e.Algorithm)
	case Certificate:
		return "androidkey: failed to parse certificate: " + e.Detail
	case CertificateExtensionMissing:
		return "androidkey: attestation certificate is missing the Android Key attestation extension"
	case CertificateExtensionMalformed:
		return "androidkey: malformed Android Key attestation extension: " + e.Detail
	case PublicKeyUnsupported:
		return fmt.Sprintf("androidkey: unsupported certificate public key (%d raw byte(s))", len(e.RawKey))
	default:
		return "androidkey: decode error"
	}
}

// VerifyErrorKind enumerates the disjoint verification-time failure kinds
// spec section 7 names for Android Key ("Android Key verification errors").
type VerifyErrorKind int

const (
	CredentialKeyMismatch VerifyErrorKind = iota + 1
	ClientDataHashMismatch
	AllApplicationsFieldFound
	OriginFieldInvalid
	PurposeFieldInvalid
	VerificationFailure
)

// VerifyError is returned by Verify. Exactly one violation is reported; the
// first one encountered in spec section 4.6.1's ordered checklist aborts
// verification with no further checks run.
type VerifyError struct {
	Kind   VerifyErrorKind
	Detail string // VerificationFailure
}

func (e *VerifyError) Error() string {
	switch e.Kind {
	case CredentialKeyMismatch:
		return "androidkey: certificate public key does not match credential public key"
	case ClientDataHashMismatch:
		return "androidkey: attestationChallenge does not match clientDataHash"
	case AllApplicationsFieldFound:
		return "androidkey: authorization list has allApplications present"
	case OriginFieldInvalid:
		return "androidkey: origin is not KM_ORIGIN_GENERATED in a qualifying authorization list"
	case PurposeFieldInvalid:
		return "androidkey: purpose is not exactly {KM_PURPOSE_SIGN} in a qualifying authorization list"
	case VerificationFailure:
		s := "androidkey: signature verification failed"
		if e.Detail != "" {
			s += ": " + e.Detail
		}
		return s
	default:
		return "androidkey: verify error"
	}
}
