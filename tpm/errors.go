package tpm

import (
	"fmt"

	"github.com/hwattest/core"
)

// DecodeErrorKind enumerates the disjoint decode-time failure kinds spec
// section 7 names for TPM ("TPM decoding errors").
type DecodeErrorKind int

const (
	UnexpectedCborStructure DecodeErrorKind = iota + 1
	Certificate
	UnknownAlgorithmIdentifier
	Tpm
	CertificateExtensionMissing
	CertificateExtensionMalformed
	ExtractingPublicKey
	ECDAAUnsupported
)

// DecodeError is returned by Decode. Kind selects which detail fields are
// populated: Tpm sets both Position and TpmDetail, and some kinds set none.
type DecodeError struct {
	Kind DecodeErrorKind

	Map       attestcore.CBORMap // UnexpectedCborStructure
	Detail    string             // Certificate, CertificateExtensionMalformed
	Algorithm int32              // UnknownAlgorithmIdentifier
	Position  string             // Tpm: which field of certInfo/pubArea failed
	TpmDetail string             // Tpm
}

func (e *DecodeError) Error() string {
	switch e.Kind {
	case UnexpectedCborStructure:
		return fmt.Sprintf("tpm: unexpected cbor structure in attestation statement: %v", e.Map)
	case Certificate:
		return "tpm: failed to parse certificate: " + e.Detail
	case UnknownAlgorithmIdentifier:
		return fmt.Sprintf("tpm: unknown COSE algorithm identifier %d", e.Algorithm)
	case Tpm:
		return fmt.Sprintf("tpm: %s: %s", e.Position, e.TpmDetail)
	case CertificateExtensionMissing:
		return "tpm: AIK certificate is missing a required extension"
	case CertificateExtensionMalformed:
		return "tpm: malformed AIK certificate extension: " + e.Detail
	case ExtractingPublicKey:
		return "tpm: failed to reconstruct public key from pubArea"
	case ECDAAUnsupported:
		return "tpm: ECDAA attestation is not supported"
	default:
		return "tpm: decode error"
	}
}

// VerifyErrorKind enumerates the disjoint verification-time failure kinds
// spec section 7 names for TPM ("TPM verification errors").
type VerifyErrorKind int

const (
	CredentialKeyMismatch VerifyErrorKind = iota + 1
	InvalidMagicNumber
	InvalidType
	InvalidNameAlgorithm
	InvalidName
	InvalidPublicKey
	CertificateVersion
	VerificationFailure
	NonEmptySubjectField
	UnknownVendor
	ExtKeyOidMissing
	BasicConstraintsTrue
	CertificateAaguidMismatch
	Asn1Error
	CredentialAaguidMissing
	UnknownHashFunction
	HashMismatch
)

// VerifyError is returned by Verify. Exactly one violation is reported; the
// first one encountered in spec section 4.6.2's ordered checklist aborts
// verification with no further checks run.
type VerifyError struct {
	Kind VerifyErrorKind

	ExpectedU32 uint32 // InvalidMagicNumber
	ReceivedU32 uint32
	ExpectedU16 uint16 // InvalidType
	ReceivedU16 uint16
	Expected    []byte // InvalidName, HashMismatch
	Received    []byte
	ExpectedInt int // CertificateVersion
	ReceivedInt int
	Detail      string // VerificationFailure, Asn1Error
}

func (e *VerifyError) Error() string {
	switch e.Kind {
	case CredentialKeyMismatch:
		return "tpm: pubArea-derived public key does not match credential public key"
	case InvalidMagicNumber:
		return fmt.Sprintf("tpm: expected certInfo.magic 0x%08X, got 0x%08X", e.ExpectedU32, e.ReceivedU32)
	case InvalidType:
		return fmt.Sprintf("tpm: expected certInfo.type 0x%04X, got 0x%04X", e.ExpectedU16, e.ReceivedU16)
	case InvalidNameAlgorithm:
		return "tpm: pubArea.nameAlg is not SHA-1 or SHA-256"
	case InvalidName:
		return fmt.Sprintf("tpm: certInfo.attested.name mismatch, expected %x, got %x", e.Expected, e.Received)
	case InvalidPublicKey:
		return "tpm: pubArea does not encode a supported public key"
	case CertificateVersion:
		return fmt.Sprintf("tpm: expected certificate version %d, got %d", e.ExpectedInt, e.ReceivedInt)
	case VerificationFailure:
		s := "tpm: signature verification failed"
		if e.Detail != "" {
			s += ": " + e.Detail
		}
		return s
	case NonEmptySubjectField:
		return "tpm: AIK certificate subject field is not empty"
	case UnknownVendor:
		return "tpm: AIK certificate SAN tpmManufacturer is not a recognized TPM vendor ID"
	case ExtKeyOidMissing:
		return "tpm: AIK certificate extended key usage is missing the AIK certificate OID"
	case BasicConstraintsTrue:
		return "tpm: AIK certificate basic constraints cA is true, expected false"
	case CertificateAaguidMismatch:
		return "tpm: AIK certificate aaguid extension does not match authenticatorData.aaguid"
	case Asn1Error:
		return "tpm: " + e.Detail
	case CredentialAaguidMissing:
		return "tpm: authenticatorData has no aaguid to compare against the certificate's aaguid extension"
	case UnknownHashFunction:
		return "tpm: unknown hash function"
	case HashMismatch:
		return fmt.Sprintf("tpm: extraData mismatch, calculated %x, received %x", e.Expected, e.Received)
	default:
		return "tpm: verify error"
	}
}
