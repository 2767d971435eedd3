package tpm

import (
	"bytes"
	"crypto/x509"
	"encoding/asn1"
	"encoding/binary"

	"github.com/hwattest/core"
	"github.com/hwattest/core/authndata"
	"github.com/hwattest/core/cose"
)

// aikEKUOID is the extended-key-usage OID an AIK certificate must carry
// (TCG EK Credential Profile, spec section 6).
var aikEKUOID = []int{2, 23, 133, 8, 3}

// Verify runs the TPM verification checklist (spec section 4.6.2) against an
// already-decoded Statement, in the listed order; the first violation aborts
// with a typed VerifyError and no further checks run.
func Verify(stmt *Statement, authnData *authndata.AuthenticatorData, clientDataHash []byte) (attestcore.AttestationType, attestcore.TrustPath, error) {
	// 1. The public key pubArea encodes must equal the authenticatorData credential public key.
	if authnData.Credential == nil || !stmt.PubAreaKey.Equal(authnData.Credential.PublicKey) {
		return 0, nil, &VerifyError{Kind: CredentialKeyMismatch}
	}

	// 2. attToBeSigned = authenticatorData.raw || clientDataHash.
	attToBeSigned := make([]byte, len(authnData.Raw)+len(clientDataHash))
	copy(attToBeSigned, authnData.Raw)
	copy(attToBeSigned[len(authnData.Raw):], clientDataHash)

	// 3. certInfo.magic must be TPM_GENERATED_VALUE.
	if stmt.Attest.Magic != TPMGeneratedValue {
		return 0, nil, &VerifyError{Kind: InvalidMagicNumber, ExpectedU32: TPMGeneratedValue, ReceivedU32: stmt.Attest.Magic}
	}

	// 4. certInfo.type must be TPM_ST_ATTEST_CERTIFY.
	if stmt.Attest.Type != TPMStAttestCertify {
		return 0, nil, &VerifyError{Kind: InvalidType, ExpectedU16: TPMStAttestCertify, ReceivedU16: stmt.Attest.Type}
	}

	// 5. certInfo.extraData must equal hash(attToBeSigned) using alg's hash.
	digest, ok := cose.HashWithAlg(stmt.Alg, attToBeSigned)
	if !ok {
		return 0, nil, &VerifyError{Kind: UnknownHashFunction}
	}
	if !bytes.Equal(stmt.Attest.ExtraData, digest) {
		return 0, nil, &VerifyError{Kind: HashMismatch, Expected: digest, Received: stmt.Attest.ExtraData}
	}

	// 6. certInfo.attested.name must equal u16be(pubArea.nameAlg) || hash(pubAreaRaw) under nameAlg.
	pubHash, ok := nameAlgHash(stmt.Public.NameAlg, stmt.PubAreaRaw)
	if !ok {
		return 0, nil, &VerifyError{Kind: InvalidNameAlgorithm}
	}
	wantName := make([]byte, 2+len(pubHash))
	binary.BigEndian.PutUint16(wantName, stmt.Public.NameAlg)
	copy(wantName[2:], pubHash)
	if !bytes.Equal(stmt.Attest.Attested.Name, wantName) {
		return 0, nil, &VerifyError{Kind: InvalidName, Expected: wantName, Received: stmt.Attest.Attested.Name}
	}

	// 7. sig must verify over certInfoRaw using the AIK certificate's public key and alg.
	aik := stmt.X5C[0]
	aikKey, ok := cose.FromX509(aik.PublicKey)
	if !ok {
		return 0, nil, &VerifyError{Kind: InvalidPublicKey}
	}
	if !cose.VerifyTPM(stmt.Alg, aikKey, stmt.CertInfoRaw, stmt.Sig) {
		return 0, nil, &VerifyError{Kind: VerificationFailure}
	}

	// 8. AIK certificate requirements: version 3, empty subject, recognized
	// SAN tpmManufacturer, AIK EKU present, basic constraints cA == false.
	if aik.Version != 3 {
		return 0, nil, &VerifyError{Kind: CertificateVersion, ExpectedInt: 3, ReceivedInt: aik.Version}
	}
	empty, err := isEmptySubject(aik)
	if err != nil {
		return 0, nil, &VerifyError{Kind: Asn1Error, Detail: "certificate subject: " + err.Error()}
	}
	if !empty {
		return 0, nil, &VerifyError{Kind: NonEmptySubjectField}
	}
	san, err := ParseSAN(aik)
	if err != nil {
		return 0, nil, err
	}
	if !isPermittedVendor(san.Manufacturer) {
		return 0, nil, &VerifyError{Kind: UnknownVendor}
	}
	if !hasExtKeyUsageOID(aik, aikEKUOID) {
		return 0, nil, &VerifyError{Kind: ExtKeyOidMissing}
	}
	if aik.IsCA {
		return 0, nil, &VerifyError{Kind: BasicConstraintsTrue}
	}

	// 9. If the AIK certificate carries the optional AAGUID extension, it
	// must match authenticatorData.aaguid.
	if stmt.AAGUID != nil {
		if len(authnData.AAGUID) == 0 {
			return 0, nil, &VerifyError{Kind: CredentialAaguidMissing}
		}
		if !bytes.Equal(stmt.AAGUID, authnData.AAGUID) {
			return 0, nil, &VerifyError{Kind: CertificateAaguidMismatch}
		}
	}

	// 10. Success: attestation type VerifiableUncertain, trust path x5c.
	return attestcore.AttestationTypeVerifiableUncertain, stmt.X5C, nil
}

// nameAlgHash hashes data under the TPM algorithm ID alg. Decode already
// restricts pubArea.nameAlg to SHA-1/SHA-256 (spec section 4.4), so this
// only ever needs to support those two.
func nameAlgHash(alg uint16, data []byte) ([]byte, bool) {
	var hashAlg cose.SignAlg
	switch alg {
	case algSHA1:
		hashAlg, _ = cose.ToCoseSignAlg(cose.RS1)
	case algSHA256:
		hashAlg, _ = cose.ToCoseSignAlg(cose.RS256)
	default:
		return nil, false
	}
	return cose.HashWithAlg(hashAlg, data)
}

// isEmptySubject reports whether cert's Subject DN has no RDNs at all, by
// checking the raw encoded SEQUENCE content length rather than Go's parsed
// pkix.Name fields — those fold in only the well-known attribute OIDs, so an
// RDN built from an OID Go doesn't recognize (domainComponent,
// emailAddress, a vendor-specific OID) would otherwise slip through unseen.
func isEmptySubject(cert *x509.Certificate) (bool, error) {
	var subject asn1.RawValue
	if _, err := asn1.Unmarshal(cert.RawSubject, &subject); err != nil {
		return false, err
	}
	return len(subject.Bytes) == 0, nil
}

func hasExtKeyUsageOID(cert *x509.Certificate, oid []int) bool {
	for _, eku := range cert.UnknownExtKeyUsage {
		if eku.Equal(oid) {
			return true
		}
	}
	return false
}
