package androidkey

import (
	"bytes"

	"github.com/hwattest/core"
	"github.com/hwattest/core/authndata"
	"github.com/hwattest/core/cose"
)

// Verify runs the Android Key verification checklist (spec section 4.6.1)
// against an already-decoded Statement, in the listed order; the first
// violation aborts with a typed VerifyError and no further checks run.
func Verify(stmt *Statement, authnData *authndata.AuthenticatorData, clientDataHash []byte, cfg Config) (attestcore.AttestationType, attestcore.TrustPath, error) {
	// 1. Verify sig over adRaw || clientDataHash using x5c[0]'s public key with alg.
	signed := make([]byte, len(authnData.Raw)+len(clientDataHash))
	copy(signed, authnData.Raw)
	copy(signed[len(authnData.Raw):], clientDataHash)
	if err := cose.VerifyAndroid(stmt.Alg, stmt.PublicKey, signed, stmt.Sig); err != nil {
		return 0, nil, &VerifyError{Kind: VerificationFailure, Detail: err.Error()}
	}

	// 2. Verify the credential public key in authenticatorData equals x5c[0]'s public key.
	if authnData.Credential == nil || !stmt.PublicKey.Equal(authnData.Credential.PublicKey) {
		return 0, nil, &VerifyError{Kind: CredentialKeyMismatch}
	}

	// 3. Verify attExt.attestationChallenge equals clientDataHash byte-for-byte.
	if !bytes.Equal(stmt.Ext.attestationChallenge, clientDataHash) {
		return 0, nil, &VerifyError{Kind: ClientDataHashMismatch}
	}

	// 4. Reject if either authorization list has allApplications present.
	if stmt.Ext.softwareEnforced.allApplications || stmt.Ext.teeEnforced.allApplications {
		return 0, nil, &VerifyError{Kind: AllApplicationsFieldFound}
	}

	// 5. origin/purpose, scoped by the configured trust level.
	switch cfg.RequiredTrustLevel {
	case TeeEnforced:
		if !stmt.Ext.teeEnforced.hasOrigin(kmOriginGenerated) {
			return 0, nil, &VerifyError{Kind: OriginFieldInvalid}
		}
		if !stmt.Ext.teeEnforced.hasExactPurpose(kmPurposeSign) {
			return 0, nil, &VerifyError{Kind: PurposeFieldInvalid}
		}
	default: // SoftwareEnforced
		if !stmt.Ext.teeEnforced.hasOrigin(kmOriginGenerated) && !stmt.Ext.softwareEnforced.hasOrigin(kmOriginGenerated) {
			return 0, nil, &VerifyError{Kind: OriginFieldInvalid}
		}
		if !stmt.Ext.teeEnforced.hasExactPurpose(kmPurposeSign) && !stmt.Ext.softwareEnforced.hasExactPurpose(kmPurposeSign) {
			return 0, nil, &VerifyError{Kind: PurposeFieldInvalid}
		}
	}

	// 6. Success: attestation type Basic, trust path x5c.
	return attestcore.AttestationTypeBasic, stmt.X5C, nil
}
