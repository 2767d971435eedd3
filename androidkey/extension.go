package androidkey

import (
	"crypto/x509"
	"encoding/asn1"
	"fmt"

	"github.com/hwattest/core/internal/der"
)

// oidAttestationExtension is the Android keystore attestation extension,
// OID 1.3.6.1.4.1.11129.2.1.17 (spec section 6's Constants).
var oidAttestationExtension = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 11129, 2, 1, 17}

// kmOriginGenerated and kmPurposeSign are the Android Keymaster constants
// spec section 6 names.
const (
	kmOriginGenerated = 0
	kmPurposeSign     = 2
)

// authorizationList is the subset of AuthorizationList spec section 3 keeps:
// purpose, allApplications (presence only), and origin.
type authorizationList struct {
	purpose         map[int64]struct{}
	purposeSet      bool
	allApplications bool
	origin          *int64
}

func (a *authorizationList) hasExactPurpose(want int64) bool {
	return a.purposeSet && len(a.purpose) == 1 && func() bool { _, ok := a.purpose[want]; return ok }()
}

func (a *authorizationList) hasOrigin(want int64) bool {
	return a.origin != nil && *a.origin == want
}

// attestationExtension holds the fields of the Android Key attestation
// extension spec section 4.3 describes: the 32-byte attestationChallenge and
// the two authorization lists.
type attestationExtension struct {
	attestationChallenge []byte
	softwareEnforced      authorizationList
	teeEnforced           authorizationList
}

// authorizationListTags is the full ascending-order tag grammar of
// AuthorizationList spec section 4.3 requires the decoder to walk, even
// though only purpose(1), allApplications(600), and origin(702) are
// retained — any tag outside this set is a decode error.
var authorizationListTags = []int{
	1, 2, 3, 5, 6, 10, 200, 303, 400, 401, 402,
	503, 504, 505, 506, 507, 508, 509,
	600, 601,
	701, 702, 703, 704, 705, 706, 709, 710, 711, 712, 713, 714, 715, 716, 717, 718, 719,
}

func parseAuthorizationList(content []byte) (authorizationList, error) {
	var list authorizationList
	err := der.WalkOptionalExplicitTags(content, authorizationListTags, func(tag int, contentBytes []byte) error {
		switch tag {
		case 1: // purpose [1] EXPLICIT SET OF INTEGER
			var purposes []int64
			if _, err := asn1.UnmarshalWithParams(contentBytes, &purposes, "set"); err != nil {
				return fmt.Errorf("purpose: %w", err)
			}
			list.purpose = make(map[int64]struct{}, len(purposes))
			for _, p := range purposes {
				list.purpose[p] = struct{}{}
			}
			list.purposeSet = true
		case 600: // allApplications [600] EXPLICIT NULL
			list.allApplications = true
		case 702: // origin [702] EXPLICIT INTEGER
			var origin int64
			if _, err := asn1.Unmarshal(contentBytes, &origin); err != nil {
				return fmt.Errorf("origin: %w", err)
			}
			list.origin = &origin
		}
		// Every other declared tag is accepted (walked past) and discarded:
		// spec section 4.3 only retains purpose, allApplications, and origin.
		return nil
	})
	if err != nil {
		return authorizationList{}, fmt.Errorf("AuthorizationList: %w", err)
	}
	return list, nil
}

// parseAttestationExtension decodes the Android Key attestation extension
// SEQUENCE: version, attestationSecurityLevel, keymasterVersion,
// keymasterSecurityLevel, attestationChallenge, uniqueId, softwareEnforced,
// teeEnforced, in that fixed position order (spec section 4.3). Position 5
// (uniqueId) is skipped without type-checking it — spec section 9's Open
// Question 2 records this as intentional, preserved from the teacher.
func parseAttestationExtension(cert *x509.Certificate) (*attestationExtension, error) {
	var extValue []byte
	for _, ext := range cert.Extensions {
		if ext.Id.Equal(oidAttestationExtension) {
			extValue = ext.Value
			break
		}
	}
	if extValue == nil {
		return nil, &DecodeError{Kind: CertificateExtensionMissing}
	}

	seq, err := der.EnterSequence(extValue)
	if err != nil {
		return nil, &DecodeError{Kind: CertificateExtensionMalformed, Detail: err.Error()}
	}

	ext := &attestationExtension{}
	for i := 0; !seq.AtEnd(); i++ {
		el, err := seq.Next()
		if err != nil {
			return nil, &DecodeError{Kind: CertificateExtensionMalformed, Detail: err.Error()}
		}
		switch i {
		case 4: // attestationChallenge: OCTET STRING, must be exactly 32 bytes (spec section 4.3).
			if len(el.Bytes) != 32 {
				return nil, &DecodeError{Kind: CertificateExtensionMalformed, Detail: fmt.Sprintf("attestationChallenge must be 32 bytes, got %d", len(el.Bytes))}
			}
			ext.attestationChallenge = el.Bytes
		case 6: // softwareEnforced
			list, err := parseAuthorizationList(el.Bytes)
			if err != nil {
				return nil, &DecodeError{Kind: CertificateExtensionMalformed, Detail: "softwareEnforced: " + err.Error()}
			}
			ext.softwareEnforced = list
		case 7: // teeEnforced
			list, err := parseAuthorizationList(el.Bytes)
			if err != nil {
				return nil, &DecodeError{Kind: CertificateExtensionMalformed, Detail: "teeEnforced: " + err.Error()}
			}
			ext.teeEnforced = list
		}
	}
	return ext, nil
}
