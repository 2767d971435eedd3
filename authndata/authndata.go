// Package authndata parses the WebAuthn authenticatorData structure that
// both attestation engines receive as an input (spec section 6: "raw
// authenticator-data bytes"), down to exactly the fields the Android Key and
// TPM verification engines consume: the raw bytes themselves (re-signed
// verbatim, never re-serialized), the AAGUID, and the attested credential
// public key. Flags, the RP ID hash, and the signature counter are parsed
// because they're cheap to expose, but their validation (origin/challenge
// binding, counter replay) belongs to the registration-ceremony collaborator
// spec section 1 places out of scope.
//
// Grounded in the teacher's common.go (parseAuthenticatorData), trimmed to
// drop extension-data handling (authenticatorData extensions are unrelated
// to either attestation format and the teacher itself treats them as
// unsupported).
package authndata

import (
	"encoding/binary"
	"fmt"

	"github.com/hwattest/core/cose"
)

// AuthenticatorData is the subset of the WebAuthn authenticatorData
// structure (http://w3c.github.io/webauthn/#sctn-authenticator-data) this
// module's verification engines need.
type AuthenticatorData struct {
	Raw          []byte // complete raw authenticator data, signed verbatim
	RPIDHash     []byte
	UserPresent  bool
	UserVerified bool
	Counter      uint32
	AAGUID       []byte // 16 bytes, present only if attested credential data is present
	CredentialID []byte
	Credential   *Credential
}

// Credential is the attested credential's algorithm and public key.
type Credential struct {
	Raw       []byte // the original COSE_Key CBOR bytes
	Alg       cose.SignAlg
	PublicKey cose.PublicKey
}

// Parse decodes authenticatorData from its raw wire form.
func Parse(data []byte) (*AuthenticatorData, error) {
	if len(data) < 37 {
		return nil, fmt.Errorf("authndata: unexpected EOF, need at least 37 bytes, have %d", len(data))
	}

	ad := &AuthenticatorData{Raw: data}
	ad.RPIDHash = append([]byte(nil), data[:32]...)

	flags := data[32]
	ad.UserPresent = flags&0x01 != 0
	ad.UserVerified = flags&0x04 != 0
	credentialDataIncluded := flags&0x40 != 0
	extensionDataIncluded := flags&0x80 != 0

	ad.Counter = binary.BigEndian.Uint32(data[33:37])

	rest := data[37:]

	if credentialDataIncluded {
		if len(rest) < 18 {
			return nil, fmt.Errorf("authndata: unexpected EOF in attested credential data")
		}
		ad.AAGUID = append([]byte(nil), rest[:16]...)

		idLen := int(binary.BigEndian.Uint16(rest[16:18]))
		rest = rest[18:]
		if len(rest) < idLen {
			return nil, fmt.Errorf("authndata: unexpected EOF in credential id")
		}
		ad.CredentialID = append([]byte(nil), rest[:idLen]...)
		rest = rest[idLen:]

		cred, consumed, err := parseCredential(rest)
		if err != nil {
			return nil, err
		}
		ad.Credential = cred
		rest = rest[consumed:]
	}

	if extensionDataIncluded && len(rest) != 0 {
		return nil, fmt.Errorf("authndata: authenticator data extensions are not supported")
	}

	return ad, nil
}

func parseCredential(data []byte) (*Credential, int, error) {
	pub, alg, err := cose.FromCOSE(data)
	if err != nil {
		return nil, 0, fmt.Errorf("authndata: failed to parse credential public key: %w", err)
	}
	n, err := coseKeyByteLength(data)
	if err != nil {
		return nil, 0, err
	}
	return &Credential{Raw: append([]byte(nil), data[:n]...), Alg: alg, PublicKey: pub}, n, nil
}

// coseKeyByteLength re-decodes only as far as needed to learn how many bytes
// the COSE_Key map actually occupied, so the caller can find the start of
// any following (currently unsupported) extension data.
func coseKeyByteLength(data []byte) (int, error) {
	n, err := cose.COSEKeyLength(data)
	if err != nil {
		return 0, fmt.Errorf("authndata: %w", err)
	}
	return n, nil
}
