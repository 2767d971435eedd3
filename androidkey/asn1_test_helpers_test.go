package androidkey

// Minimal DER TLV encoder used only by this package's tests, to build
// synthetic Android Keystore attestation extensions without depending on
// encoding/asn1's struct-tag machinery (which can't express the
// SEQUENCE-of-optional-EXPLICIT-tags grammar these extensions use).

func identifierOctets(class byte, compound bool, tag int) []byte {
	first := class << 6
	if compound {
		first |= 0x20
	}
	if tag < 31 {
		first |= byte(tag)
		return []byte{first}
	}
	first |= 0x1F
	tagBytes := []byte{byte(tag & 0x7F)}
	t := tag >> 7
	for t > 0 {
		tagBytes = append([]byte{byte(t&0x7F) | 0x80}, tagBytes...)
		t >>= 7
	}
	return append([]byte{first}, tagBytes...)
}

func tlv(class byte, tag int, compound bool, content []byte) []byte {
	id := identifierOctets(class, compound, tag)
	if len(content) < 128 {
		return append(append(id, byte(len(content))), content...)
	}
	lenBytes := []byte{}
	n := len(content)
	for n > 0 {
		lenBytes = append([]byte{byte(n & 0xFF)}, lenBytes...)
		n >>= 8
	}
	header := append(id, 0x80|byte(len(lenBytes)))
	header = append(header, lenBytes...)
	return append(header, content...)
}

const (
	classUniversal       = 0
	classContextSpecific = 2
)

func asn1Integer(v int64) []byte {
	if v == 0 {
		return tlv(classUniversal, 2, false, []byte{0})
	}
	var b []byte
	for v > 0 {
		b = append([]byte{byte(v & 0xFF)}, b...)
		v >>= 8
	}
	if b[0]&0x80 != 0 {
		b = append([]byte{0}, b...)
	}
	return tlv(classUniversal, 2, false, b)
}

func asn1OctetString(content []byte) []byte {
	return tlv(classUniversal, 4, false, content)
}

func asn1Sequence(content []byte) []byte {
	return tlv(classUniversal, 16, true, content)
}

func asn1SetOf(elements ...[]byte) []byte {
	var content []byte
	for _, e := range elements {
		content = append(content, e...)
	}
	return tlv(classUniversal, 17, true, content)
}

func explicitField(tag int, inner []byte) []byte {
	return tlv(classContextSpecific, tag, true, inner)
}

// authorizationListContent builds the content octets of an AuthorizationList
// SEQUENCE (i.e. what parseAuthorizationList consumes), given an optional
// purpose set, an allApplications presence flag, and an optional origin.
func authorizationListContent(purposes []int64, allApplications bool, origin *int64) []byte {
	var content []byte
	if purposes != nil {
		var elems [][]byte
		for _, p := range purposes {
			elems = append(elems, asn1Integer(p))
		}
		content = append(content, explicitField(1, asn1SetOf(elems...))...)
	}
	if allApplications {
		content = append(content, explicitField(600, tlv(classUniversal, 5, false, nil))...)
	}
	if origin != nil {
		content = append(content, explicitField(702, asn1Integer(*origin))...)
	}
	return content
}

// buildAttestationExtension builds the full Android Keystore attestation
// extension content (the bytes that become pkix.Extension.Value), per the
// SEQUENCE field order parseAttestationExtension walks: version,
// attestationSecurityLevel, keymasterVersion, keymasterSecurityLevel,
// attestationChallenge, uniqueId, softwareEnforced, teeEnforced.
func buildAttestationExtension(challenge []byte, softwareEnforced, teeEnforced []byte) []byte {
	fields := [][]byte{
		asn1Integer(3),               // version
		asn1Integer(1),               // attestationSecurityLevel
		asn1Integer(4),               // keymasterVersion
		asn1Integer(1),               // keymasterSecurityLevel
		asn1OctetString(challenge),    // attestationChallenge
		asn1OctetString(nil),          // uniqueId
		asn1Sequence(softwareEnforced), // softwareEnforced
		asn1Sequence(teeEnforced),      // teeEnforced
	}
	var content []byte
	for _, f := range fields {
		content = append(content, f...)
	}
	return asn1Sequence(content)
}
