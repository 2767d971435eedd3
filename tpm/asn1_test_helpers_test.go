package tpm

// Minimal DER TLV encoder used only by this package's tests, to build
// synthetic AIK certificate extensions (subjectAltName, AAGUID) without
// depending on encoding/asn1's struct-tag machinery.

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
	var lenBytes []byte
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

func asn1OID(oid []int) []byte {
	content := []byte{byte(oid[0]*40 + oid[1])}
	for _, v := range oid[2:] {
		content = append(content, encodeBase128(v)...)
	}
	return tlv(classUniversal, 6, false, content)
}

func encodeBase128(v int) []byte {
	if v == 0 {
		return []byte{0}
	}
	var b []byte
	for v > 0 {
		b = append([]byte{byte(v & 0x7F)}, b...)
		v >>= 7
	}
	for i := 0; i < len(b)-1; i++ {
		b[i] |= 0x80
	}
	return b
}

func asn1UTF8String(s string) []byte {
	return tlv(classUniversal, 12, false, []byte(s))
}

func asn1OctetString(content []byte) []byte {
	return tlv(classUniversal, 4, false, content)
}

func asn1Sequence(content []byte) []byte {
	return tlv(classUniversal, 16, true, content)
}

// tcgAttribute builds one SEQUENCE { OID, UTF8String } pair, the shape used
// repeatedly (nested various ways by different TPM vendors) inside the
// subjectAltName extension's otherName entries.
func tcgAttribute(oid []int, value string) []byte {
	return asn1Sequence(append(asn1OID(oid), asn1UTF8String(value)...))
}

func buildSANExtensionValue(manufacturer, model, version string) []byte {
	content := append(append(
		tcgAttribute([]int{2, 23, 133, 2, 1}, manufacturer),
		tcgAttribute([]int{2, 23, 133, 2, 2}, model)...),
		tcgAttribute([]int{2, 23, 133, 2, 3}, version)...)
	return asn1Sequence(content)
}

func buildAAGUIDExtensionValue(aaguid []byte) []byte {
	return asn1OctetString(aaguid)
}
