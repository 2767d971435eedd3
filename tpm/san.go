package tpm

import (
	"crypto/x509"
	"fmt"
	"strconv"
	"strings"

	"github.com/hwattest/core/internal/der"
)

// SAN extension OID (RFC 5280) carrying the vendor/model/version triple on
// TPM-issued AIK certificates, and the three DirectoryString OIDs inside it
// spec section 6 names (TCG EK Credential Profile).
var (
	oidSubjectAltName  = []int{2, 5, 29, 17}
	oidTPMManufacturer = "2.23.133.2.1"
	oidTPMModel        = "2.23.133.2.2"
	oidTPMVersion      = "2.23.133.2.3"
)

// TCGSpecifiedAttributes is the decoded {tpmManufacturer, tpmModel,
// tpmVersion} triple from an AIK certificate's subjectAltName extension
// (spec section 6). All three fields are required.
type TCGSpecifiedAttributes struct {
	Manufacturer string
	Model        string
	Version      string
}

// ParseSAN walks cert's subjectAltName extension and extracts the TCG
// manufacturer/model/version triple. The walk is deliberately
// structure-agnostic: the TCG profile nests these (OID, DirectoryString)
// pairs inside otherName/SEQUENCE/SET wrappers that vary across issuers, so
// this collects every (OID, string-ish primitive) pair found anywhere in
// the extension rather than assuming one fixed nesting.
func ParseSAN(cert *x509.Certificate) (*TCGSpecifiedAttributes, error) {
	var extValue []byte
	for _, ext := range cert.Extensions {
		if ext.Id.Equal(oidSubjectAltName) {
			extValue = ext.Value
			break
		}
	}
	if extValue == nil {
		return nil, &VerifyError{Kind: Asn1Error, Detail: "AIK certificate has no subjectAltName extension"}
	}

	pairs, err := collectOIDStringPairs(extValue)
	if err != nil {
		return nil, &VerifyError{Kind: Asn1Error, Detail: "malformed subjectAltName: " + err.Error()}
	}

	attrs := &TCGSpecifiedAttributes{}
	for _, p := range pairs {
		switch p.oid {
		case oidTPMManufacturer:
			attrs.Manufacturer = p.value
		case oidTPMModel:
			attrs.Model = p.value
		case oidTPMVersion:
			attrs.Version = p.value
		}
	}
	if attrs.Manufacturer == "" || attrs.Model == "" || attrs.Version == "" {
		return nil, &VerifyError{Kind: Asn1Error, Detail: "subjectAltName is missing tpmManufacturer, tpmModel, or tpmVersion"}
	}
	return attrs, nil
}

type oidStringPair struct {
	oid   string
	value string
}

// collectOIDStringPairs recursively descends into every compound element of
// data, pairing each object identifier primitive it encounters with the
// next string-typed primitive at the same or a deeper nesting level.
func collectOIDStringPairs(data []byte) ([]oidStringPair, error) {
	var pairs []oidStringPair
	var pendingOID string
	var hasPending bool

	var walk func(b []byte) error
	walk = func(b []byte) error {
		c := der.NewCursor(b)
		for !c.AtEnd() {
			el, err := c.Next()
			if err != nil {
				return err
			}
			switch {
			case el.Compound:
				if err := walk(el.Bytes); err != nil {
					return err
				}
			case el.Tag == 6: // OBJECT IDENTIFIER
				oid, err := decodeOID(el.Bytes)
				if err != nil {
					return err
				}
				pendingOID = oid
				hasPending = true
			case isDirectoryStringTag(el.Tag):
				if hasPending {
					pairs = append(pairs, oidStringPair{oid: pendingOID, value: string(el.Bytes)})
					hasPending = false
				}
			}
		}
		return nil
	}
	if err := walk(data); err != nil {
		return nil, err
	}
	return pairs, nil
}

// isDirectoryStringTag reports whether tag is one of the ASN.1 string types
// the TCG profile uses for DirectoryString values.
func isDirectoryStringTag(tag int) bool {
	switch tag {
	case 12, 19, 20, 22, 28, 30: // UTF8String, PrintableString, T61String, IA5String, UniversalString, BMPString
		return true
	default:
		return false
	}
}

// decodeOID decodes a DER OBJECT IDENTIFIER's content octets into dotted
// notation.
func decodeOID(content []byte) (string, error) {
	if len(content) == 0 {
		return "", fmt.Errorf("empty OBJECT IDENTIFIER")
	}
	var parts []string
	parts = append(parts, strconv.Itoa(int(content[0]/40)), strconv.Itoa(int(content[0]%40)))

	var value uint64
	for _, b := range content[1:] {
		value = value<<7 | uint64(b&0x7F)
		if b&0x80 == 0 {
			parts = append(parts, strconv.FormatUint(value, 10))
			value = 0
		}
	}
	return strings.Join(parts, "."), nil
}
