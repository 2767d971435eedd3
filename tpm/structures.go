package tpm

import (
	"fmt"

	"github.com/hwattest/core/internal/tpmwire"
)

// TPM algorithm identifiers spec section 6 names.
const (
	algRSA    uint16 = 0x0001
	algSHA1   uint16 = 0x0004
	algSHA256 uint16 = 0x000B
	algECC    uint16 = 0x0023
)

// TPM ECC curve identifiers spec section 6 names.
const (
	curveP256 uint16 = 0x0003
	curveP384 uint16 = 0x0004
	curveP521 uint16 = 0x0005
)

// TPM_GENERATED_VALUE and TPM_ST_ATTEST_CERTIFY, spec section 6's Constants.
const (
	TPMGeneratedValue  uint32 = 0xFF544347
	TPMStAttestCertify uint16 = 0x8017
)

// ClockInfo is TPMS_CLOCK_INFO (spec section 3), carried but never checked
// by Verify — spec section 4.6.2's note that clockInfo/firmwareVersion/
// qualifiedSigner are "risk-engine hints only".
type ClockInfo struct {
	Clock        uint64
	ResetCount   uint32
	RestartCount uint32
	Safe         bool // decoded as (byte == 1); any other byte value, including 0xFF, is false (spec section 9 Open Question 3)
}

// CertifyInfo is TPMS_CERTIFY_INFO (spec section 3): the name and qualified
// name of the object TPMS_ATTEST certifies.
type CertifyInfo struct {
	Name          []byte // TPM2B_NAME content: 2-byte TPM_ALG_ID prefix followed by the digest
	QualifiedName []byte
}

// Attest is the decoded TPMS_ATTEST structure (spec section 3), certInfo in
// the attestation statement.
type Attest struct {
	Magic           uint32
	Type            uint16
	QualifiedSigner []byte
	ExtraData       []byte
	ClockInfo       ClockInfo
	FirmwareVersion uint64
	Attested        CertifyInfo
}

// ParseAttest decodes certInfoRaw as TPMS_ATTEST (spec section 4.4). It does
// not itself require magic == TPM_GENERATED_VALUE — spec section 4.4 says
// that check belongs to Verify, not the parser — but it does require
// certInfoRaw to be fully consumed with no trailing bytes.
func ParseAttest(certInfoRaw []byte) (*Attest, error) {
	r := tpmwire.NewReader(certInfoRaw)
	a := &Attest{}

	var err error
	if a.Magic, err = r.U32(); err != nil {
		return nil, tpmErr("certInfo.magic", err)
	}
	if a.Type, err = r.U16(); err != nil {
		return nil, tpmErr("certInfo.type", err)
	}
	if a.QualifiedSigner, err = r.TPM2B(); err != nil {
		return nil, tpmErr("certInfo.qualifiedSigner", err)
	}
	if a.ExtraData, err = r.TPM2B(); err != nil {
		return nil, tpmErr("certInfo.extraData", err)
	}

	clock, err := r.U64()
	if err != nil {
		return nil, tpmErr("certInfo.clockInfo.clock", err)
	}
	resetCount, err := r.U32()
	if err != nil {
		return nil, tpmErr("certInfo.clockInfo.resetCount", err)
	}
	restartCount, err := r.U32()
	if err != nil {
		return nil, tpmErr("certInfo.clockInfo.restartCount", err)
	}
	safe, err := r.U8()
	if err != nil {
		return nil, tpmErr("certInfo.clockInfo.safe", err)
	}
	a.ClockInfo = ClockInfo{Clock: clock, ResetCount: resetCount, RestartCount: restartCount, Safe: safe == 1}

	if a.FirmwareVersion, err = r.U64(); err != nil {
		return nil, tpmErr("certInfo.firmwareVersion", err)
	}
	if a.Attested.Name, err = r.TPM2B(); err != nil {
		return nil, tpmErr("certInfo.attested.name", err)
	}
	if a.Attested.QualifiedName, err = r.TPM2B(); err != nil {
		return nil, tpmErr("certInfo.attested.qualifiedName", err)
	}

	if err := r.Done(); err != nil {
		return nil, tpmErr("certInfo", err)
	}
	return a, nil
}

// RSAParams is TPMS_RSA_PARMS (spec section 3).
type RSAParams struct {
	Symmetric uint16
	Scheme    uint16
	KeyBits   uint16
	Exponent  uint32 // 0 is substituted with 65537 at decode time
}

// ECCParams is TPMS_ECC_PARMS (spec section 3).
type ECCParams struct {
	Symmetric uint16
	Scheme    uint16
	Curve     uint16 // one of curveP256, curveP384, curveP521
	KDF       uint16
}

// Public is the decoded TPMT_PUBLIC structure (spec section 3), pubArea in
// the attestation statement.
type Public struct {
	Type             uint16 // algRSA or algECC
	NameAlg          uint16 // algSHA1 or algSHA256 — spec section 4.4 requires decode to reject anything else
	ObjectAttributes uint32 // opaque, carried but never interpreted
	AuthPolicy       []byte

	RSA    *RSAParams
	RSAN   []byte // RSA modulus, big-endian

	ECC  *ECCParams
	EccX []byte // big-endian coordinate
	EccY []byte
}

// ParsePublic decodes pubAreaRaw as TPMT_PUBLIC (spec section 4.4).
// Unsupported type (anything other than RSA/ECC) or nameAlg not in
// {SHA1, SHA256} fails decoding, and any trailing bytes fail decoding.
func ParsePublic(pubAreaRaw []byte) (*Public, error) {
	r := tpmwire.NewReader(pubAreaRaw)
	p := &Public{}

	var err error
	if p.Type, err = r.U16(); err != nil {
		return nil, tpmErr("pubArea.type", err)
	}
	if p.Type != algRSA && p.Type != algECC {
		return nil, tpmErr("pubArea.type", fmt.Errorf("unsupported type 0x%04X, want RSA (0x%04X) or ECC (0x%04X)", p.Type, algRSA, algECC))
	}

	if p.NameAlg, err = r.U16(); err != nil {
		return nil, tpmErr("pubArea.nameAlg", err)
	}
	if p.NameAlg != algSHA1 && p.NameAlg != algSHA256 {
		return nil, tpmErr("pubArea.nameAlg", fmt.Errorf("unsupported nameAlg 0x%04X, want SHA1 (0x%04X) or SHA256 (0x%04X)", p.NameAlg, algSHA1, algSHA256))
	}

	if p.ObjectAttributes, err = r.U32(); err != nil {
		return nil, tpmErr("pubArea.objectAttributes", err)
	}
	if p.AuthPolicy, err = r.TPM2B(); err != nil {
		return nil, tpmErr("pubArea.authPolicy", err)
	}

	switch p.Type {
	case algRSA:
		rsaParams := &RSAParams{}
		if rsaParams.Symmetric, err = r.U16(); err != nil {
			return nil, tpmErr("pubArea.parameters.symmetric", err)
		}
		if rsaParams.Scheme, err = r.U16(); err != nil {
			return nil, tpmErr("pubArea.parameters.scheme", err)
		}
		if rsaParams.KeyBits, err = r.U16(); err != nil {
			return nil, tpmErr("pubArea.parameters.keyBits", err)
		}
		if rsaParams.Exponent, err = r.U32(); err != nil {
			return nil, tpmErr("pubArea.parameters.exponent", err)
		}
		if rsaParams.Exponent == 0 {
			rsaParams.Exponent = 65537
		}
		p.RSA = rsaParams
		if p.RSAN, err = r.TPM2B(); err != nil {
			return nil, tpmErr("pubArea.unique.rsa", err)
		}
	case algECC:
		eccParams := &ECCParams{}
		if eccParams.Symmetric, err = r.U16(); err != nil {
			return nil, tpmErr("pubArea.parameters.symmetric", err)
		}
		if eccParams.Scheme, err = r.U16(); err != nil {
			return nil, tpmErr("pubArea.parameters.scheme", err)
		}
		if eccParams.Curve, err = r.U16(); err != nil {
			return nil, tpmErr("pubArea.parameters.curveID", err)
		}
		if eccParams.Curve != curveP256 && eccParams.Curve != curveP384 && eccParams.Curve != curveP521 {
			return nil, tpmErr("pubArea.parameters.curveID", fmt.Errorf("unsupported curve 0x%04X", eccParams.Curve))
		}
		if eccParams.KDF, err = r.U16(); err != nil {
			return nil, tpmErr("pubArea.parameters.kdf", err)
		}
		p.ECC = eccParams
		if p.EccX, err = r.TPM2B(); err != nil {
			return nil, tpmErr("pubArea.unique.eccX", err)
		}
		if p.EccY, err = r.TPM2B(); err != nil {
			return nil, tpmErr("pubArea.unique.eccY", err)
		}
	}

	if err := r.Done(); err != nil {
		return nil, tpmErr("pubArea", err)
	}
	return p, nil
}

func tpmErr(position string, err error) *DecodeError {
	return &DecodeError{Kind: Tpm, Position: position, TpmDetail: err.Error()}
}
