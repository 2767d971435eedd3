// Package attestcore holds the types shared by the Android Key and TPM
// attestation-statement verification engines: the outer CBOR value tree
// both statement decoders consume, and the attestation-type/trust-path
// result both engines return.
//
// attestcore itself decodes and verifies nothing — that is the job of the
// androidkey and tpm packages. It exists so those two packages, and their
// callers, share one vocabulary instead of each defining its own.
package attestcore
