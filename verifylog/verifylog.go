// Package verifylog is the only package in this module that performs I/O.
// It wraps the pure androidkey.Verify and tpm.Verify engines and emits one
// structured zerolog event per call, recording the format, outcome, and (on
// failure) the error kind — without touching the engines themselves, so the
// purity invariant those packages hold stays intact one layer down.
package verifylog

import (
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hwattest/core"
	"github.com/hwattest/core/androidkey"
	"github.com/hwattest/core/authndata"
	"github.com/hwattest/core/tpm"
)

// VerifyAndroidKey calls androidkey.Verify and logs one event to logger
// describing the outcome.
func VerifyAndroidKey(logger zerolog.Logger, stmt *androidkey.Statement, authnData *authndata.AuthenticatorData, clientDataHash []byte, cfg androidkey.Config) (attestcore.AttestationType, attestcore.TrustPath, error) {
	attType, trustPath, err := androidkey.Verify(stmt, authnData, clientDataHash, cfg)

	event := logger.Info()
	if err != nil {
		event = logger.Warn()
	}
	event = event.Str("format", "android-key")
	if aaguid := authnData.AAGUID; len(aaguid) == 16 {
		event = event.Str("aaguid", formatAAGUID(aaguid))
	}
	if err != nil {
		logDecodeOrVerifyErr(event, err).Msg("android-key attestation rejected")
		return attType, trustPath, err
	}
	event.Str("attestation_type", attType.String()).Int("chain_length", len(trustPath)).Msg("android-key attestation accepted")
	return attType, trustPath, nil
}

// VerifyTPM calls tpm.Verify and logs one event to logger describing the
// outcome.
func VerifyTPM(logger zerolog.Logger, stmt *tpm.Statement, authnData *authndata.AuthenticatorData, clientDataHash []byte) (attestcore.AttestationType, attestcore.TrustPath, error) {
	attType, trustPath, err := tpm.Verify(stmt, authnData, clientDataHash)

	event := logger.Info()
	if err != nil {
		event = logger.Warn()
	}
	event = event.Str("format", "tpm")
	if aaguid := authnData.AAGUID; len(aaguid) == 16 {
		event = event.Str("aaguid", formatAAGUID(aaguid))
	}
	if err != nil {
		logDecodeOrVerifyErr(event, err).Msg("tpm attestation rejected")
		return attType, trustPath, err
	}
	event.Str("attestation_type", attType.String()).Int("chain_length", len(trustPath)).Msg("tpm attestation accepted")
	return attType, trustPath, nil
}

func logDecodeOrVerifyErr(event *zerolog.Event, err error) *zerolog.Event {
	switch e := err.(type) {
	case *androidkey.DecodeError:
		return event.Str("stage", "decode").Int("kind", int(e.Kind)).Err(err)
	case *androidkey.VerifyError:
		return event.Str("stage", "verify").Int("kind", int(e.Kind)).Err(err)
	case *tpm.DecodeError:
		return event.Str("stage", "decode").Int("kind", int(e.Kind)).Err(err)
	case *tpm.VerifyError:
		return event.Str("stage", "verify").Int("kind", int(e.Kind)).Err(err)
	default:
		return event.Err(err)
	}
}

func formatAAGUID(raw []byte) string {
	id, err := uuid.FromBytes(raw)
	if err != nil {
		return ""
	}
	return id.String()
}
