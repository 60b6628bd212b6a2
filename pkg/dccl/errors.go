// SPDX-FileCopyrightText: 2026 Contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package dccl

import "github.com/pkg/errors"

// Sentinel errors per the codec_*/schema_* taxonomy. Wrap these with
// errors.Wrap/errors.Wrapf for context; callers compare with errors.Is.
var (
	// ErrOutOfRange is returned when an encode value falls outside a
	// field's declared min/max.
	ErrOutOfRange = errors.New("codec_out_of_range")

	// ErrTooLarge is returned when an encoded message would exceed the
	// descriptor's configured MaxBytes budget.
	ErrTooLarge = errors.New("encode_too_large")

	// ErrNotValidated is returned when Encode/Decode is attempted against
	// a descriptor that was never passed through Codec.Validate.
	ErrNotValidated = errors.New("encode_not_validated")

	// ErrUnknownID is returned by Decode when the wire id differs from the
	// id of the target message's descriptor.
	ErrUnknownID = errors.New("decode_unknown_id")

	// ErrMalformed is returned when decoding runs out of bits or a
	// structural invariant (e.g. a length prefix) is inconsistent.
	ErrMalformed = errors.New("decode_malformed")

	// ErrBadCrypto is returned when decrypting a message body fails or
	// produces data decode can't parse.
	ErrBadCrypto = errors.New("decode_bad_crypto")

	// ErrDuplicateID is returned by Registry.Register for a second
	// descriptor with an already-registered DCCL id.
	ErrDuplicateID = errors.New("schema_duplicate_id")

	// ErrCodecMissing is returned by Validate when a field's declared
	// codec name has no binding for its field type.
	ErrCodecMissing = errors.New("schema_codec_missing")

	// ErrValidation wraps one or more field-level validation problems
	// found while binding a descriptor's codecs.
	ErrValidation = errors.New("schema_validate_failed")

	// ErrStringTruncated is returned by StringCodec.Encode only when the
	// field's StrictString option is set and the value exceeds MaxLength.
	ErrStringTruncated = errors.New("codec_string_truncated")
)
