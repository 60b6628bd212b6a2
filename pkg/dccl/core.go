// SPDX-FileCopyrightText: 2026 Contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package dccl implements the Dynamic Compact Control Language codec:
// spec §4.1-4.4. A Registry holds validated message Descriptors; a Codec
// binds field codecs to a Registry and performs the top-level encode/decode
// orchestration, optional AES-CBC body encryption, and extension hooks.
package dccl

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/MikeGodin/goby-acomms/pkg/bitbuffer"
)

// DefaultMaxBytes is the default wire budget enforced by Codec.Validate,
// spec §4.3: bodyBits + idBits <= 8*MaxBytes. 32 bytes fits a typical
// acoustic modem frame.
const DefaultMaxBytes = 32

// HookFunc is invoked for every field carrying a non-zero ExtensionNumber
// as Encode/Decode traverse a message, spec §4.3. On Encode, wireValue is
// the field's raw wire integer when it fits in 64 bits (0 for fields wider
// than that); on Decode it is always 0. extensionValue is
// FieldOptions.ExtensionValue.
type HookFunc func(fv FieldValue, wireValue uint64, extensionValue interface{})

// Codec binds a field codec library to a Registry and performs top-level
// message encode/decode, spec §4.3-4.4.
type Codec struct {
	registry *Registry
	bindings map[codecKey]FieldCodec
	idCodec  IDCodec
	maxBytes int
	hooks    map[int]HookFunc
	now      func() time.Time

	cryptoKey []byte // sha256(passphrase); nil disables the crypto envelope

	log *logrus.Entry
}

// CodecOption configures a new Codec.
type CodecOption func(*Codec)

// WithMaxBytes overrides DefaultMaxBytes for every Descriptor this Codec
// validates that doesn't set its own Descriptor.MaxBytes.
func WithMaxBytes(n int) CodecOption {
	return func(c *Codec) { c.maxBytes = n }
}

// WithIDCodec replaces DefaultIDCodec, e.g. to widen the id space past
// 32767 or change the on-wire framing.
func WithIDCodec(idc IDCodec) CodecOption {
	return func(c *Codec) { c.idCodec = idc }
}

// WithCrypto enables the AES-CBC body-encryption envelope, spec §4.3 step
// 4: key = SHA-256(passphrase). The id bytes are never encrypted.
func WithCrypto(passphrase string) CodecOption {
	return func(c *Codec) {
		sum := sha256.Sum256([]byte(passphrase))
		c.cryptoKey = sum[:]
	}
}

// WithClock overrides the now() used to derive the crypto envelope's IV.
// Defaults to time.Now; tests should inject a fixed clock for determinism.
func WithClock(now func() time.Time) CodecOption {
	return func(c *Codec) { c.now = now }
}

// WithLogger attaches a logrus entry for structured diagnostics around
// validate/encode/decode failures that are logged rather than surfaced.
func WithLogger(log *logrus.Entry) CodecOption {
	return func(c *Codec) { c.log = log }
}

// NewCodec creates a Codec bound to registry with the default field codec
// library and DefaultIDCodec.
func NewCodec(registry *Registry, opts ...CodecOption) *Codec {
	c := &Codec{
		registry: registry,
		bindings: defaultCodecBindings(),
		idCodec:  DefaultIDCodec{},
		maxBytes: DefaultMaxBytes,
		hooks:    make(map[int]HookFunc),
		now:      time.Now,
		log:      logrus.WithField("component", "dccl"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RegisterCodec binds a FieldCodec under (fieldType, name), overriding any
// stock binding of the same key.
func (c *Codec) RegisterCodec(fieldType FieldType, name string, fc FieldCodec) {
	if name == "" {
		name = DefaultCodecName
	}
	c.bindings[codecKey{fieldType, name}] = fc
}

// RegisterHook binds fn to extensionNumber; every field with a matching
// ExtensionNumber invokes fn during Encode/Decode traversal.
func (c *Codec) RegisterHook(extensionNumber int, fn HookFunc) {
	c.hooks[extensionNumber] = fn
}

func (c *Codec) resolveCodec(fieldType FieldType, name string) (FieldCodec, error) {
	if name == "" {
		name = DefaultCodecName
	}
	fc, ok := c.bindings[codecKey{fieldType, name}]
	if !ok {
		return nil, errors.Wrapf(ErrCodecMissing, "no codec bound for (%s, %q)", fieldType, name)
	}
	return fc, nil
}

// Validate binds field codecs, computes bit-size bounds, enforces the
// MaxBytes budget, and registers d into the Registry. Spec §4.3.
func (c *Codec) Validate(d *Descriptor) error {
	if err := c.bindDescriptor(d); err != nil {
		return err
	}

	idBuf, err := c.idCodec.EncodeID(d.ID)
	if err != nil {
		return errors.Wrapf(ErrValidation, "descriptor %q (id %d): %v", d.Name, d.ID, err)
	}
	d.idBits = idBuf.SizeBits()

	maxBytes := d.MaxBytes
	if maxBytes == 0 {
		maxBytes = c.maxBytes
	}
	if d.bodyMaxBits+d.idBits > 8*maxBytes {
		return errors.Wrapf(ErrValidation, "descriptor %q: max size %d bits exceeds budget of %d bytes",
			d.Name, d.bodyMaxBits+d.idBits, maxBytes)
	}

	d.validated = true
	if err := c.registry.Register(d); err != nil {
		d.validated = false
		return err
	}

	c.log.WithFields(logrus.Fields{"id": d.ID, "name": d.Name, "min_bits": d.bodyMinBits, "max_bits": d.bodyMaxBits}).
		Debug("dccl: descriptor validated")
	return nil
}

// bindDescriptor resolves and validates every field's codec and computes
// d's body bit-size bounds, without touching the Registry. Recurses into
// Message sub-descriptors and Repeated element descriptors.
func (c *Codec) bindDescriptor(d *Descriptor) error {
	var errs *multierror.Error

	minBits, maxBits := 0, 0
	for i := range d.Fields {
		fd := &d.Fields[i]
		if err := c.bindField(fd); err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		minBits += fd.codec.MinSize(c, fd)
		maxBits += fd.codec.MaxSize(c, fd)
	}

	if err := errs.ErrorOrNil(); err != nil {
		return errors.Wrapf(ErrValidation, "descriptor %q: %v", d.Name, err)
	}

	d.bodyMinBits, d.bodyMaxBits = minBits, maxBits
	return nil
}

func (c *Codec) bindField(fd *FieldDescriptor) error {
	fc, err := c.resolveCodec(fd.Type, fd.Options.codecName())
	if err != nil {
		return errors.Wrapf(err, "field %q", fd.Name)
	}

	switch fd.Type {
	case TypeMessage:
		if fd.Sub != nil {
			if err := c.bindDescriptor(fd.Sub); err != nil {
				return err
			}
		}
	case TypeRepeated:
		if fd.Element != nil {
			if err := c.bindField(fd.Element); err != nil {
				return errors.Wrapf(err, "field %q: element", fd.Name)
			}
		}
	}

	if err := fc.Validate(fd); err != nil {
		return err
	}
	fd.codec = fc
	return nil
}

// Encode renders msg to bytes: [id codec bytes][optionally-encrypted body,
// zero-padded to a byte]. Spec §4.3.
func (c *Codec) Encode(msg Message) ([]byte, error) {
	d := msg.DCCLDescriptor()
	if !d.validated {
		return nil, errors.Wrapf(ErrNotValidated, "descriptor %q", d.Name)
	}

	idBuf, err := c.idCodec.EncodeID(d.ID)
	if err != nil {
		return nil, err
	}

	bodyBuf, err := c.encodeFields(d.Fields, msg.DCCLFields())
	if err != nil {
		return nil, errors.Wrapf(err, "descriptor %q", d.Name)
	}

	maxBytes := d.MaxBytes
	if maxBytes == 0 {
		maxBytes = c.maxBytes
	}
	if idBuf.SizeBits()+bodyBuf.SizeBits() > 8*maxBytes {
		return nil, errors.Wrapf(ErrTooLarge, "descriptor %q: encoded size %d bits exceeds budget of %d bytes",
			d.Name, idBuf.SizeBits()+bodyBuf.SizeBits(), maxBytes)
	}

	bodyBytes := bodyBuf.ToBytes()
	if c.cryptoKey != nil {
		bodyBytes, err = c.encrypt(idBuf.ToBytes(), bodyBytes)
		if err != nil {
			return nil, errors.Wrap(ErrBadCrypto, err.Error())
		}
	}

	out := append(idBuf.ToBytes(), bodyBytes...)
	return out, nil
}

// Decode parses b, checks its wire id against msg's descriptor id, decrypts
// the body if a key is configured, and populates msg via DCCLSetFields. Spec §4.3.
func (c *Codec) Decode(b []byte, msg Message) error {
	d := msg.DCCLDescriptor()
	if !d.validated {
		return errors.Wrapf(ErrNotValidated, "descriptor %q", d.Name)
	}

	idBuf, err := bitbuffer.FromBytes(b, len(b)*8)
	if err != nil {
		return errors.Wrap(ErrMalformed, err.Error())
	}
	id, err := c.idCodec.DecodeID(idBuf)
	if err != nil {
		return err
	}
	if id != d.ID {
		return errors.Wrapf(ErrUnknownID, "decode target is %q (id %d), wire id is %d", d.Name, d.ID, id)
	}

	idBytesLen := d.idBits / 8
	bodyBytes := b[idBytesLen:]
	if c.cryptoKey != nil {
		bodyBytes, err = c.decrypt(b[:idBytesLen], bodyBytes)
		if err != nil {
			return errors.Wrap(ErrBadCrypto, err.Error())
		}
	}

	bodyBuf, err := bitbuffer.FromBytes(bodyBytes, len(bodyBytes)*8)
	if err != nil {
		return errors.Wrap(ErrMalformed, err.Error())
	}

	values, err := c.decodeFields(d.Fields, bodyBuf, bodyBuf.SizeBits())
	if err != nil {
		return errors.Wrapf(err, "descriptor %q", d.Name)
	}
	return msg.DCCLSetFields(values)
}

// IDFromEncoded decodes only the id codec's bytes, spec §4.3: never fails
// on non-empty input with a self-terminating id codec, and needs no key.
func (c *Codec) IDFromEncoded(b []byte) (uint16, error) {
	if len(b) == 0 {
		return 0, errors.Wrap(ErrMalformed, "IDFromEncoded: empty input")
	}
	buf, err := bitbuffer.FromBytes(b, len(b)*8)
	if err != nil {
		return 0, errors.Wrap(ErrMalformed, err.Error())
	}
	return c.idCodec.DecodeID(buf)
}

// Lookup resolves an id against the bound Registry, a convenience for
// callers dispatching by IDFromEncoded's result.
func (c *Codec) Lookup(id uint16) (*Descriptor, bool) {
	return c.registry.Lookup(id)
}

func (c *Codec) encodeFields(fields []FieldDescriptor, values []FieldValue) (*bitbuffer.BitBuffer, error) {
	if len(values) != len(fields) {
		return nil, errors.Wrapf(ErrMalformed, "expected %d field values, got %d", len(fields), len(values))
	}

	body := bitbuffer.New()
	for i := range fields {
		fd := &fields[i]
		v := values[i]

		fieldBuf, err := fd.codec.Encode(c, fd, v)
		if err != nil {
			return nil, errors.Wrapf(err, "field %q", fd.Name)
		}
		if err := body.Append(fieldBuf); err != nil {
			return nil, err
		}

		c.runHook(fd, v, fieldBuf)
	}
	return body, nil
}

func (c *Codec) decodeFields(fields []FieldDescriptor, buf *bitbuffer.BitBuffer, remainingBits int) ([]FieldValue, error) {
	values := make([]FieldValue, len(fields))
	for i := range fields {
		fd := &fields[i]

		before := buf.RemainingBits()
		v, err := fd.codec.Decode(c, fd, buf, remainingBits)
		if err != nil {
			return nil, errors.Wrapf(err, "field %q", fd.Name)
		}
		consumed := before - buf.RemainingBits()
		remainingBits -= consumed

		values[i] = v
		c.runHook(fd, v, nil)
	}
	return values, nil
}

// runHook fires fd's registered hook, if any, tolerating fieldBuf being
// either the just-encoded BitBuffer (Encode path) or nil (Decode path,
// where the hook receives a wireValue of 0); it never lets a panicking
// hook escape into the codec.
func (c *Codec) runHook(fd *FieldDescriptor, v FieldValue, fieldBuf *bitbuffer.BitBuffer) {
	if fd.ExtensionNumber == 0 {
		return
	}
	fn, ok := c.hooks[fd.ExtensionNumber]
	if !ok {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			c.log.WithField("field", fd.Name).WithField("panic", r).Error("dccl: extension hook panicked")
		}
	}()

	var wireValue uint64
	if fieldBuf != nil && fieldBuf.SizeBits() <= 64 && fieldBuf.SizeBits() > 0 {
		wireValue, _ = fieldBuf.Peek(fieldBuf.SizeBits())
	}
	fn(v, wireValue, fd.Options.ExtensionValue)
}

// encrypt applies AES-CBC with an IV derived from idBytes and the
// current transmission timestamp, spec §4.3 step 4. The IV itself is not
// transmitted separately: it's rederived on decrypt from the clear id
// bytes and the same timestamp source, so both sides must agree on now().
func (c *Codec) encrypt(idBytes, plain []byte) ([]byte, error) {
	iv := c.deriveIV(idBytes)

	block, err := aes.NewCipher(c.cryptoKey)
	if err != nil {
		return nil, err
	}

	padded := pkcs7Pad(plain, aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, padded)
	return out, nil
}

func (c *Codec) decrypt(idBytes, cipherText []byte) ([]byte, error) {
	if len(cipherText)%aes.BlockSize != 0 {
		return nil, errors.New("ciphertext is not a multiple of the AES block size")
	}
	iv := c.deriveIV(idBytes)

	block, err := aes.NewCipher(c.cryptoKey)
	if err != nil {
		return nil, err
	}

	out := make([]byte, len(cipherText))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, cipherText)
	return pkcs7Unpad(out)
}

// deriveIV computes SHA-256(idBytes || transmission-timestamp)[:16].
func (c *Codec) deriveIV(idBytes []byte) []byte {
	ts := c.now().UnixNano()
	tsBytes := make([]byte, 8)
	for i := 0; i < 8; i++ {
		tsBytes[i] = byte(ts >> (8 * i))
	}
	sum := sha256.Sum256(append(append([]byte{}, idBytes...), tsBytes...))
	return sum[:aes.BlockSize]
}

func pkcs7Pad(b []byte, blockSize int) []byte {
	pad := blockSize - len(b)%blockSize
	padded := make([]byte, len(b)+pad)
	copy(padded, b)
	for i := len(b); i < len(padded); i++ {
		padded[i] = byte(pad)
	}
	return padded
}

func pkcs7Unpad(b []byte) ([]byte, error) {
	if len(b) == 0 {
		return nil, errors.New("pkcs7Unpad: empty input")
	}
	pad := int(b[len(b)-1])
	if pad == 0 || pad > len(b) {
		return nil, errors.New("pkcs7Unpad: invalid padding")
	}
	return b[:len(b)-pad], nil
}
