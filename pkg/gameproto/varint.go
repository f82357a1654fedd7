// Copyright 2025-2026 Hexavox

// Package gameproto implements the small slice of the game server's native
// wire protocol the bridge needs: varint-framed packets for the status
// liveness probe and for the account-link handshake listener.
package gameproto

import (
	"errors"
	"fmt"
	"io"
)

const (
	// MaxPacketSize caps inbound packet bodies. Both uses of this package
	// only ever read tiny handshake/status packets.
	MaxPacketSize = 1 << 16

	maxVarIntBytes = 5
)

var (
	ErrVarIntTooLong  = errors.New("varint exceeds five bytes")
	ErrPacketTooLarge = errors.New("packet length exceeds limit")
)

// AppendVarInt appends v in the protocol's varint encoding.
func AppendVarInt(buf []byte, v int32) []byte {
	u := uint32(v)
	for {
		b := byte(u & 0x7f)
		u >>= 7
		if u != 0 {
			b |= 0x80
		}
		buf = append(buf, b)
		if u == 0 {
			return buf
		}
	}
}

// ReadVarInt reads a single varint from r.
func ReadVarInt(r io.Reader) (int32, error) {
	var result uint32
	var one [1]byte
	for i := 0; i < maxVarIntBytes; i++ {
		if _, err := io.ReadFull(r, one[:]); err != nil {
			return 0, err
		}
		result |= uint32(one[0]&0x7f) << (7 * i)
		if one[0]&0x80 == 0 {
			return int32(result), nil
		}
	}
	return 0, ErrVarIntTooLong
}

// AppendString appends a varint-length-prefixed UTF-8 string.
func AppendString(buf []byte, s string) []byte {
	buf = AppendVarInt(buf, int32(len(s)))
	return append(buf, s...)
}

// ReadString reads a varint-length-prefixed string from r.
func ReadString(r io.Reader) (string, error) {
	n, err := ReadVarInt(r)
	if err != nil {
		return "", err
	}
	if n < 0 || n > MaxPacketSize {
		return "", fmt.Errorf("string length %d out of range", n)
	}
	raw := make([]byte, n)
	if _, err := io.ReadFull(r, raw); err != nil {
		return "", err
	}
	return string(raw), nil
}

// WritePacket frames and writes a single packet: length varint covering the
// packet ID and body, then the ID varint, then the body.
func WritePacket(w io.Writer, id int32, body []byte) error {
	inner := AppendVarInt(nil, id)
	inner = append(inner, body...)
	framed := AppendVarInt(nil, int32(len(inner)))
	framed = append(framed, inner...)
	_, err := w.Write(framed)
	return err
}

// ReadPacket reads one framed packet and returns its ID and body.
func ReadPacket(r io.Reader) (id int32, body []byte, err error) {
	length, err := ReadVarInt(r)
	if err != nil {
		return 0, nil, err
	}
	if length < 1 || length > MaxPacketSize {
		return 0, nil, ErrPacketTooLarge
	}
	raw := make([]byte, length)
	if _, err := io.ReadFull(r, raw); err != nil {
		return 0, nil, err
	}
	// Re-read the ID varint out of the raw body.
	consumed := 0
	var result uint32
	for i := 0; i < maxVarIntBytes; i++ {
		if consumed >= len(raw) {
			return 0, nil, io.ErrUnexpectedEOF
		}
		b := raw[consumed]
		consumed++
		result |= uint32(b&0x7f) << (7 * i)
		if b&0x80 == 0 {
			return int32(result), raw[consumed:], nil
		}
	}
	return 0, nil, ErrVarIntTooLong
}
