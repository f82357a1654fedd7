// Copyright 2025-2026 Hexavox

package gameproto

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"time"
)

// Handshake next-state values.
const (
	StateStatus = 1
	StateLogin  = 2
)

// protocolVersion sent in the status handshake. Status responses do not
// depend on it, so any recent value works.
const protocolVersion = 767

// Pinger performs the game server's status handshake as a lightweight
// liveness probe. It never logs in; the response body is parsed only far
// enough to confirm the server is answering protocol traffic.
type Pinger struct {
	Host    string
	Port    int
	Timeout time.Duration
}

// Ping dials the server and runs a status exchange. A nil return means the
// server is up and speaking the protocol.
func (p *Pinger) Ping(ctx context.Context) error {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	dialer := net.Dialer{Timeout: timeout}
	addr := net.JoinHostPort(p.Host, strconv.Itoa(p.Port))
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("status dial failed: %w", err)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Now().Add(timeout))
	}

	if err := WriteHandshake(conn, p.Host, p.Port, StateStatus); err != nil {
		return fmt.Errorf("status handshake failed: %w", err)
	}
	// Empty status request packet.
	if err := WritePacket(conn, 0x00, nil); err != nil {
		return fmt.Errorf("status request failed: %w", err)
	}

	id, body, err := ReadPacket(conn)
	if err != nil {
		return fmt.Errorf("status response failed: %w", err)
	}
	if id != 0x00 {
		return fmt.Errorf("unexpected status packet id 0x%02x", id)
	}
	payload, err := readStringBytes(body)
	if err != nil {
		return fmt.Errorf("malformed status response: %w", err)
	}
	if !json.Valid(payload) {
		return fmt.Errorf("status response is not valid JSON")
	}
	return nil
}

// WriteHandshake writes the initial handshake packet announcing the intended
// next protocol state.
func WriteHandshake(conn net.Conn, host string, port int, nextState int32) error {
	body := AppendVarInt(nil, protocolVersion)
	body = AppendString(body, host)
	body = append(body, byte(port>>8), byte(port))
	body = AppendVarInt(body, nextState)
	return WritePacket(conn, 0x00, body)
}

// readStringBytes decodes a length-prefixed string payload from a packet body.
func readStringBytes(body []byte) ([]byte, error) {
	consumed := 0
	var length uint32
	terminated := false
	for i := 0; i < maxVarIntBytes; i++ {
		if consumed >= len(body) {
			return nil, ErrVarIntTooLong
		}
		b := body[consumed]
		consumed++
		length |= uint32(b&0x7f) << (7 * i)
		if b&0x80 == 0 {
			terminated = true
			break
		}
	}
	if !terminated {
		return nil, ErrVarIntTooLong
	}
	if int(length) > len(body)-consumed {
		return nil, fmt.Errorf("string length %d exceeds body", length)
	}
	return body[consumed : consumed+int(length)], nil
}
