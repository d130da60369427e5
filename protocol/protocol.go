// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package protocol implements the brightness command frame.
//
// A frame is a one byte command type, a one byte payload length and the
// payload. Multi-byte payloads are little-endian.
//
//	+------+-----+-------------+
//	| type | len | payload ... |
//	+------+-----+-------------+
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	HeaderSize    = 2
	MaxPayloadLen = 32
	MaxFrameSize  = HeaderSize + MaxPayloadLen

	// ReceiveBufferSize is large enough to detect oversized datagrams.
	ReceiveBufferSize = 64
)

var (
	ErrShortFrame     = errors.New("protocol: short command frame")
	ErrMalformedFrame = errors.New("protocol: malformed command frame")
	ErrUnknownCommand = errors.New("protocol: unknown command type")
)

// CommandType is the first byte of a frame.
type CommandType byte

const (
	TypeSetState CommandType = iota
	TypeModifyState
	TypeSaveState
	TypeRestoreState
	TypeSetPowersave

	typeCount
)

var typeNames = [typeCount]string{
	"SetState",
	"ModifyState",
	"SaveState",
	"RestoreState",
	"SetPowersave",
}

func (t CommandType) String() string {
	if t < typeCount {
		return typeNames[t]
	}
	return fmt.Sprintf("CommandType(%d)", byte(t))
}

// Valid reports whether t is a known command type.
func (t CommandType) Valid() bool {
	return t < typeCount
}

// payloadLen is the exact payload length each command type carries.
var payloadLen = [typeCount]int{
	TypeSetState:     4,
	TypeModifyState:  4,
	TypeSaveState:    0,
	TypeRestoreState: 0,
	TypeSetPowersave: 0,
}

// Command is one decoded frame. The set of implementations is closed.
type Command interface {
	Type() CommandType
	payload() []byte
}

// SetState sets an absolute brightness.
type SetState struct {
	Value uint32
}

// ModifyState changes the brightness by a signed delta.
type ModifyState struct {
	Delta int32
}

// SaveState stores the current brightness.
type SaveState struct{}

// RestoreState applies the stored brightness.
type RestoreState struct{}

// SetPowersave applies the configured powersave brightness.
type SetPowersave struct{}

func (SetState) Type() CommandType     { return TypeSetState }
func (ModifyState) Type() CommandType  { return TypeModifyState }
func (SaveState) Type() CommandType    { return TypeSaveState }
func (RestoreState) Type() CommandType { return TypeRestoreState }
func (SetPowersave) Type() CommandType { return TypeSetPowersave }

func (c SetState) payload() []byte {
	return binary.LittleEndian.AppendUint32(nil, c.Value)
}

func (c ModifyState) payload() []byte {
	return binary.LittleEndian.AppendUint32(nil, uint32(c.Delta))
}

func (SaveState) payload() []byte    { return nil }
func (RestoreState) payload() []byte { return nil }
func (SetPowersave) payload() []byte { return nil }

func (c SetState) String() string    { return fmt.Sprintf("SetState(%d)", c.Value) }
func (c ModifyState) String() string { return fmt.Sprintf("ModifyState(%+d)", c.Delta) }
func (SaveState) String() string     { return "SaveState" }
func (RestoreState) String() string  { return "RestoreState" }
func (SetPowersave) String() string  { return "SetPowersave" }

// Encode returns the wire form of cmd.
func Encode(cmd Command) []byte {
	p := cmd.payload()
	raw := make([]byte, HeaderSize+len(p))
	raw[0] = byte(cmd.Type())
	raw[1] = byte(len(p))
	copy(raw[HeaderSize:], p)
	return raw
}

// Decode validates raw and returns the command it carries. The checks run
// in a fixed order: size, declared length, total length, type, payload
// length for the type.
func Decode(raw []byte) (Command, error) {
	if len(raw) < HeaderSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrShortFrame, len(raw))
	}

	typ := CommandType(raw[0])
	n := int(raw[1])

	if n > MaxPayloadLen {
		return nil, fmt.Errorf("%w: payload length %d exceeds %d", ErrMalformedFrame, n, MaxPayloadLen)
	}
	if HeaderSize+n != len(raw) {
		return nil, fmt.Errorf("%w: payload length %d does not match frame size %d", ErrMalformedFrame, n, len(raw))
	}
	if !typ.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownCommand, byte(typ))
	}
	if n != payloadLen[typ] {
		return nil, fmt.Errorf("%w: %s payload is %d bytes, want %d", ErrMalformedFrame, typ, n, payloadLen[typ])
	}

	p := raw[HeaderSize:]
	switch typ {
	case TypeSetState:
		return decodeSetState(p), nil
	case TypeModifyState:
		return decodeModifyState(p), nil
	case TypeSaveState:
		return SaveState{}, nil
	case TypeRestoreState:
		return RestoreState{}, nil
	default:
		return SetPowersave{}, nil
	}
}

func decodeSetState(p []byte) SetState {
	return SetState{Value: binary.LittleEndian.Uint32(p)}
}

func decodeModifyState(p []byte) ModifyState {
	return ModifyState{Delta: int32(binary.LittleEndian.Uint32(p))}
}
