// Package codec owns the wire shapes exchanged with a VFS host: the action tags,
// the request payloads and the decoding of each action's response.
package codec

import (
	"bytes"
	"strconv"
	"unicode/utf16"
	"unicode/utf8"

	"emperror.dev/errors"
	"github.com/goccy/go-json"
)

// Action identifies one of the host operations. The strings must match the
// host side exactly.
type Action string

// Supported host actions.
const (
	ActionExists    Action = "vfs/exists"
	ActionReadFile  Action = "vfs/readFile"
	ActionWriteFile Action = "vfs/writeFile"
)

// Valid reports whether a is one of the known actions.
func (a Action) Valid() bool {
	switch a {
	case ActionExists, ActionReadFile, ActionWriteFile:
		return true
	}
	return false
}

// Payload is an encoded request as handed to the host.
type Payload = json.RawMessage

// Response is the raw value the host resolved with.
type Response = json.RawMessage

// ReadRequest is the payload of the exists and read actions.
type ReadRequest struct {
	Path string `json:"path"`
}

// WriteRequest is the payload of the write action. Content is only borrowed
// for the duration of Encode.
type WriteRequest struct {
	Path    string `json:"path"`
	Content []byte `json:"content"`
}

// Encode serializes a request. It only fails for values that are not one of
// the request types above.
func Encode(req any) (Payload, error) {
	switch req.(type) {
	case ReadRequest, *ReadRequest, WriteRequest, *WriteRequest:
	default:
		return nil, errors.Errorf("codec: unsupported request type %T", req)
	}
	return json.Marshal(req)
}

// DecodeReadRequest parses the payload of an exists or read action.
func DecodeReadRequest(p Payload) (ReadRequest, error) {
	var req ReadRequest
	if err := decodeObject(p, &req, "path"); err != nil {
		return ReadRequest{}, err
	}
	return req, nil
}

// DecodeWriteRequest parses the payload of a write action.
func DecodeWriteRequest(p Payload) (WriteRequest, error) {
	var req WriteRequest
	if err := decodeObject(p, &req, "path", "content"); err != nil {
		return WriteRequest{}, err
	}
	return req, nil
}

// DecodeExists interprets an exists response by truthiness: false, null, 0,
// "" and a missing value are false, everything else is true. Only malformed
// JSON is a decode failure.
func DecodeExists(r Response) (bool, error) {
	r = bytes.TrimSpace(r)
	if len(r) == 0 {
		return false, nil
	}

	var v any
	if err := json.Unmarshal(r, &v); err != nil {
		return false, newDecodeError(ActionExists, "boolean", err)
	}
	switch t := v.(type) {
	case nil:
		return false, nil
	case bool:
		return t, nil
	case float64:
		return t != 0, nil
	case string:
		return t != "", nil
	default:
		return true, nil
	}
}

// DecodeText decodes a read response, which must be a JSON string holding
// valid UTF-8. Escaped surrogates that do not form a pair are refused rather
// than replaced with U+FFFD.
func DecodeText(r Response) (string, error) {
	r = bytes.TrimSpace(r)
	if len(r) == 0 || r[0] != '"' {
		return "", newDecodeError(ActionReadFile, "text", ErrWrongType)
	}
	if !utf8.Valid(r) || hasLoneSurrogate(r) {
		return "", newDecodeError(ActionReadFile, "text", ErrInvalidText)
	}

	var s string
	if err := json.Unmarshal(r, &s); err != nil {
		return "", newDecodeError(ActionReadFile, "text", err)
	}
	return s, nil
}

// EncodeText builds a read response.
func EncodeText(content []byte) (Response, error) {
	if !utf8.Valid(content) {
		return nil, newDecodeError(ActionReadFile, "text", ErrInvalidText)
	}
	return json.Marshal(string(content))
}

// EncodeExists builds an exists response.
func EncodeExists(exists bool) Response {
	if exists {
		return Response("true")
	}
	return Response("false")
}

func decodeObject(p Payload, dst any, fields ...string) error {
	var present map[string]json.RawMessage
	if err := json.Unmarshal(p, &present); err != nil {
		return newDecodeError("", "request", err)
	}
	for _, f := range fields {
		if _, ok := present[f]; !ok {
			return newDecodeError("", "request", errors.Wrap(ErrMissingField, f))
		}
	}
	if err := json.Unmarshal(p, dst); err != nil {
		return newDecodeError("", "request", err)
	}
	return nil
}

// hasLoneSurrogate scans the escapes of a JSON string for a \uXXXX surrogate
// that is not immediately completed by its other half.
func hasLoneSurrogate(r []byte) bool {
	for i := 0; i < len(r); i++ {
		if r[i] != '\\' || i+1 >= len(r) {
			continue
		}
		if r[i+1] != 'u' {
			i++
			continue
		}
		hi, ok := hexRune(r, i)
		if !ok {
			return false
		}
		i += 5
		if !utf16.IsSurrogate(hi) {
			continue
		}
		if hi >= 0xdc00 {
			return true
		}
		if i+2 >= len(r) || r[i+1] != '\\' || r[i+2] != 'u' {
			return true
		}
		lo, ok := hexRune(r, i+1)
		if !ok || lo < 0xdc00 || lo > 0xdfff {
			return true
		}
		i += 6
	}
	return false
}

// hexRune reads the four hex digits of the \u escape starting at r[i].
// Malformed escapes are left to the JSON decoder.
func hexRune(r []byte, i int) (rune, bool) {
	if i+6 > len(r) {
		return 0, false
	}
	n, err := strconv.ParseUint(string(r[i+2:i+6]), 16, 16)
	if err != nil {
		return 0, false
	}
	return rune(n), true
}
