package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

// Wire layout, version 1:
//
//	[version u8]
//	[len u8][UserID] [len u8][DeviceID] [len u8][DeviceModel] [len u8][DeviceOS]
//	[RefreshHash 32] [CreatedAt be64] [UpdatedAt be64]
//
// The fixed 48-byte tail lets the rotation script splice the hash and
// UpdatedAt without parsing the string fields.
const encodingVersion = 1

const encodedTailSize = 48

func Encode(s *Session) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(encodingVersion)

	for _, field := range []struct {
		name  string
		value string
	}{
		{"userID", s.UserID},
		{"deviceID", s.DeviceID},
		{"deviceModel", s.DeviceModel},
		{"deviceOS", s.DeviceOS},
	} {
		if len(field.value) > 255 {
			return nil, errors.New(field.name + " too long")
		}
		buf.WriteByte(byte(len(field.value)))
		buf.WriteString(field.value)
	}

	buf.Write(s.RefreshHash[:])

	if err := binary.Write(&buf, binary.BigEndian, s.CreatedAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, s.UpdatedAt); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Decode parses an encoded session blob. The session ID is not part of the
// blob; callers set it from the key they fetched.
func Decode(data []byte) (*Session, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != encodingVersion {
		return nil, errors.New("invalid session version")
	}

	s := &Session{}

	for _, dst := range []*string{&s.UserID, &s.DeviceID, &s.DeviceModel, &s.DeviceOS} {
		size, err := reader.ReadByte()
		if err != nil {
			return nil, err
		}
		raw := make([]byte, size)
		if _, err := io.ReadFull(reader, raw); err != nil {
			return nil, err
		}
		*dst = string(raw)
	}

	if _, err := io.ReadFull(reader, s.RefreshHash[:]); err != nil {
		return nil, err
	}

	if err := binary.Read(reader, binary.BigEndian, &s.CreatedAt); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &s.UpdatedAt); err != nil {
		return nil, err
	}

	return s, nil
}
