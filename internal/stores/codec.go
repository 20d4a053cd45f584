package stores

import (
	"bytes"
	"encoding/binary"
	"io"
	"time"
)

const (
	tokenRecordVersionV1 = 1
	codeRecordVersionV1  = 1
)

// Token layout: version(1) expiresAtMs(8) purpose(len16+bytes) email(len16+bytes).
// The token value itself is never stored; the record key is derived from its hash.
func encodeTokenRecord(t VerificationToken) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(tokenRecordVersionV1)
	if err := binary.Write(&buf, binary.BigEndian, t.ExpiresAt.UnixMilli()); err != nil {
		return nil, err
	}
	if err := writeString(&buf, string(t.Purpose)); err != nil {
		return nil, err
	}
	if err := writeString(&buf, t.Email); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeTokenRecord(data []byte) (VerificationToken, error) {
	r := bytes.NewReader(data)
	version, err := r.ReadByte()
	if err != nil || version != tokenRecordVersionV1 {
		return VerificationToken{}, ErrMalformedRecord
	}

	var expMs int64
	if err := binary.Read(r, binary.BigEndian, &expMs); err != nil {
		return VerificationToken{}, ErrMalformedRecord
	}
	purpose, err := readString(r)
	if err != nil {
		return VerificationToken{}, ErrMalformedRecord
	}
	email, err := readString(r)
	if err != nil {
		return VerificationToken{}, ErrMalformedRecord
	}

	return VerificationToken{
		Email:     email,
		Purpose:   Purpose(purpose),
		ExpiresAt: time.UnixMilli(expMs),
	}, nil
}

// Code layout: version(1) expiresAtMs(8) code(len16+bytes) email(len16+bytes).
func encodeCodeRecord(c OneTimeCode) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(codeRecordVersionV1)
	if err := binary.Write(&buf, binary.BigEndian, c.ExpiresAt.UnixMilli()); err != nil {
		return nil, err
	}
	if err := writeString(&buf, c.Code); err != nil {
		return nil, err
	}
	if err := writeString(&buf, c.Email); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeCodeRecord(data []byte) (OneTimeCode, error) {
	r := bytes.NewReader(data)
	version, err := r.ReadByte()
	if err != nil || version != codeRecordVersionV1 {
		return OneTimeCode{}, ErrMalformedRecord
	}

	var expMs int64
	if err := binary.Read(r, binary.BigEndian, &expMs); err != nil {
		return OneTimeCode{}, ErrMalformedRecord
	}
	code, err := readString(r)
	if err != nil {
		return OneTimeCode{}, ErrMalformedRecord
	}
	email, err := readString(r)
	if err != nil {
		return OneTimeCode{}, ErrMalformedRecord
	}

	return OneTimeCode{
		Email:     email,
		Code:      code,
		ExpiresAt: time.UnixMilli(expMs),
	}, nil
}

func writeString(buf *bytes.Buffer, s string) error {
	if len(s) > 0xFFFF {
		return ErrMalformedRecord
	}
	if err := binary.Write(buf, binary.BigEndian, uint16(len(s))); err != nil {
		return err
	}
	buf.WriteString(s)
	return nil
}

func readString(r *bytes.Reader) (string, error) {
	var n uint16
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return "", err
	}
	out := make([]byte, n)
	if _, err := io.ReadFull(r, out); err != nil {
		return "", err
	}
	return string(out), nil
}
