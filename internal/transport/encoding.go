package transport

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Encoding names how relayed bytes are rendered as text for callers
// that asked for it.  The zero value leaves data as bytes only.
type Encoding string

const (
	EncodingNone   Encoding = ""
	EncodingASCII  Encoding = "ascii"
	EncodingLatin1 Encoding = "latin1"
	EncodingUTF8   Encoding = "utf8"
	EncodingHex    Encoding = "hex"
	EncodingBase64 Encoding = "base64"
)

// ParseEncoding accepts the names above plus a few common aliases.
func ParseEncoding(name string) (Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "none", "raw", "binary":
		return EncodingNone, nil
	case "ascii", "us-ascii":
		return EncodingASCII, nil
	case "latin1", "iso-8859-1":
		return EncodingLatin1, nil
	case "utf8", "utf-8":
		return EncodingUTF8, nil
	case "hex":
		return EncodingHex, nil
	case "base64":
		return EncodingBase64, nil
	}
	return EncodingNone, fmt.Errorf("unknown encoding %q", name)
}

// Decoder turns successive chunks of a byte stream into text.  It is
// stateful for UTF-8 so that a rune split across chunks is emitted
// whole with the chunk that completes it.
type Decoder struct {
	enc     Encoding
	pending []byte
}

// NewDecoder returns a Decoder for enc.
func NewDecoder(enc Encoding) *Decoder {
	return &Decoder{enc: enc}
}

// Decode renders p.  EncodingNone always yields "".
func (d *Decoder) Decode(p []byte) string {
	switch d.enc {
	case EncodingASCII:
		b := make([]byte, len(p))
		for i, c := range p {
			b[i] = c & 0x7f
		}
		return string(b)
	case EncodingLatin1:
		r := make([]rune, len(p))
		for i, c := range p {
			r[i] = rune(c)
		}
		return string(r)
	case EncodingUTF8:
		return d.decodeUTF8(p)
	case EncodingHex:
		return hex.EncodeToString(p)
	case EncodingBase64:
		return base64.StdEncoding.EncodeToString(p)
	}
	return ""
}

func (d *Decoder) decodeUTF8(p []byte) string {
	buf := append(d.pending, p...)
	d.pending = nil

	// Hold back an incomplete trailing sequence, at most UTFMax-1 bytes.
	cut := len(buf)
	for i := len(buf) - 1; i >= 0 && i >= len(buf)-utf8.UTFMax+1; i-- {
		if utf8.RuneStart(buf[i]) {
			if !utf8.FullRune(buf[i:]) {
				cut = i
			}
			break
		}
	}
	if cut < len(buf) {
		d.pending = append([]byte(nil), buf[cut:]...)
	}
	return strings.ToValidUTF8(string(buf[:cut]), "�")
}

// Encode converts caller text into wire bytes.
func (e Encoding) Encode(s string) ([]byte, error) {
	switch e {
	case EncodingASCII, EncodingLatin1:
		limit := rune(0xff)
		if e == EncodingASCII {
			limit = 0x7f
		}
		b := make([]byte, 0, len(s))
		for _, r := range s {
			if r > limit {
				return nil, fmt.Errorf("%s: cannot encode %q", e, r)
			}
			b = append(b, byte(r))
		}
		return b, nil
	case EncodingHex:
		return hex.DecodeString(s)
	case EncodingBase64:
		return base64.StdEncoding.DecodeString(s)
	}
	return []byte(s), nil
}
