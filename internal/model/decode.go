package model

import (
	"encoding/base64"
	"unicode/utf8"
)

// decodeContent validates b as UTF-8, mirroring infobserve/events/gist.py's
// `except UnicodeDecodeError: self.raw_content = ""` — a body that isn't
// valid UTF-8 leaves the event's content empty rather than patched up with
// replacement characters, so it's dropped by the same Content()-emptiness
// check every other failed fetch goes through.
func decodeContent(b []byte) []byte {
	if !utf8.Valid(b) {
		return nil
	}
	return b
}

func decodeBase64(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(s)
}
