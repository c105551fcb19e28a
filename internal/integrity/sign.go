package integrity

import (
	"crypto/ed25519"
	"time"
)

// SignContent signs content (which must already have any prior
// authoritative signature line stripped) and returns the new content with
// the signature line appended as a single-line comment using marker, plus
// the signature line's fields.
//
// marker is the host language's single-line comment prefix, e.g. "#" or
// "//"; an empty marker appends the bare token.
func SignContent(content []byte, marker string, priv ed25519.PrivateKey, now time.Time) (signed []byte, line string) {
	hash := ContentHash(content)
	sig := Sign(content, priv)
	fp := Fingerprint(priv.Public().(ed25519.PublicKey))
	body := FormatSignatureLine(now, hash, sig, fp)

	if marker != "" {
		line = marker + " " + body
	} else {
		line = body
	}

	out := make([]byte, 0, len(content)+len(line)+1)
	out = append(out, content...)
	if len(content) > 0 && content[len(content)-1] != '\n' {
		out = append(out, '\n')
	}
	out = append(out, line...)
	out = append(out, '\n')
	return out, line
}
