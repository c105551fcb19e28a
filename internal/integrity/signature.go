// Package integrity implements the Ed25519 signing and verification layer:
// parsing the inline signed-comment line embedded in item files, computing
// the content hash it covers, and verifying it against a trust store.
package integrity

import (
	"fmt"
	"regexp"
	"sort"
	"time"

	"github.com/leolilley/ryeos/pkg/ryemodels"
)

// signedLinePattern matches a trailing "rye:signed:<ts>:<hash>:<sig>:<fp>"
// token anywhere on a line, regardless of the host language's comment
// marker preceding it.
var signedLinePattern = regexp.MustCompile(`rye:signed:([^:\s]+):([0-9a-fA-F]+):([A-Za-z0-9_-]+):([0-9a-fA-F]{16})`)

// legacyLinePattern matches the rejected predecessor formats.
var legacyLinePattern = regexp.MustCompile(`(rye|kiwi-mcp):validated:`)

// ParseSignatureLine parses one raw line into a SignatureLine. It returns
// ok=false if the line does not contain a rye:signed: token.
func ParseSignatureLine(raw string) (line ryemodels.SignatureLine, ok bool) {
	m := signedLinePattern.FindStringSubmatch(raw)
	if m == nil {
		return ryemodels.SignatureLine{}, false
	}
	ts, err := time.Parse(time.RFC3339, m[1])
	if err != nil {
		return ryemodels.SignatureLine{}, false
	}
	return ryemodels.SignatureLine{
		Timestamp:   ts,
		ContentHash: m[2],
		Signature:   m[3],
		KeyFP:       m[4],
		Raw:         raw,
	}, true
}

// HasLegacySignature reports whether raw contains a rejected legacy
// validation marker (rye:validated:… or kiwi-mcp:validated:…).
func HasLegacySignature(raw string) bool {
	return legacyLinePattern.MatchString(raw)
}

// ExtractSignature finds every rye:signed: line in content and returns the
// authoritative one: the line with the latest timestamp. On a timestamp
// tie, the line that occurs later in the file wins, since a later line is
// assumed to be a more recent amendment. Lines other than the authoritative
// one are left untouched in the content for hashing purposes, matching the
// spec's rule that older signed-comment lines are treated as ordinary
// content.
func ExtractSignature(content []byte) (sig ryemodels.SignatureLine, found bool) {
	lines := splitLines(content)
	type candidate struct {
		idx  int
		line ryemodels.SignatureLine
	}
	var candidates []candidate
	for i, raw := range lines {
		if parsed, ok := ParseSignatureLine(raw); ok {
			candidates = append(candidates, candidate{idx: i, line: parsed})
		}
	}
	if len(candidates) == 0 {
		return ryemodels.SignatureLine{}, false
	}
	sort.SliceStable(candidates, func(a, b int) bool {
		ta, tb := candidates[a].line.Timestamp, candidates[b].line.Timestamp
		if ta.Equal(tb) {
			return candidates[a].idx < candidates[b].idx
		}
		return ta.Before(tb)
	})
	return candidates[len(candidates)-1].line, true
}

// StripAuthoritativeLine removes only the single authoritative signed-comment
// line (as selected by ExtractSignature) from content, returning the bytes
// the content hash is computed over. The line is removed together with its
// terminating newline; every other byte, including any other rye:signed:
// lines and the file's final newline, remains part of the returned bytes.
func StripAuthoritativeLine(content []byte) []byte {
	sig, found := ExtractSignature(content)
	if !found {
		return content
	}
	start := 0
	for i := 0; i <= len(content); i++ {
		if i < len(content) && content[i] != '\n' {
			continue
		}
		if string(content[start:i]) == sig.Raw {
			next := i + 1
			if next > len(content) {
				next = len(content)
			}
			out := append([]byte{}, content[:start]...)
			return append(out, content[next:]...)
		}
		start = i + 1
	}
	return content
}

// FormatSignatureLine renders the canonical signed-comment body (without
// the host comment marker) for embedding: "rye:signed:<ts>:<hash>:<sig>:<fp>".
func FormatSignatureLine(ts time.Time, contentHash, sigB64URL, keyFP string) string {
	return fmt.Sprintf("rye:signed:%s:%s:%s:%s", ts.UTC().Format(time.RFC3339), contentHash, sigB64URL, keyFP)
}

func splitLines(content []byte) []string {
	var lines []string
	start := 0
	for i, b := range content {
		if b == '\n' {
			lines = append(lines, string(content[start:i]))
			start = i + 1
		}
	}
	if start < len(content) {
		lines = append(lines, string(content[start:]))
	}
	return lines
}

func joinLines(lines [][]byte) []byte {
	var out []byte
	for i, l := range lines {
		out = append(out, l...)
		if i < len(lines)-1 {
			out = append(out, '\n')
		}
	}
	return out
}
