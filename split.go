package erc

import (
	"strings"

	"golang.org/x/text/encoding"
)

// defaultMaxLineLen is the limit on the encoded byte length of one outbound
// line of free text. 512 is the protocol frame size; the headroom covers the
// prefix the server prepends when relaying.
const defaultMaxLineLen = 440

// splitText folds text into chunks whose encoded byte length does not exceed
// max, breaking on word boundaries where possible. A single word longer than
// max is split mid-word rather than sent overlong. Characters are never split
// mid-encoding, so a max smaller than one character's encoded width yields
// one chunk per character, each exceeding max by necessity.
func splitText(text string, enc encoding.Encoding, max int) []string {
	if max <= 0 {
		max = defaultMaxLineLen
	}
	measure := func(s string) int {
		return len(encodeText(s, enc))
	}
	if measure(text) <= max {
		return []string{text}
	}

	var chunks []string
	var cur string
	flush := func() {
		if cur != "" {
			chunks = append(chunks, cur)
			cur = ""
		}
	}

	for _, word := range strings.Fields(text) {
		cand := word
		if cur != "" {
			cand = cur + " " + word
		}
		if measure(cand) <= max {
			cur = cand
			continue
		}
		flush()
		if measure(word) <= max {
			cur = word
			continue
		}
		// hard split: accumulate runes until the next one would overflow
		for _, r := range word {
			if measure(cur+string(r)) > max {
				flush()
			}
			cur += string(r)
		}
	}
	flush()

	if len(chunks) == 0 {
		return []string{""}
	}
	return chunks
}

// encodeText converts UTF-8 text to the wire encoding. A nil encoding or an
// unencodable sequence falls back to the original bytes; losing a line over
// a charset mismatch would be worse than sending it raw.
func encodeText(s string, enc encoding.Encoding) []byte {
	if enc == nil {
		return []byte(s)
	}
	out, err := enc.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return []byte(s)
	}
	return out
}
