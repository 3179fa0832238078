package ingest

import (
	"fmt"
	"strings"
)

// minRunLength: shorter printable runs inside binary formats are almost
// always structure, not prose.
const minRunLength = 4

// ExtractText pulls human-readable text out of an opaque document (pdf,
// docx, unknown binary) by collecting printable runs. Heuristic on
// purpose: PII scanning is best-effort over whatever text survives, not
// a faithful render of the document.
func ExtractText(data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("empty document")
	}
	var (
		b   strings.Builder
		run []byte
	)
	flush := func() {
		if len(run) >= minRunLength {
			if b.Len() > 0 {
				b.WriteByte(' ')
			}
			b.Write(run)
		}
		run = run[:0]
	}
	for _, c := range data {
		if c >= 0x20 && c < 0x7f {
			run = append(run, c)
			continue
		}
		if c == '\n' || c == '\t' || c == '\r' {
			run = append(run, ' ')
			continue
		}
		flush()
	}
	flush()

	out := strings.Join(strings.Fields(b.String()), " ")
	if out == "" {
		return "", fmt.Errorf("no extractable text")
	}
	return out, nil
}
