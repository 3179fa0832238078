package pii

import (
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanDetectsEmail(t *testing.T) {
	docs := []Document{
		{Text: "contact: jane.doe@example.com for details", Filename: "contacts.txt"},
	}

	rep := Scan(docs, logrus.New())

	assert.Equal(t, 1, rep.TotalDocuments)
	assert.Equal(t, 1, rep.ProcessedDocuments)
	assert.True(t, rep.PiiDetected)
	require.Len(t, rep.Findings, 1)

	f := rep.Findings[0]
	assert.Equal(t, "email", f.Type)
	assert.Equal(t, "jane.doe@example.com", f.Match)
	assert.GreaterOrEqual(t, f.Confidence, 0.85)
	assert.Equal(t, "contacts.txt", f.Filename)
	assert.Equal(t, 1, rep.DocumentCounts["contacts.txt"])
}

func TestScanContextRedactsMatch(t *testing.T) {
	text := "lead applicant can be reached at jane.doe@example.com between office hours on weekdays"
	rep := Scan([]Document{{Text: text, Filename: "a.txt"}}, nil)

	require.Len(t, rep.Findings, 1)
	ctx := rep.Findings[0].Context
	assert.NotContains(t, ctx, "jane.doe@example.com")
	assert.Contains(t, ctx, strings.Repeat("*", len("jane.doe@example.com")))
	assert.True(t, strings.HasPrefix(ctx, "..."))
	assert.True(t, strings.HasSuffix(ctx, "..."))
}

func TestScanMultipleDetectorTypes(t *testing.T) {
	text := "SSN 123-45-6789, card 4111 1111 1111 1111, host 192.168.0.1"
	rep := Scan([]Document{{Text: text, Filename: "dump.txt"}}, nil)

	types := map[string]bool{}
	for _, f := range rep.Findings {
		types[f.Type] = true
	}
	assert.True(t, types["ssn"])
	assert.True(t, types["credit_card"])
	assert.True(t, types["ip_address"])
}

func TestScanSkipsEmptyDocument(t *testing.T) {
	docs := []Document{
		{Text: "", Filename: "empty.pdf"},
		{Text: "reach me at jane.doe@example.com", Filename: "ok.txt"},
	}

	rep := Scan(docs, logrus.New())

	assert.Equal(t, 2, rep.TotalDocuments)
	assert.Equal(t, 1, rep.ProcessedDocuments)
	assert.True(t, rep.PiiDetected)
	assert.NotContains(t, rep.DocumentCounts, "empty.pdf")
}

func TestScanCleanDocument(t *testing.T) {
	rep := Scan([]Document{{Text: "nothing sensitive here", Filename: "clean.txt"}}, nil)

	assert.Equal(t, 1, rep.ProcessedDocuments)
	assert.False(t, rep.PiiDetected)
	assert.Empty(t, rep.Findings)
	assert.Equal(t, 0, rep.DocumentCounts["clean.txt"])
}

func TestDocKeyPrefersPath(t *testing.T) {
	assert.Equal(t, "dir/a.txt", docKey(Document{Path: "dir/a.txt", Filename: "a.txt"}))
	assert.Equal(t, "a.txt", docKey(Document{Filename: "a.txt"}))
}
