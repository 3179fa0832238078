package pii

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"
)

// contextRadius is how many characters of surrounding text a finding keeps.
const contextRadius = 30

// Document is one unit of extracted text to scan.
type Document struct {
	Text     string `json:"text"`
	Filename string `json:"filename"`
	Path     string `json:"path"`
}

// Finding is a single detected PII span.
type Finding struct {
	Type       string  `json:"type"`
	Match      string  `json:"match"`
	Confidence float64 `json:"confidence"`
	Filename   string  `json:"filename"`
	Path       string  `json:"path"`
	Start      int     `json:"start"`
	End        int     `json:"end"`
	Context    string  `json:"context"`
}

// Report aggregates one scan over a batch of documents.
type Report struct {
	TotalDocuments     int            `json:"total_documents"`
	ProcessedDocuments int            `json:"processed_documents"`
	PiiDetected        bool           `json:"pii_detected"`
	Findings           []Finding      `json:"findings"`
	DocumentCounts     map[string]int `json:"document_counts"`
}

type detector struct {
	name       string
	pattern    *regexp.Regexp
	confidence float64
}

// Detectors are ordered and independent; one text span may produce
// findings from several of them. Confidence weights are deliberate:
// structurally strong patterns score high, heuristic ones stay low so
// downstream consumers can filter. Do not tune them upward to look more
// authoritative.
var detectors = []detector{
	{"email", regexp.MustCompile(`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`), 0.95},
	{"ssn", regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`), 0.92},
	{"credit_card", regexp.MustCompile(`\b(?:\d{4}[ \-]){3}\d{4}\b|\b\d{15,16}\b`), 0.85},
	{"ip_address", regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`), 0.80},
	{"date_of_birth", regexp.MustCompile(`\b(?:0?[1-9]|1[0-2])[/\-](?:0?[1-9]|[12]\d|3[01])[/\-](?:19|20)\d{2}\b`), 0.70},
	{"street_address", regexp.MustCompile(`\b\d{1,5}\s+[A-Za-z0-9.' ]+\s(?:Street|St|Avenue|Ave|Road|Rd|Boulevard|Blvd|Lane|Ln|Drive|Dr|Court|Ct)\b\.?`), 0.65},
	{"passport", regexp.MustCompile(`\b[A-Z]{1,2}\d{7,9}\b`), 0.60},
	{"drivers_license", regexp.MustCompile(`\b[A-Z]{1,2}[\- ]\d{4,8}\b`), 0.60},
	{"person_name", regexp.MustCompile(`\b[A-Z][a-z]+\s+[A-Z][a-z]+\b`), 0.50},
}

// Scan runs every detector over every document. A single document's
// failure is logged and skipped; it never aborts the batch.
func Scan(docs []Document, log *logrus.Logger) *Report {
	rep := &Report{
		TotalDocuments: len(docs),
		DocumentCounts: make(map[string]int, len(docs)),
	}
	for _, doc := range docs {
		findings, err := scanDocument(doc)
		if err != nil {
			if log != nil {
				log.WithFields(logrus.Fields{
					"filename": doc.Filename,
					"path":     doc.Path,
				}).Warnf("pii scan skipped document: %v", err)
			}
			continue
		}
		rep.ProcessedDocuments++
		rep.DocumentCounts[docKey(doc)] = len(findings)
		rep.Findings = append(rep.Findings, findings...)
	}
	rep.PiiDetected = len(rep.Findings) > 0
	return rep
}

func scanDocument(doc Document) (findings []Finding, err error) {
	defer func() {
		if r := recover(); r != nil {
			findings = nil
			err = fmt.Errorf("detector panic: %v", r)
		}
	}()
	if doc.Text == "" {
		return nil, fmt.Errorf("no extracted text")
	}
	for _, d := range detectors {
		for _, loc := range d.pattern.FindAllStringIndex(doc.Text, -1) {
			findings = append(findings, Finding{
				Type:       d.name,
				Match:      doc.Text[loc[0]:loc[1]],
				Confidence: d.confidence,
				Filename:   doc.Filename,
				Path:       doc.Path,
				Start:      loc[0],
				End:        loc[1],
				Context:    snippet(doc.Text, loc[0], loc[1]),
			})
		}
	}
	return findings, nil
}

// snippet returns the surrounding text with the match itself redacted and
// an ellipsis wherever the window was cut short of a text boundary.
func snippet(text string, start, end int) string {
	lo := start - contextRadius
	if lo < 0 {
		lo = 0
	}
	hi := end + contextRadius
	if hi > len(text) {
		hi = len(text)
	}
	var b strings.Builder
	if lo > 0 {
		b.WriteString("...")
	}
	b.WriteString(text[lo:start])
	b.WriteString(strings.Repeat("*", end-start))
	b.WriteString(text[end:hi])
	if hi < len(text) {
		b.WriteString("...")
	}
	return b.String()
}

func docKey(doc Document) string {
	if doc.Path != "" {
		return doc.Path
	}
	return doc.Filename
}
