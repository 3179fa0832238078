package ingest

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"path"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"

	"github.com/fairlens/fairlens/internal/analyzer/pii"
	analyses "github.com/fairlens/fairlens/internal/domain/analyses"
	"github.com/fairlens/fairlens/internal/domain/datasets"
)

// Kind tags the resolved input variant.
type Kind string

const (
	KindTabular   Kind = "tabular"
	KindDocuments Kind = "documents"
)

// Input is the normalized form the analyzers consume. Shape-varying
// payloads (arbitrary CSV columns, arbitrary webhook JSON) are resolved
// here once, never threaded through the analyzers untyped.
type Input struct {
	Kind Kind
	Rows []map[string]any
	Docs []pii.Document
}

// Resolver normalizes a source descriptor into analyzer input.
type Resolver struct {
	Datasets datasets.Repository
	Store    analyses.ObjectStore
	Log      *logrus.Logger
}

// Resolve fetches and decodes the source for the given analyzer. Dataset
// sources are read from object storage; webhook sources are already
// resident. Error taxonomy: missing records are not-found, storage reads
// are transient, undecodable or unsupported content is validation.
func (r *Resolver) Resolve(ctx context.Context, tenant string, src analyses.SourceDescriptor, analyzer analyses.AnalyzerType) (*Input, error) {
	switch src.Kind {
	case analyses.SourceDataset:
		return r.resolveDataset(ctx, tenant, src, analyzer)
	case analyses.SourceWebhook:
		return r.resolveWebhook(ctx, tenant, src, analyzer)
	default:
		return nil, analyses.Validationf("unknown source kind %q", src.Kind)
	}
}

func (r *Resolver) resolveDataset(ctx context.Context, tenant string, src analyses.SourceDescriptor, analyzer analyses.AnalyzerType) (*Input, error) {
	if src.DatasetID == "" {
		return nil, analyses.Validationf("dataset source is missing a dataset id")
	}
	ds, err := r.Datasets.GetDataset(ctx, tenant, datasets.DatasetID(src.DatasetID))
	if err != nil {
		return nil, analyses.Transient("reading dataset record", err)
	}
	if ds == nil {
		return nil, analyses.NotFoundf("dataset %s not found", src.DatasetID)
	}

	data, objectCT, err := r.Store.GetObject(ctx, ds.Bucket, ds.Key)
	if err != nil {
		return nil, analyses.Transient("fetching dataset object", err)
	}
	ct := ds.ContentType
	if ct == "" {
		ct = objectCT
	}

	if analyzer == analyses.AnalyzerPII {
		return r.documentsInput(ds, data, ct), nil
	}
	return tabularInput(ds, data, ct)
}

func (r *Resolver) resolveWebhook(ctx context.Context, tenant string, src analyses.SourceDescriptor, analyzer analyses.AnalyzerType) (*Input, error) {
	if src.WebhookPayloadID == "" {
		return nil, analyses.Validationf("webhook source is missing a payload id")
	}
	p, err := r.Datasets.GetWebhookPayload(ctx, tenant, datasets.WebhookPayloadID(src.WebhookPayloadID))
	if err != nil {
		return nil, analyses.Transient("reading webhook payload record", err)
	}
	if p == nil {
		return nil, analyses.NotFoundf("webhook payload %s not found", src.WebhookPayloadID)
	}

	if analyzer == analyses.AnalyzerPII {
		name := "webhook-" + string(p.ID)
		return &Input{Kind: KindDocuments, Docs: []pii.Document{
			{Text: string(p.Body), Filename: name, Path: name},
		}}, nil
	}

	rows, err := jsonRows(p.Body)
	if err != nil {
		return nil, err
	}
	return &Input{Kind: KindTabular, Rows: rows}, nil
}

// documentsInput wraps dataset bytes as extracted-text documents. One
// document's extraction failure produces a document with empty text; the
// scanner logs and skips it without aborting the batch.
func (r *Resolver) documentsInput(ds *datasets.Dataset, data []byte, ct string) *Input {
	name := ds.Filename
	if name == "" {
		name = path.Base(ds.Key)
	}
	doc := pii.Document{Filename: name, Path: ds.Key}

	switch family(ct, name) {
	case "csv", "json", "text":
		doc.Text = string(data)
	default:
		text, err := ExtractText(data)
		if err != nil {
			if r.Log != nil {
				r.Log.WithFields(logrus.Fields{
					"dataset": ds.ID,
					"key":     ds.Key,
				}).Warnf("text extraction failed: %v", err)
			}
		} else {
			doc.Text = text
		}
	}
	return &Input{Kind: KindDocuments, Docs: []pii.Document{doc}}
}

func tabularInput(ds *datasets.Dataset, data []byte, ct string) (*Input, error) {
	name := ds.Filename
	if name == "" {
		name = ds.Key
	}
	var (
		rows []map[string]any
		err  error
	)
	switch family(ct, name) {
	case "csv":
		rows, err = csvRows(data)
	case "json":
		rows, err = jsonRows(data)
	case "xlsx":
		rows, err = xlsxRows(data)
	default:
		return nil, analyses.Validationf("unsupported content type %q for statistics analysis", ct)
	}
	if err != nil {
		return nil, err
	}
	return &Input{Kind: KindTabular, Rows: rows}, nil
}

// family collapses a content type (or filename extension fallback) into
// the decoder families the pipeline knows.
func family(ct, filename string) string {
	mt := strings.ToLower(strings.TrimSpace(strings.SplitN(ct, ";", 2)[0]))
	switch {
	case strings.Contains(mt, "csv"):
		return "csv"
	case strings.Contains(mt, "json"):
		return "json"
	case strings.Contains(mt, "spreadsheetml"), strings.Contains(mt, "ms-excel"):
		return "xlsx"
	case strings.HasPrefix(mt, "text/"):
		return "text"
	}
	switch strings.ToLower(path.Ext(filename)) {
	case ".csv":
		return "csv"
	case ".json":
		return "json"
	case ".xlsx":
		return "xlsx"
	case ".txt", ".log", ".md":
		return "text"
	}
	return mt
}

func csvRows(data []byte) ([]map[string]any, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err == io.EOF {
		return nil, analyses.Validationf("csv file is empty")
	}
	if err != nil {
		return nil, analyses.Validationf("malformed csv header: %v", err)
	}
	var rows []map[string]any
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, analyses.Validationf("malformed csv row: %v", err)
		}
		row := make(map[string]any, len(header))
		for i, col := range header {
			if i < len(rec) {
				row[col] = rec[i]
			} else {
				row[col] = ""
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func jsonRows(data []byte) ([]map[string]any, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, analyses.Validationf("payload is not valid JSON: %v", err)
	}
	switch x := v.(type) {
	case map[string]any:
		// single object normalizes to a singleton array
		return []map[string]any{x}, nil
	case []any:
		rows := make([]map[string]any, 0, len(x))
		for _, el := range x {
			obj, ok := el.(map[string]any)
			if !ok {
				return nil, analyses.Validationf("JSON array elements must be objects")
			}
			rows = append(rows, obj)
		}
		return rows, nil
	default:
		return nil, analyses.Validationf("JSON payload must be an object or an array of objects")
	}
}

func xlsxRows(data []byte) ([]map[string]any, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, analyses.Validationf("malformed xlsx file: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, analyses.Validationf("xlsx file has no sheets")
	}
	raw, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, analyses.Validationf("reading xlsx sheet: %v", err)
	}
	if len(raw) == 0 {
		return nil, analyses.Validationf("xlsx sheet is empty")
	}
	header := raw[0]
	var rows []map[string]any
	for _, rec := range raw[1:] {
		row := make(map[string]any, len(header))
		for i, col := range header {
			if i < len(rec) {
				row[col] = rec[i]
			} else {
				row[col] = ""
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}
