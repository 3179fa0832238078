package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	analyses "github.com/fairlens/fairlens/internal/domain/analyses"
	"github.com/fairlens/fairlens/internal/domain/datasets"
)

type fakeDatasets struct {
	dataset *datasets.Dataset
	payload *datasets.WebhookPayload
	err     error
}

func (f *fakeDatasets) SaveDataset(ctx context.Context, d *datasets.Dataset) error { return nil }

func (f *fakeDatasets) GetDataset(ctx context.Context, tenant string, id datasets.DatasetID) (*datasets.Dataset, error) {
	return f.dataset, f.err
}

func (f *fakeDatasets) SaveWebhookPayload(ctx context.Context, p *datasets.WebhookPayload) error {
	return nil
}

func (f *fakeDatasets) GetWebhookPayload(ctx context.Context, tenant string, id datasets.WebhookPayloadID) (*datasets.WebhookPayload, error) {
	return f.payload, f.err
}

type fakeStore struct {
	data []byte
	ct   string
	err  error
}

func (f *fakeStore) GetObject(ctx context.Context, bucket, key string) ([]byte, string, error) {
	return f.data, f.ct, f.err
}

func (f *fakeStore) PutObject(ctx context.Context, bucket, key string, data []byte, contentType string) (string, error) {
	return bucket + "/" + key, nil
}

func newResolver(ds *fakeDatasets, st *fakeStore) *Resolver {
	return &Resolver{Datasets: ds, Store: st, Log: logrus.New()}
}

func TestResolveDatasetCSV(t *testing.T) {
	ds := &fakeDatasets{dataset: &datasets.Dataset{
		ID: "d1", TenantID: "t1", Bucket: "b", Key: "data.csv", ContentType: "text/csv",
	}}
	st := &fakeStore{data: []byte("name,age\nalice,30\nbob,\n")}

	in, err := newResolver(ds, st).Resolve(context.Background(), "t1",
		analyses.SourceDescriptor{Kind: analyses.SourceDataset, DatasetID: "d1"}, analyses.AnalyzerBias)
	require.NoError(t, err)

	assert.Equal(t, KindTabular, in.Kind)
	require.Len(t, in.Rows, 2)
	assert.Equal(t, "alice", in.Rows[0]["name"])
	assert.Equal(t, "30", in.Rows[0]["age"])
	assert.Equal(t, "", in.Rows[1]["age"])
}

func TestResolveDatasetJSONArray(t *testing.T) {
	ds := &fakeDatasets{dataset: &datasets.Dataset{
		ID: "d1", TenantID: "t1", Bucket: "b", Key: "data.json", ContentType: "application/json",
	}}
	st := &fakeStore{data: []byte(`[{"a":1},{"a":2}]`)}

	in, err := newResolver(ds, st).Resolve(context.Background(), "t1",
		analyses.SourceDescriptor{Kind: analyses.SourceDataset, DatasetID: "d1"}, analyses.AnalyzerBias)
	require.NoError(t, err)

	assert.Equal(t, KindTabular, in.Kind)
	require.Len(t, in.Rows, 2)
	assert.Equal(t, float64(1), in.Rows[0]["a"])
}

func TestResolveDatasetUnsupportedContentType(t *testing.T) {
	ds := &fakeDatasets{dataset: &datasets.Dataset{
		ID: "d1", TenantID: "t1", Bucket: "b", Key: "img.png", ContentType: "image/png",
	}}
	st := &fakeStore{data: []byte{0x89, 0x50}}

	_, err := newResolver(ds, st).Resolve(context.Background(), "t1",
		analyses.SourceDescriptor{Kind: analyses.SourceDataset, DatasetID: "d1"}, analyses.AnalyzerBias)
	require.Error(t, err)
	assert.Equal(t, analyses.FaultValidation, analyses.KindOf(err))
}

func TestResolveDatasetNotFound(t *testing.T) {
	_, err := newResolver(&fakeDatasets{}, &fakeStore{}).Resolve(context.Background(), "t1",
		analyses.SourceDescriptor{Kind: analyses.SourceDataset, DatasetID: "missing"}, analyses.AnalyzerBias)
	require.Error(t, err)
	assert.Equal(t, analyses.FaultNotFound, analyses.KindOf(err))
}

func TestResolveDatasetStorageErrorIsTransient(t *testing.T) {
	ds := &fakeDatasets{dataset: &datasets.Dataset{ID: "d1", Bucket: "b", Key: "k.csv"}}
	st := &fakeStore{err: errors.New("connection refused")}

	_, err := newResolver(ds, st).Resolve(context.Background(), "t1",
		analyses.SourceDescriptor{Kind: analyses.SourceDataset, DatasetID: "d1"}, analyses.AnalyzerBias)
	require.Error(t, err)
	assert.Equal(t, analyses.FaultTransient, analyses.KindOf(err))
	assert.True(t, analyses.IsRetryable(err))
}

func TestResolveDatasetForPII(t *testing.T) {
	ds := &fakeDatasets{dataset: &datasets.Dataset{
		ID: "d1", Bucket: "b", Key: "notes/readme.txt", ContentType: "text/plain", Filename: "readme.txt",
	}}
	st := &fakeStore{data: []byte("contact jane.doe@example.com")}

	in, err := newResolver(ds, st).Resolve(context.Background(), "t1",
		analyses.SourceDescriptor{Kind: analyses.SourceDataset, DatasetID: "d1"}, analyses.AnalyzerPII)
	require.NoError(t, err)

	assert.Equal(t, KindDocuments, in.Kind)
	require.Len(t, in.Docs, 1)
	assert.Equal(t, "readme.txt", in.Docs[0].Filename)
	assert.Equal(t, "notes/readme.txt", in.Docs[0].Path)
	assert.Equal(t, "contact jane.doe@example.com", in.Docs[0].Text)
}

func TestResolveWebhookTabular(t *testing.T) {
	ds := &fakeDatasets{payload: &datasets.WebhookPayload{
		ID: "w1", TenantID: "t1", ContentType: "application/json",
		Body: []byte(`{"gender":"female","approved":true}`),
	}}

	in, err := newResolver(ds, &fakeStore{}).Resolve(context.Background(), "t1",
		analyses.SourceDescriptor{Kind: analyses.SourceWebhook, WebhookPayloadID: "w1"}, analyses.AnalyzerBias)
	require.NoError(t, err)

	assert.Equal(t, KindTabular, in.Kind)
	require.Len(t, in.Rows, 1)
	assert.Equal(t, "female", in.Rows[0]["gender"])
}

func TestResolveWebhookPII(t *testing.T) {
	ds := &fakeDatasets{payload: &datasets.WebhookPayload{
		ID: "w1", Body: []byte("ssn 123-45-6789"),
	}}

	in, err := newResolver(ds, &fakeStore{}).Resolve(context.Background(), "t1",
		analyses.SourceDescriptor{Kind: analyses.SourceWebhook, WebhookPayloadID: "w1"}, analyses.AnalyzerPII)
	require.NoError(t, err)

	assert.Equal(t, KindDocuments, in.Kind)
	require.Len(t, in.Docs, 1)
	assert.Equal(t, "webhook-w1", in.Docs[0].Filename)
}

func TestResolveUnknownSourceKind(t *testing.T) {
	_, err := newResolver(&fakeDatasets{}, &fakeStore{}).Resolve(context.Background(), "t1",
		analyses.SourceDescriptor{Kind: "ftp"}, analyses.AnalyzerBias)
	require.Error(t, err)
	assert.Equal(t, analyses.FaultValidation, analyses.KindOf(err))
	assert.False(t, analyses.IsRetryable(err))
}

func TestJSONRowsRejectsScalars(t *testing.T) {
	_, err := jsonRows([]byte(`[1,2,3]`))
	require.Error(t, err)

	_, err = jsonRows([]byte(`"text"`))
	require.Error(t, err)
}

func TestExtractText(t *testing.T) {
	data := append([]byte{0x00, 0x01}, []byte("Hello world")...)
	data = append(data, 0xff, 0xfe)
	data = append(data, []byte("jane.doe@example.com")...)
	data = append(data, 0x00, 'a', 'b')

	text, err := ExtractText(data)
	require.NoError(t, err)
	assert.Equal(t, "Hello world jane.doe@example.com", text)
}

func TestExtractTextEmpty(t *testing.T) {
	_, err := ExtractText(nil)
	require.Error(t, err)

	_, err = ExtractText([]byte{0x00, 0x01, 0x02})
	require.Error(t, err)
}

func TestFamilyFallsBackToExtension(t *testing.T) {
	assert.Equal(t, "csv", family("", "data.CSV"))
	assert.Equal(t, "xlsx", family("application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", ""))
	assert.Equal(t, "text", family("text/plain; charset=utf-8", ""))
	assert.Equal(t, "json", family("application/json", "anything.bin"))
}
