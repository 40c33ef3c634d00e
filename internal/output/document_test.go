package output

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StinkyLord/cad-bom-builder/internal/model"
)

// ============================================================
// Persistence document
// ============================================================

// TestDocument_RoundTrip verifies identity keys and display fields survive
// a write and load.
func TestDocument_RoundTrip(t *testing.T) {
	doc := makeTestDocument()
	path := filepath.Join(t.TempDir(), "bom.json")
	require.NoError(t, WriteDocument(doc, path))

	loaded, err := LoadDocument(path)
	require.NoError(t, err)
	assert.Empty(t, loaded.Unlocatable)
	assert.Equal(t, doc.SerialNumber, loaded.SerialNumber)
	assert.Equal(t, doc.Source, loaded.Source)
	require.Len(t, loaded.Records, len(doc.Records))

	for i, r := range makeTestRecords() {
		got := loaded.Records[i]
		assert.Equal(t, r.Key(), got.IdentityKey, "record %d", i)
		assert.Equal(t, r.Classification, got.Classification, "record %d", i)
		assert.Equal(t, r.Material, got.Material, "record %d", i)
	}
	assert.Equal(t, doc.Summary, loaded.Summary)
}

// TestDocument_StoredShape verifies the JSON field names of a stored record.
func TestDocument_StoredShape(t *testing.T) {
	data, err := json.Marshal(makeTestDocument().Records[2])
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "Болт М8", raw["name"])
	assert.Equal(t, "ГОСТ 7798", raw["marking"])
	assert.Equal(t, false, raw["bodyBased"])
	assert.Equal(t, "C:/models/bolt.m3d", raw["filePath"])
	assert.EqualValues(t, 1, raw["instanceIndex"])
	assert.Equal(t, "purchased", raw["classification"])
}

func TestNewDocument_EmptyPass(t *testing.T) {
	doc := NewDocument("", nil, nil, "1")
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"records":[]`)
	assert.True(t, strings.HasPrefix(doc.SerialNumber, "urn:uuid:"))
}

// ============================================================
// Malformed stored records
// ============================================================

// TestLoadDocument_ReportsUnlocatable verifies incomplete records are
// reported, not fatal, and the valid ones still load.
func TestLoadDocument_ReportsUnlocatable(t *testing.T) {
	doc, err := ParseDocument([]byte(`{
  "serialNumber": "urn:uuid:00000000-0000-0000-0000-000000000000",
  "records": [
    {"name": "Панель", "marking": "ДТ.001", "instanceIndex": 0, "classification": "sheet", "mass": 3.2},
    {"name": "Болт М8", "marking": "ГОСТ 7798", "classification": "purchased"},
    {"marking": "ДТ.009", "instanceIndex": 0, "classification": "part"},
    {"name": "Шайба", "instanceIndex": -1, "classification": "purchased"},
    {"name": "Рама", "instanceIndex": 0, "classification": "assembly"},
    "not a record",
    {"name": "Косынка", "bodyBased": true, "instanceIndex": 0, "classification": "sheet"}
  ]
}`))
	require.NoError(t, err)

	require.Len(t, doc.Records, 7, "every stored entry keeps its position")
	assert.Equal(t, "Панель", doc.Records[0].Name)
	assert.Equal(t, "Болт М8", doc.Records[1].Name)
	assert.Equal(t, "Косынка", doc.Records[6].Name)

	require.Len(t, doc.Unlocatable, 5)
	positions := make([]int, 0, len(doc.Unlocatable))
	for _, u := range doc.Unlocatable {
		positions = append(positions, u.Position)
		assert.NotEmpty(t, u.Reason)
	}
	assert.Equal(t, []int{1, 2, 3, 4, 5}, positions)
	assert.Equal(t, "Болт М8", doc.Unlocatable[0].Name)
	assert.Equal(t, model.ErrKeyNoIndex.Error(), doc.Unlocatable[0].Reason)

	for _, i := range []int{0, 6} {
		_, err := doc.Record(i)
		assert.NoError(t, err, "record %d", i)
	}
	for _, i := range positions {
		_, err := doc.Record(i)
		assert.ErrorIs(t, err, ErrRecordUnlocatable, "record %d", i)
	}
	_, err = doc.Record(1)
	assert.ErrorIs(t, err, model.ErrKeyNoIndex)

	assert.True(t, doc.Records[1].Readable(), "an incomplete key still decodes")
	assert.False(t, doc.Records[4].Readable())
	assert.False(t, doc.Records[5].Readable())
	assert.Len(t, doc.Rows(), 5, "entries that do not decode are left out of the rows")

	// Without a stored summary it is rebuilt from the loaded records.
	require.NotNil(t, doc.Summary)
	assert.Len(t, doc.Summary.Sheet, 0, "records without material do not count")
}

// TestLoadDocument_PositionsSurviveUnlocatable verifies a record after an
// unlocatable one is still found at its stored position and still counts in
// the totals.
func TestLoadDocument_PositionsSurviveUnlocatable(t *testing.T) {
	doc, err := ParseDocument([]byte(`{
  "records": [
    {"name": "", "instanceIndex": 0, "classification": "sheet", "material": "Лист 2 мм Ст3", "mass": 1.5},
    {"name": "Болт", "instanceIndex": 0, "classification": "purchased"}
  ]
}`))
	require.NoError(t, err)

	require.Len(t, doc.Unlocatable, 1)
	assert.Equal(t, 0, doc.Unlocatable[0].Position)

	_, err = doc.Record(0)
	assert.ErrorIs(t, err, ErrRecordUnlocatable)
	assert.ErrorIs(t, err, model.ErrKeyNoName)

	r, err := doc.Record(1)
	require.NoError(t, err)
	assert.Equal(t, "Болт", r.Name)

	require.Len(t, doc.Summary.Sheet, 1)
	assert.Equal(t, 1.5, doc.Summary.Sheet[0].Mass)
}

func TestLoadDocument_BrokenEnvelope(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bom.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"records": {}}`), 0644))
	_, err := LoadDocument(path)
	assert.Error(t, err)

	_, err = LoadDocument(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestDocument_RecordAndRows(t *testing.T) {
	doc := makeTestDocument()
	r, err := doc.Record(3)
	require.NoError(t, err)
	assert.Equal(t, "Труба", r.Name)

	_, err = doc.Record(len(doc.Records))
	assert.ErrorIs(t, err, ErrNoSuchRecord)

	rows := doc.Rows()
	require.Len(t, rows, len(doc.Records))
	assert.Equal(t, 1, rows[2].InstanceIndex)
	assert.Nil(t, rows[0].Object)
	assert.Equal(t, model.Aggregate(makeTestRecords()), model.Aggregate(rows))
}
