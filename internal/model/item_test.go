package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRowFromRecord_CoercesMissingFields(t *testing.T) {
	row := RowFromRecord(Record{ID: "a"})

	assert.Equal(t, "a", row.ID)
	assert.Equal(t, "", row.Text)
	assert.False(t, row.IsPurchased)
	assert.Nil(t, row.CreatedAt)
}

func TestRowFromRecord_ZeroTimestampIsUnresolved(t *testing.T) {
	row := RowFromRecord(Record{ID: "a", CreatedAt: Ptr(time.Time{})})
	assert.Nil(t, row.CreatedAt)
}

func TestRowFromRecord_CopiesPresentFields(t *testing.T) {
	ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	row := RowFromRecord(Record{ID: "b", Text: Ptr("milk"), IsPurchased: Ptr(true), CreatedAt: &ts})

	assert.Equal(t, Row{ID: "b", Text: "milk", IsPurchased: true, CreatedAt: &ts}, row)
}

func TestRows_KeepsSnapshotOrder(t *testing.T) {
	recs := []Record{{ID: "3"}, {ID: "1"}, {ID: "2"}}
	rows := Rows(recs)

	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"3", "1", "2"}, ids)
	assert.NotNil(t, Rows(nil))
}

func TestStats(t *testing.T) {
	p, n := Stats([]Row{{IsPurchased: true}, {}, {}})
	assert.Equal(t, 1, p)
	assert.Equal(t, 2, n)
}
