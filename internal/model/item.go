package model

import "time"

// Record is a product document as the Record Store holds it.
// Optional fields are pointers: a document may lack any of them, and
// createdAt stays unset until the server commits its timestamp.
type Record struct {
	ID          string     `json:"-"`
	Text        *string    `json:"text,omitempty"`
	IsPurchased *bool      `json:"isPurchased,omitempty"`
	CreatedAt   *time.Time `json:"createdAt,omitempty"`
}

// Row is the view projection of a Record at the last snapshot.
type Row struct {
	ID          string
	Text        string
	IsPurchased bool
	CreatedAt   *time.Time
}

// RowFromRecord coerces missing fields: text to "", isPurchased to false,
// createdAt to nil.
func RowFromRecord(r Record) Row {
	row := Row{ID: r.ID}
	if r.Text != nil {
		row.Text = *r.Text
	}
	if r.IsPurchased != nil {
		row.IsPurchased = *r.IsPurchased
	}
	if r.CreatedAt != nil && !r.CreatedAt.IsZero() {
		t := *r.CreatedAt
		row.CreatedAt = &t
	}
	return row
}

// Rows maps a whole snapshot. The result is always a fresh slice.
func Rows(records []Record) []Row {
	out := make([]Row, 0, len(records))
	for _, r := range records {
		out = append(out, RowFromRecord(r))
	}
	return out
}

// Stats counts purchased and pending rows for headers.
func Stats(rows []Row) (purchased, pending int) {
	for _, r := range rows {
		if r.IsPurchased {
			purchased++
		} else {
			pending++
		}
	}
	return
}

// Ptr is a small helper for building Records by hand.
func Ptr[T any](v T) *T { return &v }
