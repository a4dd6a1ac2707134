// pkg/invoice/draft.go

package invoice

import (
	"errors"
	"strconv"
	"time"

	"github.com/invoicing-desk/pkg/picture"
)

// DefaultDueDays is how far after the issue date a new draft falls due.
const DefaultDueDays = 15

var (
	ErrEmptyDescription = errors.New("invoice: item description is empty")
	ErrItemIndex        = errors.New("invoice: item index out of range")
)

// Draft is an invoice being edited. It carries images that only live in
// memory next to the record that gets persisted. Mutators return a copy so
// a draft can be handed between commands without shared state.
type Draft struct {
	Record    Record
	Logo      *picture.Bitmap
	Signature *picture.Bitmap
}

// NewDraft starts an invoice dated today.
func NewDraft(number int, today time.Time) Draft {
	issued := NewDate(today)
	return Draft{
		Record: Record{
			InvoiceNumber: strconv.Itoa(number),
			Date:          issued,
			DueDate:       Date{issued.AddDate(0, 0, DefaultDueDays)},
			Items:         []Item{},
		},
	}
}

func (d Draft) clone() Draft {
	items := make([]Item, len(d.Record.Items))
	copy(items, d.Record.Items)
	d.Record.Items = items
	return d
}

// WithItem appends a line item.
func (d Draft) WithItem(it Item) (Draft, error) {
	if it.Description == "" {
		return d, ErrEmptyDescription
	}
	out := d.clone()
	out.Record.Items = append(out.Record.Items, it)
	return out, nil
}

// WithoutItem removes the line item at index i.
func (d Draft) WithoutItem(i int) (Draft, error) {
	if i < 0 || i >= len(d.Record.Items) {
		return d, ErrItemIndex
	}
	out := d.clone()
	out.Record.Items = append(out.Record.Items[:i], out.Record.Items[i+1:]...)
	return out, nil
}

// WithLogo attaches a logo. path is remembered in the metadata when non-empty.
func (d Draft) WithLogo(b *picture.Bitmap, path string) Draft {
	out := d.clone()
	out.Logo = b
	out.Record.LogoPath = nil
	if path != "" {
		out.Record.LogoPath = &path
	}
	return out
}

// WithSignature attaches a signature image.
func (d Draft) WithSignature(b *picture.Bitmap) Draft {
	out := d.clone()
	out.Signature = b
	return out
}

// Metadata returns the record to persist. Images are never serialized.
func (d Draft) Metadata() Record {
	rec := d.clone().Record
	if rec.Items == nil {
		rec.Items = []Item{}
	}
	rec.SignatureInPDFOnly = d.Signature != nil
	return rec
}
