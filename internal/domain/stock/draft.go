package stock

import (
	"strings"
	"time"

	"github.com/erp/stockflow/internal/domain/shared"
	"github.com/google/uuid"
)

// DraftStatus is the lifecycle status of a transaction draft
type DraftStatus string

const (
	DraftStatusOpen      DraftStatus = "open"
	DraftStatusSubmitted DraftStatus = "submitted"
)

// Draft is a transaction being prepared by one user: header, editable lines and the
// last validator verdict. Submitted drafts are closed to further edits.
type Draft struct {
	ID          uuid.UUID       `json:"id"`
	Header      Header          `json:"header"`
	Lines       *LineItemEditor `json:"lines"`
	Status      DraftStatus     `json:"status"`
	LastVerdict *Verdict        `json:"last_verdict,omitempty"`
	Receipt     *SubmitReceipt  `json:"receipt,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// NewDraft creates an open draft with an empty line set
func NewDraft(header Header) (*Draft, error) {
	if !header.Type.IsValid() {
		return nil, shared.ErrInvalidTxType
	}
	header.References = header.References.Normalize()
	header.WarehouseID = strings.TrimSpace(header.WarehouseID)
	if header.Date == "" {
		header.Date = time.Now().Format("2006-01-02")
	}

	now := time.Now()
	return &Draft{
		ID:        uuid.New(),
		Header:    header,
		Lines:     NewLineItemEditor(header.Type),
		Status:    DraftStatusOpen,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// IsOpen returns true if the draft still accepts edits
func (d *Draft) IsOpen() bool {
	return d.Status == DraftStatusOpen
}

// EnsureOpen returns ErrDraftClosed for submitted drafts
func (d *Draft) EnsureOpen() error {
	if !d.IsOpen() {
		return shared.ErrDraftClosed
	}
	return nil
}

// ApplyReferences records a new reference selection and replaces the line set
// with lines sourced from it. Quantities always restart at zero.
func (d *Draft) ApplyReferences(refs References, warehouseID string, lines []LineItem) {
	d.UpdateSelection(refs, warehouseID)
	d.Lines.ReplaceLineSet(lines)
}

// UpdateSelection records references and warehouse without touching the line set.
// Direct exports use it since their lines are entered by hand.
func (d *Draft) UpdateSelection(refs References, warehouseID string) {
	d.Header.References = refs.Normalize()
	d.Header.WarehouseID = strings.TrimSpace(warehouseID)
	d.LastVerdict = nil
	d.touch()
}

// RecordVerdict stores the verdict of the latest submit attempt
func (d *Draft) RecordVerdict(v Verdict) {
	d.LastVerdict = &v
	if v.IsValid() {
		d.Lines.MarkValidated(v.Revision)
	}
	d.touch()
}

// MarkSubmitted closes the draft with the backend receipt
func (d *Draft) MarkSubmitted(receipt *SubmitReceipt) {
	d.Status = DraftStatusSubmitted
	d.Receipt = receipt
	d.touch()
}

// Touch updates the modification timestamp
func (d *Draft) Touch() {
	d.touch()
}

func (d *Draft) touch() {
	d.UpdatedAt = time.Now()
}
