package domain

import "time"

// Status is the extraction lifecycle of an uploaded document.
//
//	processing -> ready
//	processing -> error
//
// ready and error are terminal; a document only leaves them by being deleted.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusReady      Status = "ready"
	StatusError      Status = "error"
)

// PDFMimeType is the only declared type accepted for upload.
const PDFMimeType = "application/pdf"

// Document is one uploaded file and its extraction result.
type Document struct {
	ID           string        `json:"id"`
	FileName     string        `json:"fileName"`
	MIMEType     string        `json:"mimeType"`
	Size         int64         `json:"size"`
	PageCount    int           `json:"pageCount,omitempty"`
	Transactions []Transaction `json:"transactions"`
	Status       Status        `json:"status"`
	Error        string        `json:"error,omitempty"` // set only when Status is error
	UploadDate   time.Time     `json:"uploadDate"`
}

// Clone returns a deep copy so callers never share the transaction slice with the store.
func (d Document) Clone() Document {
	txs := make([]Transaction, len(d.Transactions))
	copy(txs, d.Transactions)
	d.Transactions = txs
	return d
}

// Upload is a file offered for upload, before the acceptance filter runs.
type Upload struct {
	FileName  string
	MIMEType  string
	Data      []byte
	PageCount int
}

// IsPDF reports whether the declared type passes the acceptance filter.
func (u Upload) IsPDF() bool {
	return u.MIMEType == PDFMimeType
}
