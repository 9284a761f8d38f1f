package domain

type InvoiceStatus string

const (
	InvoiceStatusPending   InvoiceStatus = "PENDING"
	InvoiceStatusPaid      InvoiceStatus = "PAID"
	InvoiceStatusExpired   InvoiceStatus = "EXPIRED"
	InvoiceStatusCancelled InvoiceStatus = "CANCELLED"
)

// IsTerminal reports whether no further transition is expected from s.
func (s InvoiceStatus) IsTerminal() bool {
	switch s {
	case InvoiceStatusPaid, InvoiceStatusExpired, InvoiceStatusCancelled:
		return true
	default:
		return false
	}
}

// Invoice is the provider-side payment request minted for one purchase attempt.
type Invoice struct {
	ID     string        `json:"invoiceId"`
	URL    string        `json:"invoiceUrl"`
	Status InvoiceStatus `json:"status"`
}

// InvoiceStatusReport is a single status observation. It is never cached.
type InvoiceStatusReport struct {
	InvoiceID string        `json:"invoiceId"`
	Status    InvoiceStatus `json:"status"`
}
