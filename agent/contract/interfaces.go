package contract

import "context"

// Transport delivers an A2A envelope and returns the recipient's
// immediate response envelope. Delivery problems surface as
// ErrTransport; callers own any ledger writes.
type Transport interface {
	Send(ctx context.Context, msg Message) (Message, error)
}

// Registry resolves a vendor identifier to its capability descriptor.
// Lookups are case- and whitespace-insensitive; an unregistered
// vendor is ErrUnsupportedVendor.
type Registry interface {
	Resolve(vendorID string) (*Descriptor, error)
}

// CallPlacer initiates one outbound call and returns the
// provider-assigned call sid.
type CallPlacer interface {
	PlaceCall(ctx context.Context, to string, flowURL string) (string, error)
}

// Notifier fires the post-capture confirmation. Best effort: callers
// log a returned error but never fail the workflow on it.
type Notifier interface {
	Notify(ctx context.Context, rma *RMARecord, vendorRMAID string) error
}
