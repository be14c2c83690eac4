// Package endpoint provides the transport abstraction the rest of the
// broker is built on: an Endpoint supports multipart send/receive and is
// address-aware (the first frame identifies sender on receive, receiver on
// send). Endpoints neither parse nor synthesize msg-type or msg-id; that is
// internal/frame's job.
//
// Four implementations are provided: inproc (loopback, used for the
// Dispatcher-to-Executor tunnel), ipc (local unix socket), tcp (network),
// and pubsub (publish-only, backing internal/publisher).
package endpoint

import "errors"

// ErrClosed is returned by RecvMultipart/SendMultipart once Close has been
// called on the endpoint.
var ErrClosed = errors.New("endpoint: closed")

// errSendNotSupported is returned by a pubsub subscriber's SendMultipart;
// subscribers are receive-only, publishing goes through PubSub.Publish.
var errSendNotSupported = errors.New("endpoint: send not supported on subscriber endpoint")

// Endpoint is an addressable transport handle supporting multipart
// send/receive.
type Endpoint interface {
	// SendMultipart writes one multipart frame. The first element names the
	// receiver at the protocol level; every implementation here has a single
	// peer and carries it through unchanged rather than routing on it.
	SendMultipart(parts [][]byte) error

	// RecvMultipart blocks until one multipart frame is available or the
	// endpoint is closed. The first element identifies the sender.
	RecvMultipart() ([][]byte, error)

	// Close releases the endpoint's resources. Close is idempotent.
	Close() error

	// Address returns a name identifying the endpoint, used in log messages:
	// the inproc/pubsub name for those endpoints, the remote peer's address
	// for tcp and ipc connections.
	Address() string
}

// Listener accepts inbound connections and yields one Endpoint per peer.
// tcp and ipc implement Listener; inproc and pubsub do not (they have no
// accept step).
type Listener interface {
	Accept() (Endpoint, error)
	Close() error
	Addr() string
}
