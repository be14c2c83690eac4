package endpoint

import "net"

// ListenTCP starts a TCP Listener on addr (e.g. ":9090"), generalizing
// internal/broker's Service.Start, which calls net.Listen("tcp", s.port)
// directly. Here the network/address split is abstracted behind the
// Listener interface so Dispatcher and Supervisor code never see net.Conn.
func ListenTCP(addr string) (Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return newStreamListener(ln), nil
}

// DialTCP connects to a tcp Listener started with ListenTCP. Used by test
// clients driving the broker end-to-end.
func DialTCP(addr string) (Endpoint, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	return newStreamEndpoint(conn), nil
}
