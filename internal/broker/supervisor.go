package broker

import (
	"fmt"
	"strings"
	"sync"

	"github.com/tenzoki/wotbroker/internal/codec"
	"github.com/tenzoki/wotbroker/internal/endpoint"
	"github.com/tenzoki/wotbroker/internal/publisher"
	"github.com/tenzoki/wotbroker/internal/thing"
)

// lifecycleState is the broker's CREATED -> RUNNING -> STOPPING -> STOPPED
// state machine. Transitions are one-way.
type lifecycleState int

const (
	created lifecycleState = iota
	running
	stopping
	stopped
)

// Supervisor owns every transport listener, every Thing's Dispatcher and
// Executor, and the shared Thing registry and event publisher, generalizing
// the teacher's cmd/orchestrator/main.go lifecycle (context cancellation,
// sync.WaitGroup, SIGINT/SIGTERM handling in main, not here) into a single
// reusable type callable from both cmd/brokerd and tests.
type Supervisor struct {
	mu    sync.Mutex
	state lifecycleState
	debug bool

	registry *thing.Registry
	pub      *publisher.Publisher
	codecs   *codec.Registry

	netListeners  []endpoint.Listener
	connEndpoints []endpoint.Endpoint
	inprocClients map[string]endpoint.Endpoint
	dispatchers   []*Dispatcher

	wg sync.WaitGroup
}

// NewSupervisor returns a Supervisor in state CREATED.
func NewSupervisor(debug bool) *Supervisor {
	return &Supervisor{
		state:         created,
		debug:         debug,
		registry:      thing.NewRegistry(),
		pub:           publisher.New(debug),
		codecs:        codec.NewRegistry(),
		inprocClients: make(map[string]endpoint.Endpoint),
	}
}

// Registry returns the Thing registry, for callers that need to inspect
// attached Things outside the Supervisor (e.g. a status endpoint).
func (s *Supervisor) Registry() *thing.Registry { return s.registry }

// InprocClient returns the client-facing side of an "inproc" transport
// bound by Start, keyed by the address portion of its URI. Used by tests
// that want an in-process client without a real socket.
func (s *Supervisor) InprocClient(name string) (endpoint.Endpoint, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ep, ok := s.inprocClients[name]
	return ep, ok
}

// Start binds every transport in transports, attaches every Thing in
// things, and spawns their Dispatcher/Executor pairs. Only valid from
// CREATED.
func (s *Supervisor) Start(things map[string]thing.Thing, transports []string) error {
	s.mu.Lock()
	if s.state != created {
		s.mu.Unlock()
		return newOpError(Fatal, "Start", fmt.Errorf("supervisor already started"))
	}
	s.mu.Unlock()

	for id, t := range things {
		rec, err := s.registry.Attach(id, t)
		if err != nil {
			return newOpError(Fatal, "Start", err)
		}
		s.pub.BindThing(id, t)
		s.spawnThing(rec)
	}

	for _, uri := range transports {
		if err := s.bindTransport(uri); err != nil {
			return newOpError(Fatal, "Start", fmt.Errorf("transport %q: %w", uri, err))
		}
	}

	s.mu.Lock()
	s.state = running
	s.mu.Unlock()
	return nil
}

// Attach adds a Thing at runtime. Only valid in RUNNING; Listeners discover
// it through the shared registry on their next lookup.
func (s *Supervisor) Attach(id string, t thing.Thing) error {
	s.mu.Lock()
	st := s.state
	s.mu.Unlock()
	if st != running {
		return newOpError(Fatal, "Attach", fmt.Errorf("attach only permitted while running, state=%d", st))
	}

	rec, err := s.registry.Attach(id, t)
	if err != nil {
		return newOpError(Fatal, "Attach", err)
	}
	s.pub.BindThing(id, t)
	s.spawnThing(rec)
	return nil
}

// Stop transitions RUNNING -> STOPPING, closes every transport and
// connection endpoint (unblocking any Listener or Dispatcher suspended on a
// send/receive), stops every Dispatcher, and waits for every goroutine this
// Supervisor spawned to return before transitioning to STOPPED.
//
// The teacher's source material closes its listener and relies on an
// injected synthetic EXIT frame to unblock connections already accepted;
// here every accepted Endpoint is tracked and closed directly, which
// unblocks a pending RecvMultipart with ErrClosed just as reliably and
// needs no transient client.
func (s *Supervisor) Stop() error {
	s.mu.Lock()
	if s.state != running {
		s.mu.Unlock()
		return newOpError(Fatal, "Stop", fmt.Errorf("supervisor not running, state=%d", s.state))
	}
	s.state = stopping
	netListeners := s.netListeners
	connEndpoints := s.connEndpoints
	dispatchers := s.dispatchers
	s.mu.Unlock()

	for _, nl := range netListeners {
		nl.Close()
	}
	for _, ep := range connEndpoints {
		ep.Close()
	}
	for _, d := range dispatchers {
		d.Stop()
	}
	for _, rec := range s.registry.All() {
		rec.Close()
	}

	s.wg.Wait()

	s.mu.Lock()
	s.state = stopped
	s.mu.Unlock()
	return nil
}

func (s *Supervisor) spawnThing(rec *thing.Record) {
	d := NewDispatcher(rec, s.debug)
	e := NewExecutor(rec, s.codecs, s.debug)

	s.mu.Lock()
	s.dispatchers = append(s.dispatchers, d)
	s.mu.Unlock()

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		e.Run()
	}()
	go func() {
		defer s.wg.Done()
		d.Run()
	}()
}

// bindTransport binds one "scheme://address" transport URI.
func (s *Supervisor) bindTransport(uri string) error {
	scheme, addr, ok := strings.Cut(uri, "://")
	if !ok {
		return fmt.Errorf("malformed transport uri %q, expected scheme://address", uri)
	}

	switch scheme {
	case "tcp":
		nl, err := endpoint.ListenTCP(addr)
		if err != nil {
			return err
		}
		s.trackNetListener(nl)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.acceptLoop(nl)
		}()
	case "ipc":
		nl, err := endpoint.ListenIPC(addr)
		if err != nil {
			return err
		}
		s.trackNetListener(nl)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.acceptLoop(nl)
		}()
	case "inproc":
		brokerSide, clientSide := endpoint.NewInprocPair(addr+"-broker", addr+"-client")
		s.mu.Lock()
		s.inprocClients[addr] = clientSide
		s.mu.Unlock()
		s.spawnConnListener(brokerSide)
	default:
		return fmt.Errorf("unsupported transport scheme %q", scheme)
	}
	return nil
}

func (s *Supervisor) trackNetListener(nl endpoint.Listener) {
	s.mu.Lock()
	s.netListeners = append(s.netListeners, nl)
	s.mu.Unlock()
}

// acceptLoop spawns one Listener per accepted connection, until nl is
// closed by Stop.
func (s *Supervisor) acceptLoop(nl endpoint.Listener) {
	for {
		ep, err := nl.Accept()
		if err != nil {
			return
		}
		s.spawnConnListener(ep)
	}
}

func (s *Supervisor) spawnConnListener(ep endpoint.Endpoint) {
	s.mu.Lock()
	s.connEndpoints = append(s.connEndpoints, ep)
	s.mu.Unlock()

	l := NewListener(ep, s.registry, s.debug)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		l.Run()
	}()
}
