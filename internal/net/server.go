package net

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"skoll/internal/engine"
	"skoll/internal/market"
	"skoll/internal/utils"
)

const (
	maxRecvSize        = 4 * 1024
	defaultNWorkers    = 10
	defaultConnTimeout = time.Second
)

var ErrImproperConversion = errors.New("improper type conversion")

// clientSession tracks one connected order-entry session.
type clientSession struct {
	id   uuid.UUID
	conn net.Conn
}

// clientMessage links a parsed message to the session that sent it.
type clientMessage struct {
	clientAddress string
	message       Message
}

// Server is the TCP order-entry front end. It parses wire messages, feeds the
// placer's intake and writes reports back to the owning session. The matching
// core below it performs no I/O.
type Server struct {
	address string
	port    int

	eng    *engine.Engine
	placer *engine.Placer
	clock  utils.Clock

	pool   utils.WorkerPool
	cancel context.CancelFunc

	sessionsLock sync.Mutex
	sessions     map[string]*clientSession

	// Order identity to owning session, so outcomes find their way back.
	ownersLock sync.Mutex
	owners     map[uint64]string

	clientMessages chan clientMessage
}

func NewServer(address string, port, workers int, eng *engine.Engine, placer *engine.Placer, clock utils.Clock) *Server {
	if workers <= 0 {
		workers = defaultNWorkers
	}
	return &Server{
		address:        address,
		port:           port,
		eng:            eng,
		placer:         placer,
		clock:          clock,
		pool:           utils.NewWorkerPool(workers),
		sessions:       make(map[string]*clientSession),
		owners:         make(map[uint64]string),
		clientMessages: make(chan clientMessage, 1),
	}
}

func (s *Server) Shutdown() {
	log.Info().Msg("server shutting down")
	s.cancel()
}

func (s *Server) Run(ctx context.Context) {
	defer s.Shutdown()

	ctx, s.cancel = context.WithCancel(ctx)
	t, ctx := tomb.WithContext(ctx)

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", fmt.Sprintf("%s:%d", s.address, s.port))
	if err != nil {
		log.Error().Err(err).Msg("unable to start listener")
		return
	}
	// Closing the listener on shutdown unblocks the accept loop below.
	t.Go(func() error {
		<-ctx.Done()
		if err := listener.Close(); err != nil {
			log.Error().Err(err).Msg("unable to close listener")
		}
		return nil
	})

	s.pool.Setup(t, s.handleConnection)

	// The placer's drain loop is the single intake consumer; its sink routes
	// outcomes back to the submitting session.
	t.Go(func() error {
		return s.placer.Run(t, s.deliver)
	})

	t.Go(func() error {
		return s.sessionHandler(t)
	})

	log.Info().Str("address", s.address).Int("port", s.port).Msg("server running")

	for {
		select {
		case <-ctx.Done():
			return
		default:
			conn, err := listener.Accept()
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Error().Err(err).Msg("error accepting client")
				continue
			}

			session := s.addClientSession(conn)
			log.Info().
				Str("address", conn.RemoteAddr().String()).
				Str("session", session.id.String()).
				Msg("new client added")

			s.pool.AddTask(conn)
		}
	}
}

// sessionHandler consumes parsed client messages and actions them.
func (s *Server) sessionHandler(t *tomb.Tomb) error {
	for {
		select {
		case <-t.Dying():
			return nil
		case cm := <-s.clientMessages:
			s.handleMessage(cm)
		}
	}
}

func (s *Server) handleMessage(cm clientMessage) {
	switch m := cm.message.(type) {
	case NewOrderMessage:
		s.handleNewOrder(cm.clientAddress, m)
	case CancelOrderMessage:
		resp := s.placer.Cancel(market.Symbol(m.Symbol), m.OrderID)
		s.writeOutcomeReport(cm.clientAddress, m.OrderID, resp)
	case SummaryMessage:
		s.handleSummary(cm.clientAddress, m)
	case BaseMessage:
		// Heartbeat keepalive; nothing to action.
	default:
		log.Warn().
			Int("type", int(cm.message.GetType())).
			Str("address", cm.clientAddress).
			Msg("unhandled message type")
	}
}

func (s *Server) handleNewOrder(addr string, m NewOrderMessage) {
	o, err := m.Order(s.eng.Registry())
	if err != nil {
		s.writeReports(addr, []*Report{{
			Kind:      RejectionReport,
			Timestamp: uint64(s.clock.Now().UnixNano()),
			Text:      err.Error(),
		}})
		return
	}

	// Ownership is registered before the drain loop can see the order, so
	// the outcome cannot race past us.
	err = s.placer.EnqueueWith(o, func(id uint64) {
		s.setOwner(id, addr)
	})
	if err != nil {
		// A failed enqueue never invoked the callback, so no owner to clear.
		s.writeReports(addr, []*Report{{
			Kind:      RejectionReport,
			Timestamp: uint64(s.clock.Now().UnixNano()),
			Text:      err.Error(),
		}})
		return
	}
}

func (s *Server) handleSummary(addr string, m SummaryMessage) {
	book, ok := s.eng.Book(market.Symbol(m.Symbol))
	if !ok {
		s.writeReports(addr, []*Report{{
			Kind:      RejectionReport,
			Timestamp: uint64(s.clock.Now().UnixNano()),
			Text:      engine.ErrBookNotFound.Error(),
		}})
		return
	}

	nBuys, buyQty, nSells, sellQty := book.Depth()
	text := fmt.Sprintf("%s: %d buys (%d qty), %d sells (%d qty)",
		m.Symbol, nBuys, buyQty, nSells, sellQty)
	if bid, ok := book.BestBid(); ok {
		text += fmt.Sprintf(", best bid %s", bid)
	}
	if ask, ok := book.BestAsk(); ok {
		text += fmt.Sprintf(", best ask %s", ask)
	}
	if mark, ok := s.eng.Registry().ReferencePrice(market.Symbol(m.Symbol)); ok {
		text += fmt.Sprintf(", reference %s", mark.Price)
	}

	s.writeReports(addr, []*Report{{
		Kind:      SummaryReport,
		Timestamp: uint64(s.clock.Now().UnixNano()),
		Text:      text,
	}})
}

// deliver routes a processed order's outcome back to its session. Exactly one
// response arrives per order, so ownership is released afterwards.
func (s *Server) deliver(o *engine.Order, resp engine.Response) {
	addr, ok := s.takeOwner(o.ID())
	if !ok {
		// Replayed or directly-submitted order; nothing to notify.
		return
	}
	reports := reportsFor(o, resp, uint64(s.clock.Now().UnixNano()))
	s.writeReports(addr, reports)
}

func (s *Server) writeOutcomeReport(addr string, orderID uint64, resp engine.Response) {
	report := &Report{
		Timestamp: uint64(s.clock.Now().UnixNano()),
		OrderID:   orderID,
	}
	switch resp.Kind {
	case engine.Cancelled:
		report.Kind = CancelReport
	default:
		report.Kind = RejectionReport
		report.Text = resp.Reason
	}
	s.writeReports(addr, []*Report{report})
}

func (s *Server) writeReports(addr string, reports []*Report) {
	if len(reports) == 0 {
		return
	}

	s.sessionsLock.Lock()
	defer s.sessionsLock.Unlock()

	session, ok := s.sessions[addr]
	if !ok {
		log.Warn().Str("address", addr).Msg("report for departed client dropped")
		return
	}
	for _, r := range reports {
		if _, err := session.conn.Write(r.Serialize()); err != nil {
			log.Error().Err(err).Str("address", addr).Msg("unable to send report")
			delete(s.sessions, addr)
			return
		}
	}
}

// handleConnection is a short-lived worker method which reads the next
// message off the connection, parses it and passes it to sessionHandler. If
// the connection dies the session is cleaned up. Any error returned from here
// is fatal to the pool.
func (s *Server) handleConnection(t *tomb.Tomb, task any) error {
	conn, ok := task.(net.Conn)
	if !ok {
		return ErrImproperConversion
	}

	if err := conn.SetReadDeadline(time.Now().Add(defaultConnTimeout)); err != nil {
		log.Error().
			Str("address", conn.RemoteAddr().String()).
			Err(err).
			Msg("failed setting deadline for connection")
		return nil
	}

	buffer := make([]byte, maxRecvSize)
	select {
	case <-t.Dying():
		return nil
	default:
		n, err := conn.Read(buffer)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				// Idle session; requeue and keep listening.
				s.pool.AddTask(conn)
				return nil
			}
			log.Info().
				Err(err).
				Str("address", conn.RemoteAddr().String()).
				Msg("client disconnected")
			s.deleteClientSession(conn)
			return nil
		}

		message, err := parseMessage(buffer[:n])
		if err != nil {
			log.Error().
				Err(err).
				Str("address", conn.RemoteAddr().String()).
				Msg("error parsing message")
			s.deleteClientSession(conn)
			return nil
		}

		s.clientMessages <- clientMessage{
			message:       message,
			clientAddress: conn.RemoteAddr().String(),
		}

		// Push the client connection back to handle the next message.
		s.pool.AddTask(conn)
	}
	return nil
}

func (s *Server) addClientSession(conn net.Conn) *clientSession {
	s.sessionsLock.Lock()
	defer s.sessionsLock.Unlock()

	session := &clientSession{id: uuid.New(), conn: conn}
	s.sessions[conn.RemoteAddr().String()] = session
	return session
}

func (s *Server) deleteClientSession(conn net.Conn) {
	s.sessionsLock.Lock()
	defer s.sessionsLock.Unlock()

	delete(s.sessions, conn.RemoteAddr().String())
	if err := conn.Close(); err != nil {
		log.Error().Str("address", conn.RemoteAddr().String()).Err(err).Msg("closing connection")
	}
}

func (s *Server) setOwner(orderID uint64, addr string) {
	s.ownersLock.Lock()
	defer s.ownersLock.Unlock()
	s.owners[orderID] = addr
}

func (s *Server) takeOwner(orderID uint64) (string, bool) {
	s.ownersLock.Lock()
	defer s.ownersLock.Unlock()
	addr, ok := s.owners[orderID]
	delete(s.owners, orderID)
	return addr, ok
}
