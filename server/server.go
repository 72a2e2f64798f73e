package server

import (
	"bufio"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/Polqt/bolodb/bqip"
	"github.com/Polqt/bolodb/internal/boolog"
	"github.com/Polqt/bolodb/internal/config"
	"github.com/Polqt/bolodb/internal/ingest"
	"github.com/Polqt/bolodb/internal/netio"
	"github.com/Polqt/bolodb/query"
	"github.com/Polqt/bolodb/tsdb"
)

// Server owns the query and metrics listener sockets, each driven by its
// own accept loop on a netio.Poller goroutine. All database access funnels
// through db, whose own mutex is the spec's single database-wide lock;
// each accepted connection then gets one short-lived goroutine that reads
// exactly one BQIP frame, services it, writes one response, and closes —
// the idiomatic-Go substitute for fdpoll.c's resumable per-fd handler,
// since "one goroutine per connection, one mutex around the database" is
// how this shape is normally written in Go rather than a hand-rolled
// partial-read state machine.
type Server struct {
	db  *tsdb.DB
	log *boolog.Log

	queryFD   int
	metricsFD int

	queryPool   chan struct{}
	metricsPool chan struct{}

	queryConns   int64
	metricsConns int64

	wg sync.WaitGroup
}

// New binds both listener sockets per cfg and returns an unstarted Server.
func New(cfg *config.Config, db *tsdb.DB, log *boolog.Log) (*Server, error) {
	qfd, err := Bind(cfg.Query.Addr, 128)
	if err != nil {
		return nil, fmt.Errorf("server: bind query listener: %w", err)
	}
	mfd, err := Bind(cfg.Metrics.Addr, 128)
	if err != nil {
		_ = closeFD(qfd)
		return nil, fmt.Errorf("server: bind metrics listener: %w", err)
	}

	return &Server{
		db:          db,
		log:         log,
		queryFD:     qfd,
		metricsFD:   mfd,
		queryPool:   make(chan struct{}, cfg.Query.MaxConns),
		metricsPool: make(chan struct{}, cfg.Metrics.MaxConns),
	}, nil
}

// Run starts both accept loops and blocks until stop reports true.
func (s *Server) Run(stop func() bool) error {
	s.wg.Add(2)
	var firstErr error
	var mu sync.Mutex

	go func() {
		defer s.wg.Done()
		if err := s.acceptLoop(s.queryFD, s.queryPool, &s.queryConns, s.handleQuery, stop); err != nil {
			mu.Lock()
			if firstErr == nil {
				firstErr = err
			}
			mu.Unlock()
		}
	}()
	go func() {
		defer s.wg.Done()
		if err := s.acceptLoop(s.metricsFD, s.metricsPool, &s.metricsConns, s.handleMeasurement, stop); err != nil {
			mu.Lock()
			if firstErr == nil {
				firstErr = err
			}
			mu.Unlock()
		}
	}()

	s.wg.Wait()
	return firstErr
}

type connHandler func(conn net.Conn)

// acceptLoop watches the listening fd for readiness via a netio.Poller and
// spawns one connection goroutine per accepted socket, bounded by pool's
// capacity (a blocked send backpressures accept() until a slot frees up).
func (s *Server) acceptLoop(listenFD int, pool chan struct{}, active *int64, handle connHandler, stop func() bool) error {
	poller, err := netio.New(1)
	if err != nil {
		return err
	}
	defer poller.Close()

	err = poller.Watch(listenFD, netio.Read, func(fd int) (bool, error) {
		nfd, _, aerr := doAccept(fd)
		if aerr != nil {
			return false, nil // spurious wakeup or transient accept error
		}

		select {
		case pool <- struct{}{}:
		default:
			_ = closeFD(nfd)
			return false, nil
		}

		atomic.AddInt64(active, 1)
		conn, cerr := net.FileConn(newOSFile(nfd))
		if cerr != nil {
			<-pool
			atomic.AddInt64(active, -1)
			return false, nil
		}

		go func() {
			defer func() {
				conn.Close()
				<-pool
				atomic.AddInt64(active, -1)
			}()
			handle(conn)
		}()
		return false, nil
	})
	if err != nil {
		return err
	}

	return poller.Run(stop)
}

// handleQuery services exactly one BQIP Q or P frame on conn, per the
// "one request per connection" invariant.
func (s *Server) handleQuery(conn net.Conn) {
	r := bufio.NewReader(conn)
	req, err := bqip.ReadRequest(r)
	if err != nil {
		_ = bqip.WriteError(conn, err.Error())
		return
	}

	switch req.Type {
	case bqip.Query, bqip.Plan:
		s.respondQuery(conn, req.Payload)
	default:
		_ = bqip.WriteError(conn, "unexpected request type on query listener")
	}
}

// handleMeasurement services exactly one BQIP M frame: its payload is one
// or more ingest submission lines, inserted under the DB's own mutex.
func (s *Server) handleMeasurement(conn net.Conn) {
	r := bufio.NewReader(conn)
	req, err := bqip.ReadRequest(r)
	if err != nil {
		_ = bqip.WriteError(conn, err.Error())
		return
	}
	if req.Type != bqip.Measurement {
		_ = bqip.WriteError(conn, "unexpected request type on metrics listener")
		return
	}

	in := ingest.New(stringsReader(req.Payload))
	for {
		m, err := in.Next()
		if err != nil {
			break
		}
		if err := s.db.Insert(m.Series, m.TSms, m.Value); err != nil {
			s.log.Warningf("insert failed for series %s: %v", m.Series, err)
			_ = bqip.WriteError(conn, err.Error())
			return
		}
	}
	_ = bqip.WriteResult(conn, nil)
}

// respondQuery parses payload with query.ParseSimple, plans it against the
// live catalog, executes it, and writes back one tuple stream per field.
func (s *Server) respondQuery(conn net.Conn, payload string) {
	q, err := query.ParseSimple(payload)
	if err != nil {
		_ = bqip.WriteError(conn, err.Error())
		return
	}

	resolved, err := query.Plan(q, s.db.Catalog())
	if err != nil {
		_ = bqip.WriteError(conn, err.Error())
		return
	}

	now := nowUnix()
	reader := query.DBReader{DB: s.db}
	results, err := query.Execute(q, resolved, reader, now)
	if err != nil {
		_ = bqip.WriteError(conn, err.Error())
		return
	}

	fields := make([]bqip.FieldResult, len(q.Select))
	for i, f := range q.Select {
		tuples := make([]bqip.Tuple, len(results[i]))
		for j, v := range results[i] {
			start := now + q.FromSeconds + int64(j)*q.Bucket.StrideSeconds
			tuples[j] = bqip.Tuple{Start: uint64(start), Value: v}
		}
		fields[i] = bqip.FieldResult{Name: f.Name, Tuples: tuples}
	}
	_ = bqip.WriteResult(conn, fields)
}

// Close releases both listening sockets.
func (s *Server) Close() error {
	err1 := closeFD(s.queryFD)
	err2 := closeFD(s.metricsFD)
	if err1 != nil {
		return err1
	}
	return err2
}
