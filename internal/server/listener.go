package server

import (
	"bufio"
	"context"
	"net"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/libraz/mygramdb/internal/errs"
	"github.com/libraz/mygramdb/internal/logging"
)

// Listener accepts connections on the configured host:port, backed by a
// bounded pool of connection-handling goroutines (maxConnections).
type Listener struct {
	dispatcher *Dispatcher
	log        *zap.Logger

	sem chan struct{}
	wg  sync.WaitGroup
	ln  net.Listener
}

// NewListener binds host:port immediately so startup fails fast on a bad
// bind rather than on the first connection.
func NewListener(host string, port int, maxConnections int, d *Dispatcher, log *zap.Logger) (*Listener, error) {
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "binding listener", err)
	}
	if maxConnections <= 0 {
		maxConnections = 1000
	}
	return &Listener{
		dispatcher: d,
		log:        log,
		sem:        make(chan struct{}, maxConnections),
		ln:         ln,
	}, nil
}

// Addr returns the bound local address, useful in tests that bind :0.
func (l *Listener) Addr() net.Addr { return l.ln.Addr() }

// Serve accepts connections until ctx is cancelled or the listener is
// closed. On cancellation it closes every open connection and blocks until
// their handlers have returned.
func (l *Listener) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		l.ln.Close()
	}()

	for {
		conn, err := l.ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				l.wg.Wait()
				return nil
			}
			return errs.Wrap(errs.Unavailable, "accepting connection", err)
		}

		select {
		case l.sem <- struct{}{}:
		default:
			logging.Event("server_connection_rejected").Field("reason", "max_connections").Warn(l.log)
			conn.Close()
			continue
		}

		l.wg.Add(1)
		go func() {
			defer l.wg.Done()
			defer func() { <-l.sem }()
			stop := context.AfterFunc(ctx, func() { conn.Close() })
			defer stop()
			l.handleConn(conn)
		}()
	}
}

func (l *Listener) handleConn(conn net.Conn) {
	defer conn.Close()

	r := bufio.NewReader(conn)
	for {
		line, err := r.ReadString('\n')
		if line != "" {
			resp := l.dispatcher.Dispatch(line)
			if _, werr := conn.Write([]byte(resp)); werr != nil {
				return
			}
		}
		if err != nil {
			return
		}
	}
}
