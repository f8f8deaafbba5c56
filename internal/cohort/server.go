package cohort

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/ardaicoz/jn-cuclark/internal/config"
	"github.com/ardaicoz/jn-cuclark/internal/job"
	"github.com/ardaicoz/jn-cuclark/internal/wire"
)

// ErrDistribution marks a failed config broadcast or barrier. It is fatal
// to the whole run: partial configuration is worse than no run.
var ErrDistribution = errors.New("config distribution failed")

// Server is the coordinator side of the cohort transport. One Server
// serves exactly one run.
type Server struct {
	listener net.Listener
	logger   zerolog.Logger

	mu    sync.Mutex
	conns map[string]net.Conn
}

func NewServer(listenAddr string, logger zerolog.Logger) (*Server, error) {
	ln, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to listen on %s", listenAddr)
	}
	return &Server{
		listener: ln,
		logger:   logger,
		conns:    make(map[string]net.Conn),
	}, nil
}

// Addr is the address workers join, for interpolation into the worker
// launch command.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// AwaitCohort accepts connections until every expected worker has said
// hello or the deadline passes. Hosts that never join are returned so the
// caller can record them as failed rather than hang.
func (s *Server) AwaitCohort(ctx context.Context, expected []string, timeout time.Duration) (missing []string, err error) {
	deadline := time.Now().Add(timeout)
	want := make(map[string]bool, len(expected))
	for _, h := range expected {
		want[h] = true
	}

	for len(want) > 0 {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		if tcp, ok := s.listener.(*net.TCPListener); ok {
			if err := tcp.SetDeadline(deadline); err != nil {
				return nil, errors.Wrap(err, "failed to set accept deadline")
			}
		}

		conn, err := s.listener.Accept()
		if err != nil {
			if isTimeout(err) {
				break
			}
			return nil, errors.Wrap(err, "failed to accept cohort connection")
		}

		host, err := s.handshake(conn, remaining)
		if err != nil {
			s.logger.Warn().Err(err).Msg("Rejecting cohort connection")
			conn.Close()
			continue
		}
		if !want[host] {
			s.logger.Warn().Str("node", host).Msg("Unexpected cohort member, closing")
			conn.Close()
			continue
		}

		s.mu.Lock()
		s.conns[host] = conn
		s.mu.Unlock()
		delete(want, host)
		s.logger.Debug().Str("node", host).Msg("Cohort member joined")
	}

	for h := range want {
		missing = append(missing, h)
	}
	return missing, ctx.Err()
}

func (s *Server) handshake(conn net.Conn, timeout time.Duration) (string, error) {
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return "", err
	}
	t, payload, err := readFrame(conn)
	if err != nil {
		return "", err
	}
	if t != msgHello {
		return "", errors.Errorf("expected hello, got message type %d", t)
	}
	conn.SetReadDeadline(time.Time{})
	return string(payload), nil
}

// Distribute broadcasts the config record to every joined worker and runs
// the barrier: no worker proceeds until all have acknowledged, and any
// failure aborts the run with ErrDistribution.
func (s *Server) Distribute(cfg *config.Config, timeout time.Duration) error {
	payload := wire.EncodeConfig(cfg)

	s.mu.Lock()
	conns := make(map[string]net.Conn, len(s.conns))
	for h, c := range s.conns {
		conns[h] = c
	}
	s.mu.Unlock()

	for host, conn := range conns {
		if err := writeFrame(conn, msgConfig, payload); err != nil {
			return errors.Wrapf(ErrDistribution, "send to %s: %v", host, err)
		}
	}

	// Barrier: every worker must decode the config and report ready.
	for host, conn := range conns {
		if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
			return errors.Wrapf(ErrDistribution, "barrier deadline for %s: %v", host, err)
		}
		t, payload, err := readFrame(conn)
		if err != nil {
			return errors.Wrapf(ErrDistribution, "no barrier ack from %s: %v", host, err)
		}
		if t != msgReady {
			return errors.Wrapf(ErrDistribution, "%s rejected config: %s", host, string(payload))
		}
		conn.SetReadDeadline(time.Time{})
	}

	for host, conn := range conns {
		if err := writeFrame(conn, msgGo, nil); err != nil {
			return errors.Wrapf(ErrDistribution, "barrier release to %s: %v", host, err)
		}
	}

	s.logger.Info().Int("workers", len(conns)).Msg("Configuration distributed, barrier released")
	return nil
}

// CollectResult blocks for one worker's result, bounded by timeout. A
// missing, late or malformed response is returned as an error; the caller
// converts it into a failed NodeResult instead of hanging the run.
func (s *Server) CollectResult(host string, timeout time.Duration) (*job.NodeResult, error) {
	s.mu.Lock()
	conn, ok := s.conns[host]
	s.mu.Unlock()
	if !ok {
		return nil, errors.Errorf("node %s never joined the cohort", host)
	}

	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return nil, errors.Wrapf(err, "failed to set read deadline for %s", host)
	}
	t, payload, err := readFrame(conn)
	if err != nil {
		return nil, errors.Wrapf(err, "no response from %s", host)
	}
	if t != msgResult {
		return nil, errors.Errorf("unexpected message type %d from %s: %s", t, host, string(payload))
	}

	result, err := wire.DecodeResult(payload)
	if err != nil {
		return nil, errors.Wrapf(err, "malformed result from %s", host)
	}
	return result, nil
}

func (s *Server) Close() error {
	s.mu.Lock()
	for _, conn := range s.conns {
		conn.Close()
	}
	s.conns = make(map[string]net.Conn)
	s.mu.Unlock()
	return s.listener.Close()
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
