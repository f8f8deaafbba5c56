package cohort

import (
	"context"
	"net"
	"time"

	"github.com/pkg/errors"

	"github.com/ardaicoz/jn-cuclark/internal/config"
	"github.com/ardaicoz/jn-cuclark/internal/job"
	"github.com/ardaicoz/jn-cuclark/internal/wire"
)

// Client is the worker side of the cohort transport.
type Client struct {
	conn net.Conn
}

// Join dials the coordinator and identifies this process by hostname.
func Join(ctx context.Context, coordinatorAddr, hostname string) (*Client, error) {
	d := net.Dialer{}
	conn, err := d.DialContext(ctx, "tcp", coordinatorAddr)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to join coordinator at %s", coordinatorAddr)
	}
	if err := writeFrame(conn, msgHello, []byte(hostname)); err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "failed to send hello")
	}
	return &Client{conn: conn}, nil
}

// ReceiveConfig blocks until the coordinator broadcasts the config, acks
// the barrier, and waits for the release. A payload that fails to decode
// is reported back to the coordinator and surfaced as a fatal error here.
func (c *Client) ReceiveConfig(timeout time.Duration) (*config.Config, error) {
	if err := c.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return nil, errors.Wrap(err, "failed to set read deadline")
	}
	t, payload, err := readFrame(c.conn)
	if err != nil {
		return nil, errors.Wrap(err, "failed to receive config")
	}
	if t != msgConfig {
		return nil, errors.Errorf("expected config, got message type %d", t)
	}

	cfg, err := wire.DecodeConfig(payload)
	if err != nil {
		writeFrame(c.conn, msgError, []byte(err.Error()))
		return nil, errors.Wrap(err, "received malformed config")
	}

	if err := writeFrame(c.conn, msgReady, nil); err != nil {
		return nil, errors.Wrap(err, "failed to ack barrier")
	}

	t, payload, err = readFrame(c.conn)
	if err != nil {
		return nil, errors.Wrap(err, "failed to wait for barrier release")
	}
	if t != msgGo {
		return nil, errors.Errorf("expected barrier release, got message type %d: %s", t, string(payload))
	}
	c.conn.SetReadDeadline(time.Time{})

	return cfg, nil
}

// SendResult reports this node's outcome to the coordinator.
func (c *Client) SendResult(result *job.NodeResult) error {
	if err := writeFrame(c.conn, msgResult, wire.EncodeResult(result)); err != nil {
		return errors.Wrap(err, "failed to send result")
	}
	return nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}
