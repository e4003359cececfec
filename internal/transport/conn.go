// Package transport provides the socket connection test cases are sent over.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

var (
	ErrNotOpen     = errors.New("connection is not open")
	ErrAlreadyOpen = errors.New("connection is already open")
)

// Options configures a Conn
type Options struct {
	Host     string
	Port     int
	Proto    string        // tcp or udp
	Timeout  time.Duration // Per operation
	RecvSize int
	RPS      float64 // Sends per second; 0 is unlimited
}

// DefaultOptions returns sensible defaults
func DefaultOptions() *Options {
	return &Options{
		Host:     "127.0.0.1",
		Port:     554,
		Proto:    "tcp",
		Timeout:  5 * time.Second,
		RecvSize: 10000,
	}
}

// Conn is a TCP or UDP connection opened once per test case
type Conn struct {
	opts    Options
	dialer  net.Dialer
	conn    net.Conn
	limiter *rate.Limiter
	buffers *bufferPool
}

// NewConn creates a connection; it does not dial until Open
func NewConn(opts *Options) (*Conn, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	o := *opts

	o.Proto = strings.ToLower(o.Proto)
	switch o.Proto {
	case "":
		o.Proto = "tcp"
	case "tcp", "udp":
	default:
		return nil, fmt.Errorf("unsupported protocol '%s'", opts.Proto)
	}
	if o.Port <= 0 || o.Port > 65535 {
		return nil, fmt.Errorf("invalid port %d", o.Port)
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultOptions().Timeout
	}
	if o.RecvSize <= 0 {
		o.RecvSize = DefaultOptions().RecvSize
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if o.RPS > 0 {
		burst := int(o.RPS)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(o.RPS), burst)
	}

	return &Conn{
		opts:    o,
		dialer:  net.Dialer{Timeout: o.Timeout},
		limiter: limiter,
		buffers: newBufferPool(o.RecvSize),
	}, nil
}

// Address returns host:port
func (c *Conn) Address() string {
	return net.JoinHostPort(c.opts.Host, strconv.Itoa(c.opts.Port))
}

// Proto returns the network protocol
func (c *Conn) Proto() string { return c.opts.Proto }

// Open dials the target
func (c *Conn) Open(ctx context.Context) error {
	if c.conn != nil {
		return ErrAlreadyOpen
	}
	conn, err := c.dialer.DialContext(ctx, c.opts.Proto, c.Address())
	if err != nil {
		return fmt.Errorf("dial %s %s: %w", c.opts.Proto, c.Address(), err)
	}
	c.conn = conn
	return nil
}

// Send writes data after waiting for the rate limiter
func (c *Conn) Send(ctx context.Context, data []byte) (int, error) {
	if c.conn == nil {
		return 0, ErrNotOpen
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, err
	}
	if err := c.conn.SetWriteDeadline(c.deadline(ctx)); err != nil {
		return 0, err
	}

	n, err := c.conn.Write(data)
	if err != nil {
		return n, fmt.Errorf("send: %w", err)
	}
	return n, nil
}

// Recv reads one response of at most RecvSize bytes. A timeout with nothing
// read is not an error: the target simply did not answer.
func (c *Conn) Recv(ctx context.Context) ([]byte, error) {
	if c.conn == nil {
		return nil, ErrNotOpen
	}
	if err := c.conn.SetReadDeadline(c.deadline(ctx)); err != nil {
		return nil, err
	}

	scratch := c.buffers.get()
	defer c.buffers.put(scratch)

	n, err := c.conn.Read(*scratch)
	data := append([]byte(nil), (*scratch)[:n]...)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return data, nil
		}
		if n > 0 {
			return data, nil
		}
		return nil, fmt.Errorf("recv: %w", err)
	}
	return data, nil
}

// Close closes the connection; closing a closed Conn is a no-op
func (c *Conn) Close() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

func (c *Conn) deadline(ctx context.Context) time.Time {
	d := time.Now().Add(c.opts.Timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(d) {
		return ctxDeadline
	}
	return d
}
