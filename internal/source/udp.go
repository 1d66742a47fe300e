package source

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"firestige.xyz/satrx/internal/core"
	"firestige.xyz/satrx/internal/log"
)

const (
	TypeUDP = "udp"

	DefaultUDPListen  = ":5005"
	defaultReadBuffer = 2048
)

// UDPOptions configures a live UDP source.
type UDPOptions struct {
	Listen     string `mapstructure:"listen"`
	ReadBuffer int    `mapstructure:"read_buffer"` // Largest datagram accepted
	// MaxPerSender limits datagrams per sender address per RateWindow (0 = unlimited).
	MaxPerSender int           `mapstructure:"max_per_sender"`
	RateWindow   time.Duration `mapstructure:"rate_window"`
}

// UDPSource receives frames forwarded by a demodulator, one per datagram.
// The socket is bound at construction so Addr is valid before Read starts.
type UDPSource struct {
	conn    net.PacketConn
	bufLen  int
	limiter *senderLimiter
	logger  log.Logger
}

func (o *UDPOptions) validate() error {
	if o.Listen == "" {
		o.Listen = DefaultUDPListen
	}
	if o.ReadBuffer <= 0 {
		o.ReadBuffer = defaultReadBuffer
	}
	if o.MaxPerSender < 0 {
		return fmt.Errorf("%w: max_per_sender must not be negative", core.ErrConfigInvalid)
	}
	if _, _, err := net.SplitHostPort(o.Listen); err != nil {
		return fmt.Errorf("%w: listen %q: %v", core.ErrConfigInvalid, o.Listen, err)
	}
	return nil
}

func NewUDP(opts UDPOptions) (*UDPSource, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	conn, err := net.ListenPacket("udp", opts.Listen)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", opts.Listen, err)
	}
	return &UDPSource{
		conn:    conn,
		bufLen:  opts.ReadBuffer,
		limiter: newSenderLimiter(opts.MaxPerSender, opts.RateWindow),
		logger:  log.GetLogger().WithFields(map[string]interface{}{"source": TypeUDP, "listen": conn.LocalAddr().String()}),
	}, nil
}

func (s *UDPSource) Name() string { return TypeUDP }

// Addr returns the bound address.
func (s *UDPSource) Addr() net.Addr { return s.conn.LocalAddr() }

// Read implements Source. The socket is closed when Read returns, so a
// UDPSource serves a single Read.
func (s *UDPSource) Read(ctx context.Context, out chan<- core.RawChunk) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			s.conn.Close()
		case <-stop:
		}
	}()
	defer s.conn.Close()

	s.logger.Info("listening for frames")
	buf := make([]byte, s.bufLen)
	for {
		n, from, err := s.conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, net.ErrClosed) {
				return core.ErrSourceClosed
			}
			return fmt.Errorf("failed to read datagram: %w", err)
		}

		if !s.limiter.allow(senderHost(from), time.Now()) {
			if s.logger.IsDebugEnabled() {
				s.logger.WithFields(map[string]interface{}{"from": from.String(), "rejected": s.limiter.Rejected()}).Debug("sender over rate limit")
			}
			continue
		}

		data := make([]byte, n)
		copy(data, buf[:n])
		if s.logger.IsTraceEnabled() {
			s.logger.WithFields(map[string]interface{}{"from": from.String(), "len": n}).Trace("datagram")
		}
		if err := emit(ctx, out, core.RawChunk{Data: data, Timestamp: time.Now(), Source: TypeUDP}); err != nil {
			return err
		}
	}
}

// senderHost keys rate limiting by host so a forwarder cycling source ports
// still shares one budget.
func senderHost(addr net.Addr) string {
	if ua, ok := addr.(*net.UDPAddr); ok {
		return ua.IP.String()
	}
	return addr.String()
}
