package client

import (
	"errors"
	"net"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/orbitalrush/grid/internal/config"
	"github.com/orbitalrush/grid/internal/proto"
)

// rttSampleWindow mirrors internal/transport's server-side RTT
// estimate: a rolling sample window fed to stat.MeanVariance.
const rttSampleWindow = 32

// ErrConnectTimeout is returned by Dial when the server never replies
// within config's connect handshake bound.
var ErrConnectTimeout = errors.New("client: connect handshake timed out")

// ErrDisconnected is returned by Recv once the server has sent a
// disconnect notice.
var ErrDisconnected = errors.New("client: server sent disconnect notice")

// Conn is the client side of the authoritative gameplay channel: one
// UDP socket, a connect handshake, and the same send-to-next-receive
// RTT sampling the server performs per peer (internal/transport.Peer),
// mirrored here since the client has the same "no echoed sequence
// number" constraint on the wire format.
type Conn struct {
	udp        *net.UDPConn
	yourPlayer int32

	mu         sync.Mutex
	rttSamples []float64
	lastSentAt time.Time
}

// Dial opens a UDP socket to addr and performs the connect handshake,
// retrying the hello packet until a reply arrives or timeout elapses.
func Dial(addr string, timeout time.Duration) (*Conn, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}
	conn, err := net.DialUDP("udp", nil, udpAddr)
	if err != nil {
		return nil, err
	}
	c := &Conn{udp: conn}

	hello := &proto.ClientToServer{ProtocolVersion: config.ProtocolVersion}
	data, err := proto.Encode(hello)
	if err != nil {
		conn.Close()
		return nil, err
	}

	deadline := time.Now().Add(timeout)
	buf := make([]byte, 1<<16)
	for {
		if time.Now().After(deadline) {
			conn.Close()
			return nil, ErrConnectTimeout
		}
		if _, err := conn.Write(data); err != nil {
			conn.Close()
			return nil, err
		}
		conn.SetReadDeadline(time.Now().Add(250 * time.Millisecond))
		n, err := conn.Read(buf)
		if err != nil {
			continue // retry: lost hello or lost reply, both look like a read timeout
		}
		var reply proto.ServerToClient
		if err := proto.Decode(buf[:n], &reply); err != nil {
			continue
		}
		if reply.DisconnectReason != 0 {
			conn.Close()
			return nil, ErrDisconnected
		}
		c.yourPlayer = reply.YourPlayer
		return c, nil
	}
}

// YourPlayer returns the slot assigned at connect.
func (c *Conn) YourPlayer() int32 {
	return c.yourPlayer
}

// Close releases the socket.
func (c *Conn) Close() error {
	return c.udp.Close()
}

// Send transmits msg, recording the send timestamp for the next RTT
// sample.
func (c *Conn) Send(msg *proto.ClientToServer) error {
	data, err := proto.Encode(msg)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.lastSentAt = time.Now()
	c.mu.Unlock()
	_, err = c.udp.Write(data)
	return err
}

// Recv blocks (subject to the caller's read deadline via SetReadDeadline)
// for the next ServerToClient packet, sampling RTT as the elapsed time
// since the last Send.
func (c *Conn) Recv() (*proto.ServerToClient, error) {
	buf := make([]byte, 1<<20)
	n, err := c.udp.Read(buf)
	if err != nil {
		return nil, err
	}
	var msg proto.ServerToClient
	if err := proto.Decode(buf[:n], &msg); err != nil {
		return nil, err
	}

	now := time.Now()
	c.mu.Lock()
	if !c.lastSentAt.IsZero() {
		c.observeRTT(now.Sub(c.lastSentAt))
	}
	c.mu.Unlock()

	if msg.DisconnectReason != 0 {
		return &msg, ErrDisconnected
	}
	return &msg, nil
}

// SetReadDeadline bounds the next Recv call.
func (c *Conn) SetReadDeadline(t time.Time) error {
	return c.udp.SetReadDeadline(t)
}

func (c *Conn) observeRTT(sample time.Duration) {
	c.rttSamples = append(c.rttSamples, sample.Seconds())
	if len(c.rttSamples) > rttSampleWindow {
		c.rttSamples = c.rttSamples[len(c.rttSamples)-rttSampleWindow:]
	}
}

// RTTStats returns the mean round-trip time and its variance over the
// current rolling sample window.
func (c *Conn) RTTStats() (mean, variance time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.rttSamples) == 0 {
		return 0, 0
	}
	meanSec, varSec := stat.MeanVariance(c.rttSamples, nil)
	return time.Duration(meanSec * float64(time.Second)), time.Duration(varSec * float64(time.Second))
}
