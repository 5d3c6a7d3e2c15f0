package transport

import (
	"net"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"gonum.org/v1/gonum/stat"

	"github.com/orbitalrush/grid/internal/config"
	"github.com/orbitalrush/grid/internal/observability"
	"github.com/orbitalrush/grid/internal/proto"
)

// ConnectTimeout bounds how long a connect handshake may take before the
// server gives up on the attempt (§4.F, §5).
const ConnectTimeout = 5 * time.Second

// rttSampleWindow is how many round-trip samples feed the rolling
// RTT/jitter estimate (§4.F "RTT variance estimates exposed per peer").
const rttSampleWindow = 32

// Peer is one connected player's UDP endpoint plus its per-connection
// bookkeeping: slot assignment, RTT/jitter estimate, and last send and
// receive times. A Peer never blocks on
// send; WriteTo a UDPConn is a single syscall and packet loss is the
// protocol's problem, not ours (§4.F: "unreliable").
type Peer struct {
	Addr *net.UDPAddr
	Slot int

	mu         sync.Mutex
	rttSamples []float64
	lastSentAt time.Time
	lastSeenAt time.Time
}

// observeRTT records one round-trip sample, measured as the wall-clock
// time between a ServerToClient send to this peer and its next
// ClientToServer arrival.
func (p *Peer) observeRTT(sample time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rttSamples = append(p.rttSamples, sample.Seconds())
	if len(p.rttSamples) > rttSampleWindow {
		p.rttSamples = p.rttSamples[len(p.rttSamples)-rttSampleWindow:]
	}
}

// RTTStats returns the mean round-trip time and its variance (jitter)
// over the current rolling sample window. Returns zero values if no
// samples have been recorded yet.
func (p *Peer) RTTStats() (mean, variance time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.rttSamples) == 0 {
		return 0, 0
	}
	meanSec, varSec := stat.MeanVariance(p.rttSamples, nil)
	return time.Duration(meanSec * float64(time.Second)), time.Duration(varSec * float64(time.Second))
}

func (p *Peer) markSeen(now time.Time) {
	p.mu.Lock()
	p.lastSeenAt = now
	p.mu.Unlock()
}

func (p *Peer) idleSince(now time.Time) time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.lastSeenAt.IsZero() {
		return 0
	}
	return now.Sub(p.lastSeenAt)
}

// InputHandler receives a decoded ClientToServer packet for the peer
// occupying the given slot.
type InputHandler interface {
	HandleInput(slot int, msg *proto.ClientToServer)
}

// UDPServer is the authoritative gameplay transport: a single UDP
// socket multiplexing every connected player, slot assignment from a
// fixed-size table, and per-peer RTT tracking. It replaces a
// one-websocket-per-session model (a TCP-backed protocol cannot
// express §4.F's "unreliable connection-oriented datagram" framing),
// while keeping the same connection-lifecycle shape: a bounded
// per-peer write path, structured connect/disconnect logging, and the
// same Prometheus connection counters used for websocket connections
// elsewhere in this codebase.
type UDPServer struct {
	conn   *net.UDPConn
	logger logr.Logger

	mu    sync.Mutex
	peers map[string]*Peer // keyed by UDPAddr.String()
	slots [config.MaxPlayers]*Peer

	handler InputHandler
}

// ListenUDP opens the authoritative gameplay socket on addr.
func ListenUDP(addr string, handler InputHandler, logger logr.Logger) (*UDPServer, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, err
	}
	return &UDPServer{
		conn:    conn,
		logger:  logger.WithValues("component", "transport", "layer", "udp"),
		peers:   make(map[string]*Peer),
		handler: handler,
	}, nil
}

// LocalAddr returns the socket's bound address.
func (s *UDPServer) LocalAddr() net.Addr {
	return s.conn.LocalAddr()
}

// Close releases the underlying socket.
func (s *UDPServer) Close() error {
	return s.conn.Close()
}

// Serve reads packets until the socket is closed. Each datagram is
// either a connect handshake from an unrecognized address or a
// ClientToServer packet from an existing peer; both are handled
// inline since decode is cheap and a single socket already serializes
// reads.
func (s *UDPServer) Serve() error {
	buf := make([]byte, 65536)
	for {
		n, addr, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			return err
		}
		s.handlePacket(addr, append([]byte(nil), buf[:n]...))
	}
}

func (s *UDPServer) handlePacket(addr *net.UDPAddr, data []byte) {
	s.mu.Lock()
	peer, known := s.peers[addr.String()]
	s.mu.Unlock()

	if !known {
		s.handleConnect(addr, data)
		return
	}

	var msg proto.ClientToServer
	if err := proto.Decode(data, &msg); err != nil {
		s.logger.Error(err, "dropping malformed ClientToServer packet", "slot", peer.Slot)
		return
	}
	if msg.ProtocolVersion != config.ProtocolVersion {
		s.logger.Info("dropping packet with mismatched protocol version", "slot", peer.Slot, "version", msg.ProtocolVersion)
		return
	}
	now := time.Now()
	peer.markSeen(now)
	peer.mu.Lock()
	sentAt := peer.lastSentAt
	peer.mu.Unlock()
	if !sentAt.IsZero() {
		peer.observeRTT(now.Sub(sentAt))
	}
	if msgCounter := observability.GetMessagesCounter(); msgCounter != nil {
		msgCounter.WithLabelValues("in").Inc()
	}
	if bytesCounter := observability.GetConnectionBytesCounter(); bytesCounter != nil {
		bytesCounter.WithLabelValues("in").Add(float64(len(data)))
	}
	valid := msg.Inputs[:0]
	for i := range msg.Inputs {
		if err := proto.ValidateInputFrame(&msg.Inputs[i]); err != nil {
			s.logger.Info("dropping invalid input frame", "slot", peer.Slot, "error", err.Error())
			continue
		}
		valid = append(valid, msg.Inputs[i])
	}
	msg.Inputs = valid
	if s.handler != nil {
		s.handler.HandleInput(peer.Slot, &msg)
	}
}

// handleConnect assigns the sender a free slot, or refuses with
// DisconnectReasonServerFull if none remain (§8 scenario 4).
func (s *UDPServer) handleConnect(addr *net.UDPAddr, data []byte) {
	var hello proto.ClientToServer
	if err := proto.Decode(data, &hello); err != nil {
		s.logger.Info("dropping malformed connect attempt", "addr", addr.String())
		return
	}
	if hello.ProtocolVersion != config.ProtocolVersion {
		s.sendDisconnect(addr, config.DisconnectReasonServerFull)
		return
	}

	s.mu.Lock()
	slot := -1
	for i, p := range s.slots {
		if p == nil {
			slot = i
			break
		}
	}
	if slot < 0 {
		s.mu.Unlock()
		s.logger.Info("refusing connect: no free slot", "addr", addr.String())
		s.sendDisconnect(addr, config.DisconnectReasonServerFull)
		return
	}

	peer := &Peer{Addr: addr, Slot: slot, lastSeenAt: time.Now()}
	s.slots[slot] = peer
	s.peers[addr.String()] = peer
	s.mu.Unlock()

	if eventsCounter := observability.GetConnectionEventsCounter(); eventsCounter != nil {
		eventsCounter.WithLabelValues("connect").Inc()
	}
	if activeGauge := observability.GetActiveConnectionsGauge(); activeGauge != nil {
		activeGauge.Inc()
	}
	s.logger.Info("player connected", "slot", slot, "addr", addr.String())

	if err := s.Send(slot, &proto.ServerToClient{ProtocolVersion: config.ProtocolVersion, YourPlayer: int32(slot)}); err != nil {
		s.logger.Error(err, "failed to send connect acknowledgement", "slot", slot)
	}
}

// sendDisconnect notifies addr that no slot was granted, or (via
// Disconnect) that an existing peer's slot was just revoked.
// YourPlayer=-1 since a refused/revoked peer holds no slot.
func (s *UDPServer) sendDisconnect(addr *net.UDPAddr, reason uint8) {
	msg := proto.ServerToClient{
		ProtocolVersion:  config.ProtocolVersion,
		YourPlayer:       -1,
		DisconnectReason: reason,
	}
	data, err := proto.Encode(&msg)
	if err != nil {
		s.logger.Error(err, "failed to encode disconnect notice")
		return
	}
	if _, err := s.conn.WriteToUDP(data, addr); err != nil {
		s.logger.Error(err, "failed to send disconnect notice", "reason", reason)
		return
	}
	s.logger.Info("sent disconnect notice", "addr", addr.String(), "reason", reason)
}

// Disconnect frees slot, closing its entry in the peer table. Safe to
// call more than once for the same slot.
func (s *UDPServer) Disconnect(slot int, reason uint8) {
	s.mu.Lock()
	peer := s.slots[slot]
	if peer == nil {
		s.mu.Unlock()
		return
	}
	s.slots[slot] = nil
	delete(s.peers, peer.Addr.String())
	s.mu.Unlock()

	s.sendDisconnect(peer.Addr, reason)

	if eventsCounter := observability.GetConnectionEventsCounter(); eventsCounter != nil {
		eventsCounter.WithLabelValues("disconnect").Inc()
	}
	if activeGauge := observability.GetActiveConnectionsGauge(); activeGauge != nil {
		activeGauge.Dec()
	}
	s.logger.Info("player disconnected", "slot", slot, "reason", reason)
}

// Send writes msg to the peer occupying slot, recording an RTT sample
// against its previous send timestamp. A nil/absent slot is a no-op —
// the caller (session loop) iterates all slots every tick regardless
// of connection state.
func (s *UDPServer) Send(slot int, msg *proto.ServerToClient) error {
	s.mu.Lock()
	peer := s.slots[slot]
	s.mu.Unlock()
	if peer == nil {
		return nil
	}

	data, err := proto.Encode(msg)
	if err != nil {
		return err
	}
	if len(data) > config.MaxServerToClient {
		return ErrSnapshotTooLarge
	}

	// RTT is sampled as send-to-next-receive elapsed time (see
	// handlePacket); §4.E's wire format carries no echoed sequence
	// number to pin down a precise round trip.
	now := time.Now()
	peer.mu.Lock()
	peer.lastSentAt = now
	peer.mu.Unlock()

	_, err = s.conn.WriteToUDP(data, peer.Addr)
	if err != nil {
		return err
	}
	if msgCounter := observability.GetMessagesCounter(); msgCounter != nil {
		msgCounter.WithLabelValues("out").Inc()
	}
	if bytesCounter := observability.GetConnectionBytesCounter(); bytesCounter != nil {
		bytesCounter.WithLabelValues("out").Add(float64(len(data)))
	}
	return nil
}

// ErrSnapshotTooLarge is returned by Send when an encoded
// ServerToClient exceeds config.MaxServerToClient.
var ErrSnapshotTooLarge = errSnapshotTooLarge{}

type errSnapshotTooLarge struct{}

func (errSnapshotTooLarge) Error() string { return "transport: encoded snapshot exceeds MaxServerToClient" }
