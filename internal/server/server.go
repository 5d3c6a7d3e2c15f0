// Package server drives the authoritative tick loop end to end: it
// owns the UDP transport, the session clock, and the periodic
// world-save, tying together internal/transport, internal/session and
// internal/save into a single shared world with a fixed player slot
// table, rather than one session per connection.
package server

import (
	"context"
	"net"
	"path/filepath"
	"time"

	"github.com/go-logr/logr"

	"github.com/orbitalrush/grid/internal/config"
	"github.com/orbitalrush/grid/internal/entities"
	"github.com/orbitalrush/grid/internal/observability"
	"github.com/orbitalrush/grid/internal/proto"
	"github.com/orbitalrush/grid/internal/rules"
	"github.com/orbitalrush/grid/internal/save"
	"github.com/orbitalrush/grid/internal/session"
	"github.com/orbitalrush/grid/internal/telemetry"
	"github.com/orbitalrush/grid/internal/transport"
	"github.com/orbitalrush/grid/internal/voice"
)

// snapshotHistoryCapacity bounds how many recent world-save snapshots
// are retained in memory; only the latest is ever written to disk, but
// keeping a short tail lets a future diagnostics endpoint inspect
// recent history without re-reading the save file.
const snapshotHistoryCapacity = 4

// Server is the authoritative game server: a UDP transport accepting
// player connections, a Session stepping the shared World at a fixed
// rate, and a periodic save-to-disk of the latest tick.
type Server struct {
	cfg       *config.Config
	udp       *transport.UDPServer
	session   *session.Session
	history   *session.SnapshotHistory
	clock     session.Clock
	logger    logr.Logger
	telemetry *telemetry.OutputManager

	savePath           string
	lastWorldSave      time.Time
	lastInputPacket    [config.MaxPlayers]time.Time
	snapshotSubsample  int
	ticksSinceSnapshot int

	voiceChannels [config.MaxPlayers]*voice.Channel
}

// New creates a Server bound to addr, with save files written beneath
// savePath. The returned Server does not yet accept connections or
// step the world; call Serve to run it.
func New(cfg *config.Config, addr, savePath string, logger logr.Logger) (*Server, error) {
	clock := session.NewRealClock()
	state := rules.NewState(cfg)
	sess := session.NewSession(clock, state)
	sess.SetLogger(logger)

	tel, err := telemetry.New(cfg.Telemetry.OutputDir)
	if err != nil {
		return nil, err
	}
	if tel != nil {
		if err := cfg.WriteYAML(filepath.Join(tel.Dir(), "config.yaml")); err != nil {
			logger.Error(err, "failed to archive effective config alongside telemetry")
		}
	}

	srv := &Server{
		cfg:               cfg,
		session:           sess,
		history:           session.NewSnapshotHistory(snapshotHistoryCapacity),
		clock:             clock,
		logger:            logger.WithValues("component", "server"),
		savePath:          savePath,
		snapshotSubsample: cfg.Server.SnapshotSubsample,
		telemetry:         tel,
	}
	if srv.snapshotSubsample < 1 {
		srv.snapshotSubsample = 1
	}

	udp, err := transport.ListenUDP(addr, srv, logger)
	if err != nil {
		return nil, err
	}
	srv.udp = udp
	return srv, nil
}

// LocalAddr returns the bound UDP socket address.
func (s *Server) LocalAddr() net.Addr { return s.udp.LocalAddr() }

// State satisfies transport.SnapshotSource for the spectator feed.
func (s *Server) State() *rules.State { return s.session.State() }

// HandleInput satisfies transport.InputHandler: merge the packet's
// input queue into the owning slot and restart its disconnect timer.
func (s *Server) HandleInput(slot int, msg *proto.ClientToServer) {
	if slot < 0 || slot >= config.MaxPlayers {
		return
	}
	if q := s.session.Queue(slot); q != nil {
		q.Merge(msg.Inputs)
	}
	s.lastInputPacket[slot] = s.clock.Now()

	st := s.session.State()
	if !st.Slots[slot].Connected {
		s.spawnPlayer(slot)
	}
	if ch := s.voiceChannels[slot]; ch != nil {
		for _, p := range msg.VoicePackets {
			ch.Incoming.Push(voice.Packet{Slot: slot, Payload: p.Payload})
		}
	}
}

// spawnPlayer creates a fresh Player entity for a newly-connected slot
// and marks the slot occupied. Called with no external locking since
// the server loop and transport callbacks both run on goroutines that
// only ever touch State from here or from Advance, never
// concurrently (see Serve).
func (s *Server) spawnPlayer(slot int) {
	st := s.session.State()
	id, err := st.Store.New(entities.KindPlayer)
	if err != nil {
		s.logger.Error(err, "failed to spawn player entity", "slot", slot)
		return
	}
	st.Slots[slot] = rules.Slot{Connected: true, Player: id}
	s.voiceChannels[slot] = voice.NewChannel(config.VoipPacketBufferSize)
	s.logger.Info("player spawned", "slot", slot, "entity", id)
	if err := s.telemetry.WriteConnection(telemetry.ConnectionRecord{Tick: st.Tick, Slot: slot, Event: "connect"}); err != nil {
		s.logger.Error(err, "failed to write connection telemetry", "slot", slot)
	}
}

// despawnPlayer frees slot's Player entity and clears its slot.
func (s *Server) despawnPlayer(slot int) {
	st := s.session.State()
	wasConnected := st.Slots[slot].Connected
	if wasConnected {
		st.Store.Destroy(st.Slots[slot].Player, nil)
	}
	st.Slots[slot] = rules.Slot{}
	s.voiceChannels[slot] = nil
	if wasConnected {
		if err := s.telemetry.WriteConnection(telemetry.ConnectionRecord{Tick: st.Tick, Slot: slot, Event: "disconnect"}); err != nil {
			s.logger.Error(err, "failed to write connection telemetry", "slot", slot)
		}
	}
}

// Serve runs the UDP accept loop and the fixed-rate world step loop
// until ctx is cancelled, then closes the transport. Both loops share
// Server's State single-threaded: HandleInput only merges into a
// per-slot queue (concurrency-safe) and lazily spawns a player, while
// the world step itself only ever runs from this goroutine.
func (s *Server) Serve(ctx context.Context) error {
	acceptErr := make(chan error, 1)
	go func() { acceptErr <- s.udp.Serve() }()

	ticker := time.NewTicker(config.Timestep)
	defer ticker.Stop()

	last := s.clock.Now()
	for {
		select {
		case <-ctx.Done():
			s.udp.Close()
			if err := s.telemetry.Close(); err != nil {
				s.logger.Error(err, "failed to close telemetry output")
			}
			return nil
		case err := <-acceptErr:
			return err
		case now := <-ticker.C:
			wallDt := now.Sub(last)
			last = now
			s.tick(wallDt, now)
		}
	}
}

func (s *Server) tick(wallDt time.Duration, now time.Time) {
	start := s.clock.Now()
	stepped := s.session.Advance(wallDt)
	if stepped == 0 {
		return
	}
	elapsed := s.clock.Now().Sub(start)

	s.relayVoice()

	s.ticksSinceSnapshot += stepped
	if s.ticksSinceSnapshot >= s.snapshotSubsample {
		s.ticksSinceSnapshot = 0
		s.broadcastSnapshot()
	}

	st := s.session.State()
	queueDepth := 0
	playerCount := 0
	for i := range st.Slots {
		if q := s.session.Queue(i); q != nil {
			queueDepth += q.Pending()
		}
		if st.Slots[i].Connected {
			playerCount++
		}
	}
	if qg := observability.GetQueueDepthGauge(); qg != nil {
		qg.Set(float64(queueDepth))
	}
	if err := s.telemetry.WriteTick(telemetry.TickRecord{
		Tick:           st.Tick,
		TickDurationUS: elapsed.Microseconds(),
		QueueDepth:     queueDepth,
		EntityCount:    st.Store.Count(),
		PlayerCount:    playerCount,
		SimTimeSec:     float64(st.Tick) * config.TimestepSeconds,
	}); err != nil {
		s.logger.Error(err, "failed to write tick telemetry")
	}

	if now.Sub(s.lastWorldSave) >= time.Duration(s.cfg.Server.TimeBetweenWorldSave*float64(time.Second)) {
		s.lastWorldSave = now
		s.saveWorld(now)
	}
}

// relayVoice drains every connected slot's received voice packets and
// fans each one out to every other connected slot's outgoing queue, so
// a speaking player is heard by everyone but themselves.
func (s *Server) relayVoice() {
	st := s.session.State()
	for from := range st.Slots {
		src := s.voiceChannels[from]
		if src == nil {
			continue
		}
		for {
			p, ok := src.Incoming.Pop()
			if !ok {
				break
			}
			for to := range st.Slots {
				if to == from || !st.Slots[to].Connected {
					continue
				}
				if dst := s.voiceChannels[to]; dst != nil {
					dst.Outgoing.Push(p)
				}
			}
		}
	}
}

func (s *Server) broadcastSnapshot() {
	st := s.session.State()
	snap := rules.ToSnapshot(st)
	for slot := range st.Slots {
		if !st.Slots[slot].Connected {
			continue
		}
		msg := &proto.ServerToClient{
			ProtocolVersion: config.ProtocolVersion,
			YourPlayer:      int32(slot),
			State:           snap,
			VoicePackets:    s.drainOutgoingVoice(slot),
		}
		if err := s.udp.Send(slot, msg); err != nil {
			s.logger.Error(err, "failed to send snapshot", "slot", slot)
		}
	}
}

// drainOutgoingVoice pops every packet queued for slot since the last
// snapshot, for inclusion in the next ServerToClient.
func (s *Server) drainOutgoingVoice(slot int) []proto.OpusPacket {
	ch := s.voiceChannels[slot]
	if ch == nil {
		return nil
	}
	var out []proto.OpusPacket
	for {
		p, ok := ch.Outgoing.Pop()
		if !ok {
			break
		}
		out = append(out, proto.OpusPacket{Payload: p.Payload})
	}
	return out
}

func (s *Server) saveWorld(now time.Time) {
	if s.savePath == "" {
		return
	}
	st := s.session.State()
	snap, err := s.history.Capture(st, s.clock)
	if err != nil {
		s.logger.Error(err, "failed to capture world snapshot")
		return
	}
	if err := save.WriteAtomic(s.savePath, snap.Encoded); err != nil {
		s.logger.Error(err, "failed to write world save file", "path", s.savePath)
		return
	}
	s.logger.V(1).Info("world saved", "tick", snap.Tick, "path", s.savePath)
}

// Disconnect drops slot, notifying its peer and freeing its Player
// entity.
func (s *Server) Disconnect(slot int, reason uint8) {
	s.udp.Disconnect(slot, reason)
	s.despawnPlayer(slot)
}
