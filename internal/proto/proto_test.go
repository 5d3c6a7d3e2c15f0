package proto_test

import (
	"math"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/orbitalrush/grid/internal/codec"
	"github.com/orbitalrush/grid/internal/config"
	"github.com/orbitalrush/grid/internal/entities"
	"github.com/orbitalrush/grid/internal/mathutil"
	"github.com/orbitalrush/grid/internal/proto"
)

func TestProto(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Wire Message Suite")
}

var _ = Describe("InputFrame", Label("scope:contract", "layer:proto", "dep:codec", "b:wire-roundtrip", "r:high"), func() {
	It("round-trips every field through encode/decode", func() {
		in := proto.InputFrame{
			Tick:             42,
			ID:               7,
			Movement:         mathutil.NewVec2(1, -1),
			Rotation:         1.5,
			HandPos:          mathutil.NewVec2(3, 4),
			DoBuild:          true,
			BuildType:        entities.BoxThruster,
			BuildRotation:    2,
			SeatAction:       true,
			InteractAction:   false,
			InviteThisPlayer: entities.EntityID{Index: 5, Generation: 1},
			AcceptInvite:     true,
			RejectInvite:     false,
			TakeOverSquad:    -1,
		}

		buf := make([]byte, 256)
		enc := codec.NewEncoder(buf)
		Expect(in.Visit(enc).Failed).To(BeFalse())

		var out proto.InputFrame
		dec := codec.NewDecoder(enc.Bytes())
		Expect(out.Visit(dec).Failed).To(BeFalse())

		Expect(out).To(Equal(in))
	})

	It("fails closed when the buffer is too small", func() {
		in := proto.InputFrame{}
		buf := make([]byte, 4)
		enc := codec.NewEncoder(buf)
		Expect(in.Visit(enc).Failed).To(BeTrue())
	})

	It("treats a nil optional EntityID as absent across the round trip", func() {
		in := proto.InputFrame{InviteThisPlayer: entities.Nil, TakeOverSquad: -1}
		buf := make([]byte, 256)
		enc := codec.NewEncoder(buf)
		Expect(in.Visit(enc).Failed).To(BeFalse())

		var out proto.InputFrame
		dec := codec.NewDecoder(enc.Bytes())
		Expect(out.Visit(dec).Failed).To(BeFalse())
		Expect(out.InviteThisPlayer.IsNil()).To(BeTrue())
	})
})

var _ = Describe("ClientToServer", Label("scope:contract", "layer:proto", "dep:codec", "b:wire-roundtrip", "r:high"), func() {
	It("round-trips a queue of input frames and voice packets", func() {
		in := proto.ClientToServer{
			ProtocolVersion: config.ProtocolVersion,
			Inputs: []proto.InputFrame{
				{Tick: 1, TakeOverSquad: -1},
				{Tick: 2, TakeOverSquad: -1},
			},
			VoicePackets: []proto.OpusPacket{{Payload: []byte{1, 2, 3}}},
		}

		buf := make([]byte, 1024)
		enc := codec.NewEncoder(buf)
		Expect(in.Visit(enc).Failed).To(BeFalse())

		var out proto.ClientToServer
		dec := codec.NewDecoder(enc.Bytes())
		Expect(out.Visit(dec).Failed).To(BeFalse())
		Expect(out).To(Equal(in))
	})

	It("rejects validation when the protocol version differs", func() {
		m := proto.ClientToServer{ProtocolVersion: config.ProtocolVersion + 1}
		Expect(proto.ValidateClientToServer(&m)).To(HaveOccurred())
	})
})

var _ = Describe("ServerToClient", Label("scope:contract", "layer:proto", "dep:codec", "b:wire-roundtrip", "r:high"), func() {
	It("round-trips a spectator snapshot with YourPlayer=-1", func() {
		in := proto.ServerToClient{
			ProtocolVersion: config.ProtocolVersion,
			YourPlayer:      -1,
			State: proto.GameStateSnapshot{
				Tick: 99,
				Entities: []proto.EntitySnapshot{
					{ID: entities.EntityID{Index: 1, Generation: 1}, Kind: entities.KindSun, Radius: 50},
				},
			},
		}

		buf := make([]byte, 4096)
		enc := codec.NewEncoder(buf)
		Expect(in.Visit(enc).Failed).To(BeFalse())

		var out proto.ServerToClient
		dec := codec.NewDecoder(enc.Bytes())
		Expect(out.Visit(dec).Failed).To(BeFalse())
		Expect(out.YourPlayer).To(Equal(int32(-1)))
		Expect(out.State.Tick).To(BeEquivalentTo(99))
		Expect(out.State.Entities).To(HaveLen(1))
	})
})

var _ = Describe("ValidateInputFrame", Label("scope:unit", "layer:proto", "dep:none", "b:bounds-check", "r:medium"), func() {
	It("rejects a build rotation out of range", func() {
		f := proto.InputFrame{BuildRotation: 9, TakeOverSquad: -1}
		Expect(proto.ValidateInputFrame(&f)).To(HaveOccurred())
	})

	It("rejects a non-finite movement vector", func() {
		f := proto.InputFrame{Movement: mathutil.NewVec2(0, 0), TakeOverSquad: -1}
		f.Movement.X = math.NaN()
		Expect(proto.ValidateInputFrame(&f)).To(HaveOccurred())
	})

	It("accepts a well-formed frame", func() {
		f := proto.InputFrame{TakeOverSquad: -1, BuildRotation: 0}
		Expect(proto.ValidateInputFrame(&f)).NotTo(HaveOccurred())
	})
})

var _ = Describe("Protocol version", Label("scope:unit", "layer:proto", "dep:none", "b:handshake", "r:low"), func() {
	It("treats equal versions as compatible", func() {
		Expect(proto.IsCompatible(1, 1)).To(BeTrue())
	})

	It("treats different versions as incompatible and reports both", func() {
		Expect(proto.IsCompatible(1, 2)).To(BeFalse())
		err := proto.CheckVersion(1, 2)
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("client=1"))
		Expect(err.Error()).To(ContainSubstring("server=2"))
	})
})
