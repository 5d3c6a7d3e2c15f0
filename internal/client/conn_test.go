package client_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/go-logr/logr"

	"github.com/orbitalrush/grid/internal/client"
	"github.com/orbitalrush/grid/internal/config"
	"github.com/orbitalrush/grid/internal/proto"
	"github.com/orbitalrush/grid/internal/transport"
)

type echoHandler struct{ srv *transport.UDPServer }

func (h *echoHandler) HandleInput(slot int, msg *proto.ClientToServer) {
	h.srv.Send(slot, &proto.ServerToClient{ProtocolVersion: config.ProtocolVersion, YourPlayer: int32(slot)})
}

var _ = Describe("Conn", Label("scope:integration", "layer:client", "dep:udp", "b:client-handshake", "r:high"), func() {
	var srv *transport.UDPServer

	BeforeEach(func() {
		handler := &echoHandler{}
		var err error
		srv, err = transport.ListenUDP("127.0.0.1:0", handler, logr.Discard())
		Expect(err).NotTo(HaveOccurred())
		handler.srv = srv
		go srv.Serve()
	})

	AfterEach(func() {
		srv.Close()
	})

	It("completes the connect handshake and learns its assigned slot", func() {
		conn, err := client.Dial(srv.LocalAddr().String(), time.Second)
		Expect(err).NotTo(HaveOccurred())
		defer conn.Close()
		Expect(conn.YourPlayer()).To(Equal(int32(0)))
	})

	It("fails against an address nothing listens on", func() {
		_, err := client.Dial("127.0.0.1:1", 200*time.Millisecond)
		Expect(err).To(HaveOccurred())
	})

	It("samples RTT after a send/receive round trip", func() {
		conn, err := client.Dial(srv.LocalAddr().String(), time.Second)
		Expect(err).NotTo(HaveOccurred())
		defer conn.Close()

		Expect(conn.Send(&proto.ClientToServer{ProtocolVersion: config.ProtocolVersion})).To(Succeed())
		conn.SetReadDeadline(time.Now().Add(time.Second))
		_, err = conn.Recv()
		Expect(err).NotTo(HaveOccurred())

		mean, _ := conn.RTTStats()
		Expect(mean).To(BeNumerically(">=", 0))
	})
})
