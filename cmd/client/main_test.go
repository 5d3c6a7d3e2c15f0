package main

import (
	"context"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/go-logr/logr"

	"github.com/orbitalrush/grid/internal/client"
	"github.com/orbitalrush/grid/internal/config"
	"github.com/orbitalrush/grid/internal/server"
	"github.com/orbitalrush/grid/internal/voice"
)

func TestMain(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Main Client Suite")
}

var _ = Describe("parseArgs", Label("scope:unit", "layer:client", "dep:none", "b:cli-surface", "r:low"), func() {
	It("splits key=value tokens", func() {
		args := parseArgs([]string{"host=yes", "record_inputs_to=/tmp/a.rec"})
		Expect(args).To(HaveKeyWithValue("host", "yes"))
		Expect(args).To(HaveKeyWithValue("record_inputs_to", "/tmp/a.rec"))
	})

	It("ignores tokens without an equals sign", func() {
		args := parseArgs([]string{"garbage", "host=yes"})
		Expect(args).NotTo(HaveKey("garbage"))
		Expect(args).To(HaveKeyWithValue("host", "yes"))
	})

	It("keeps an empty value rather than dropping the key", func() {
		args := parseArgs([]string{"record_inputs_to="})
		Expect(args).To(HaveKeyWithValue("record_inputs_to", ""))
	})
})

var _ = Describe("client wiring", Label("scope:integration", "layer:client", "dep:udp", "b:client-startup", "r:high"), func() {
	It("connects a Runner to a freshly started grid server and exchanges snapshots", func() {
		cfg, err := config.Default()
		Expect(err).NotTo(HaveOccurred())

		gridServer, err := server.New(cfg, "127.0.0.1:0", "", logr.Discard())
		Expect(err).NotTo(HaveOccurred())

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go gridServer.Serve(ctx)

		runner, err := client.NewRunner(cfg, gridServer.LocalAddr().String(), nil, nil, logr.Discard())
		Expect(err).NotTo(HaveOccurred())
		defer runner.Close()

		Eventually(func() bool {
			more, frameErr := runner.Frame(config.Timestep)
			Expect(frameErr).NotTo(HaveOccurred())
			_, gotSnapshot := runner.Predictor().LastServerTick()
			return more && gotSnapshot && runner.Predictor().PredictedTick() > 0
		}, 2*time.Second, 10*time.Millisecond).Should(BeTrue())
	})

	It("relays a voice packet queued on one Runner to a second Runner's Incoming queue", func() {
		cfg, err := config.Default()
		Expect(err).NotTo(HaveOccurred())

		gridServer, err := server.New(cfg, "127.0.0.1:0", "", logr.Discard())
		Expect(err).NotTo(HaveOccurred())

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go gridServer.Serve(ctx)

		addr := gridServer.LocalAddr().String()
		runnerA, err := client.NewRunner(cfg, addr, nil, nil, logr.Discard())
		Expect(err).NotTo(HaveOccurred())
		defer runnerA.Close()
		runnerB, err := client.NewRunner(cfg, addr, nil, nil, logr.Discard())
		Expect(err).NotTo(HaveOccurred())
		defer runnerB.Close()

		runnerA.Voice().Outgoing.Push(voice.Packet{Payload: []byte("hi")})

		var received voice.Packet
		Eventually(func() bool {
			_, frameErrA := runnerA.Frame(config.Timestep)
			Expect(frameErrA).NotTo(HaveOccurred())
			_, frameErrB := runnerB.Frame(config.Timestep)
			Expect(frameErrB).NotTo(HaveOccurred())
			p, ok := runnerB.Voice().Incoming.Pop()
			if ok {
				received = p
			}
			return ok
		}, 2*time.Second, 10*time.Millisecond).Should(BeTrue())
		Expect(received.Payload).To(Equal([]byte("hi")))
	})
})
