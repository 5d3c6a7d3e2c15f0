package client_test

import (
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/orbitalrush/grid/internal/client"
	"github.com/orbitalrush/grid/internal/entities"
	"github.com/orbitalrush/grid/internal/mathutil"
	"github.com/orbitalrush/grid/internal/proto"
)

var _ = Describe("Recorder and Replayer", Label("scope:unit", "layer:client", "dep:fs", "b:record-replay", "r:medium"), func() {
	var path string

	BeforeEach(func() {
		path = filepath.Join(GinkgoT().TempDir(), "inputs.rec")
	})

	It("replays recorded frames in order with identical content", func() {
		frames := []proto.InputFrame{
			{Tick: 0, ID: 0, Movement: mathutil.NewVec2(1, 0), TakeOverSquad: -1},
			{Tick: 1, ID: 1, Movement: mathutil.NewVec2(0, 1), DoBuild: true, BuildType: entities.BoxHullpiece, TakeOverSquad: -1},
			{Tick: 2, ID: 2, TakeOverSquad: -1},
		}

		rec, err := client.NewRecorder(path)
		Expect(err).NotTo(HaveOccurred())
		for i := range frames {
			Expect(rec.Write(&frames[i])).To(Succeed())
		}
		Expect(rec.Close()).To(Succeed())

		replay, err := client.OpenReplayer(path)
		Expect(err).NotTo(HaveOccurred())
		defer replay.Close()

		for _, want := range frames {
			got, err := replay.Next()
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal(want))
		}

		_, err = replay.Next()
		Expect(err).To(MatchError(client.ErrReplayExhausted))
	})

	It("drives a Runner-facing InputSource until exhausted", func() {
		rec, err := client.NewRecorder(path)
		Expect(err).NotTo(HaveOccurred())
		f := proto.InputFrame{Tick: 0, ID: 0, TakeOverSquad: -1}
		Expect(rec.Write(&f)).To(Succeed())
		Expect(rec.Close()).To(Succeed())

		replay, err := client.OpenReplayer(path)
		Expect(err).NotTo(HaveOccurred())
		defer replay.Close()

		source := client.NewReplayInputSource(replay)
		_, ok := source.Next()
		Expect(ok).To(BeTrue())
		_, ok = source.Next()
		Expect(ok).To(BeFalse())
	})
})
