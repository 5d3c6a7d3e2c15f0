package session

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/orbitalrush/grid/internal/entities"
	"github.com/orbitalrush/grid/internal/mathutil"
	"github.com/orbitalrush/grid/internal/proto"
)

func TestQueue(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Input Merge Queue Suite")
}

func frame(id, tick uint64) proto.InputFrame {
	return proto.InputFrame{ID: id, Tick: tick, TakeOverSquad: -1}
}

var _ = Describe("MergeQueue", Label("scope:unit", "layer:session", "b:input-merge", "r:high"), func() {
	It("adopts a frame not yet processed", func() {
		q := NewMergeQueue()
		q.Merge([]proto.InputFrame{frame(1, 10)})

		got, ok := q.Take(10)
		Expect(ok).To(BeTrue())
		Expect(got.ID).To(BeEquivalentTo(1))
	})

	It("ignores redundant retransmission of an already-processed id", func() {
		q := NewMergeQueue()
		q.Merge([]proto.InputFrame{frame(1, 10)})
		q.Take(10)

		q.Merge([]proto.InputFrame{frame(1, 10), frame(2, 11)})

		_, ok := q.Take(10)
		Expect(ok).To(BeFalse(), "id 1 was already processed, must not be re-adopted")
		_, ok = q.Take(11)
		Expect(ok).To(BeTrue())
	})

	It("processes a redundantly retransmitted queue without duplicating effects", func() {
		q := NewMergeQueue()
		batch := []proto.InputFrame{frame(1, 10), frame(2, 11), frame(3, 12)}

		q.Merge(batch)
		q.Merge(batch) // same packet retransmitted
		q.Merge(batch)

		Expect(q.Pending()).To(Equal(3))
	})

	It("OR-merges event flags across ids landing on the same tick", func() {
		q := NewMergeQueue()
		f1 := frame(1, 10)
		f1.DoBuild = true
		f2 := frame(2, 10)
		f2.SeatAction = true

		q.Merge([]proto.InputFrame{f1, f2})

		got, ok := q.Take(10)
		Expect(ok).To(BeTrue())
		Expect(got.DoBuild).To(BeTrue())
		Expect(got.SeatAction).To(BeTrue())
	})

	It("does not let a later false overwrite an already-merged true flag", func() {
		q := NewMergeQueue()
		f1 := frame(1, 10)
		f1.DoBuild = true
		f2 := frame(2, 10)
		f2.DoBuild = false

		q.Merge([]proto.InputFrame{f1, f2})

		got, _ := q.Take(10)
		Expect(got.DoBuild).To(BeTrue())
	})

	It("takes the newest value for continuous fields", func() {
		q := NewMergeQueue()
		f1 := frame(1, 10)
		f1.Movement = mathutil.NewVec2(1, 0)
		f2 := frame(2, 10)
		f2.Movement = mathutil.NewVec2(0, 1)

		q.Merge([]proto.InputFrame{f1, f2})

		got, _ := q.Take(10)
		Expect(got.Movement).To(Equal(mathutil.NewVec2(0, 1)))
	})

	It("fills InviteThisPlayer only if unset", func() {
		q := NewMergeQueue()
		target := entities.EntityID{Index: 7, Generation: 1}
		f1 := frame(1, 10)
		f1.InviteThisPlayer = target
		f2 := frame(2, 10) // leaves InviteThisPlayer nil

		q.Merge([]proto.InputFrame{f1, f2})

		got, _ := q.Take(10)
		Expect(got.InviteThisPlayer).To(Equal(target))
	})

	It("merges out-of-order ids correctly by sorting before adopting", func() {
		q := NewMergeQueue()
		q.Merge([]proto.InputFrame{frame(3, 12), frame(1, 10), frame(2, 11)})

		_, ok1 := q.Take(10)
		_, ok2 := q.Take(11)
		_, ok3 := q.Take(12)
		Expect(ok1).To(BeTrue())
		Expect(ok2).To(BeTrue())
		Expect(ok3).To(BeTrue())
	})

	It("reports zero pending on a fresh queue", func() {
		q := NewMergeQueue()
		Expect(q.Pending()).To(Equal(0))
	})

	It("Take removes the frame once consumed", func() {
		q := NewMergeQueue()
		q.Merge([]proto.InputFrame{frame(1, 10)})
		q.Take(10)

		_, ok := q.Take(10)
		Expect(ok).To(BeFalse())
	})
})
