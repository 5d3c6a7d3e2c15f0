package compression_test

import (
	"bytes"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/orbitalrush/grid/internal/compression"
)

func TestCompression(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Snapshot Compression Suite")
}

var _ = Describe("Compress/Decompress", Label("scope:unit", "layer:compression", "dep:s2", "b:roundtrip", "r:medium"), func() {
	It("round-trips an arbitrary payload", func() {
		src := bytes.Repeat([]byte("orbital rush snapshot payload "), 200)
		compressed := compression.Compress(nil, src)
		Expect(len(compressed)).To(BeNumerically("<", len(src)))

		out, err := compression.Decompress(compressed)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal(src))
	})

	It("round-trips an empty payload", func() {
		compressed := compression.Compress(nil, nil)
		out, err := compression.Decompress(compressed)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(BeEmpty())
	})

	It("rejects a corrupted block", func() {
		_, err := compression.Decompress([]byte{0xff, 0xff, 0xff, 0xff, 0xff})
		Expect(err).To(HaveOccurred())
	})
})
