package config

import (
	"os"
	"path/filepath"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestConfig(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Config Suite")
}

var _ = Describe("Config", Label("scope:unit", "layer:config", "dep:fs", "b:config-load", "r:low"), func() {
	It("loads embedded defaults", func() {
		cfg, err := Default()
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Physics.GravitationalConstant).To(Equal(1.0))
		Expect(cfg.Server.Port).To(Equal("9100"))
	})

	It("overlays a file on top of defaults, keeping unset fields", func() {
		dir := GinkgoT().TempDir()
		overlay := filepath.Join(dir, "overlay.yaml")
		Expect(os.WriteFile(overlay, []byte("server:\n  port: \"9200\"\n"), 0o644)).To(Succeed())

		cfg, err := Load(overlay)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Server.Port).To(Equal("9200"))
		// Untouched field retains its embedded default.
		Expect(cfg.Physics.GravitationalConstant).To(Equal(1.0))
	})

	It("round-trips through WriteYAML", func() {
		dir := GinkgoT().TempDir()
		out := filepath.Join(dir, "effective.yaml")

		cfg, err := Default()
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.WriteYAML(out)).To(Succeed())

		reloaded, err := Load(out)
		Expect(err).NotTo(HaveOccurred())
		Expect(reloaded.Missile.BurnDuration).To(Equal(cfg.Missile.BurnDuration))
	})
})
