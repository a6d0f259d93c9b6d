package config_test

import (
	"os"
	"path/filepath"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/ghodgson/ev-charge-ledger/internal/config"
)

func TestConfig(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Config Suite")
}

var _ = Describe("Load", func() {
	write := func(content string) string {
		GinkgoHelper()
		path := filepath.Join(GinkgoT().TempDir(), "config.yaml")
		Expect(os.WriteFile(path, []byte(content), 0o644)).To(Succeed())
		return path
	}

	It("returns defaults when no path is given", func() {
		cfg, err := config.Load("")
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.DefaultCurrency).To(Equal("AUD"))
		Expect(cfg.MinimumCostThreshold).To(Equal(0.10))
		Expect(cfg.HomeElectricityRate).To(Equal(0.25))
		Expect(cfg.LookbackDays).To(Equal(30))
		Expect(cfg.EVCCURL).To(Equal("http://homeassistant.local:7070"))
		Expect(cfg.EVCCEnabled).To(BeFalse())
	})

	It("returns defaults when the file does not exist", func() {
		cfg, err := config.Load(filepath.Join(GinkgoT().TempDir(), "missing.yaml"))
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.DefaultCurrency).To(Equal("AUD"))
	})

	It("overlays file values on the defaults", func() {
		path := write("email_dir: /data/emails\npdf_dir: /data/pdfs\nevcc_enabled: true\nhome_electricity_rate: 0.31\nlookback_days: 90\n")

		cfg, err := config.Load(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.EmailDir).To(Equal("/data/emails"))
		Expect(cfg.PDFDir).To(Equal("/data/pdfs"))
		Expect(cfg.EVCCEnabled).To(BeTrue())
		Expect(cfg.HomeElectricityRate).To(Equal(0.31))
		Expect(cfg.LookbackDays).To(Equal(90))
		// Untouched fields keep their defaults.
		Expect(cfg.DefaultCurrency).To(Equal("AUD"))
		Expect(cfg.MinimumCostThreshold).To(Equal(0.10))
	})

	It("rejects malformed YAML", func() {
		path := write("email_dir: [unclosed\n")

		_, err := config.Load(path)
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("parsing config file"))
	})
})
