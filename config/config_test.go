package config_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/akita/v4/sim"
	"github.com/sarchlab/marssx86/config"
	"github.com/sarchlab/marssx86/machine"
)

var _ = Describe("Parse", func() {
	It("fills defaults with no arguments", func() {
		cfg, err := config.Parse(nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Machine).To(Equal("default"))
		Expect(cfg.CoreFreq).To(Equal(1.0))
		Expect(cfg.EnableChecker).To(BeFalse())
	})

	It("parses the configuration surface spec §6 names", func() {
		cfg, err := config.Parse([]string{
			"-machine", "atom",
			"-stopinsns", "1000",
			"-stopcycle", "5000",
			"-enable-checker",
			"-perfect-cache",
			"-stats", "out.bin",
			"-yamlstats", "out.yaml",
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Machine).To(Equal("atom"))
		Expect(cfg.StopInsns).To(Equal(uint64(1000)))
		Expect(cfg.StopCycle).To(Equal(uint64(5000)))
		Expect(cfg.EnableChecker).To(BeTrue())
		Expect(cfg.PerfectCache).To(BeTrue())
		Expect(cfg.Stats).To(Equal("out.bin"))
		Expect(cfg.YAMLStats).To(Equal("out.yaml"))
	})
})

var _ = Describe("MachineBuilder", func() {
	It("builds a machine with a single out-of-order core and no fixture file", func() {
		cfg, err := config.Parse(nil)
		Expect(err).NotTo(HaveOccurred())

		levels := []machine.LevelSpec{
			{Name: "l1d", Sets: 8, Ways: 4, LineSize: 64, ReadPorts: 1, WritePorts: 1, Latency: 2, LinkDelay: 1, Capacity: 8},
		}

		m, err := config.NewMachineBuilder(sim.NewSerialEngine(), cfg).
			WithOutOfOrderCore(levels).
			Build("test-machine")

		Expect(err).NotTo(HaveOccurred())
		Expect(m).NotTo(BeNil())
		Expect(m.Cycle()).To(Equal(uint64(0)))
	})

	It("rejects a machine with no cores", func() {
		cfg, err := config.Parse(nil)
		Expect(err).NotTo(HaveOccurred())

		_, err = config.NewMachineBuilder(sim.NewSerialEngine(), cfg).Build("empty")
		Expect(err).To(HaveOccurred())
	})
})
