// Package config parses the command-line configuration surface (spec §6)
// into a flat struct and builds a machine.Machine from it, the way the
// teacher's DeviceBuilder parsed mesh dimensions into a wired CGRA
// device.
package config

import (
	"flag"
	"fmt"

	"github.com/sarchlab/akita/v4/monitoring"
	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/marssx86/decode"
	"github.com/sarchlab/marssx86/machine"
)

// Config is the flat struct the command-line keys parse into (spec §6:
// "Command-line keys parsed into a flat struct; the subset affecting the
// core: machine, stopinsns/stopcycle/stoprip/startrip, fast-fwd-insns,
// core-freq, enable-checker, perfect-cache, logfile/loglevel,
// stats/yamlstats, snapshot-cycles").
type Config struct {
	Machine string

	StopInsns uint64
	StopCycle uint64
	StopRIP   uint64
	StartRIP  uint64

	FastFwdInsns uint64
	CoreFreq     float64

	EnableChecker bool
	PerfectCache  bool

	LogFile  string
	LogLevel string

	Stats      string
	YAMLStats  string

	SnapshotCycles uint64

	FixtureFile string
}

// Parse parses args (typically os.Args[1:]) into a Config, the same flag-
// based shape the teacher's samples/fir/main.go reads its own
// engine/freq/dump flags from (that file has no dedicated config file to
// ground a third-party flag library choice on, and no other repo in the
// pack imports one either, so stdlib flag is the only surface the corpus
// shows for this concern).
func Parse(args []string) (*Config, error) {
	fs := flag.NewFlagSet("marssx86", flag.ContinueOnError)

	cfg := &Config{}
	fs.StringVar(&cfg.Machine, "machine", "default", "machine configuration name")
	fs.Uint64Var(&cfg.StopInsns, "stopinsns", 0, "stop after this many committed instructions (0 = unbounded)")
	fs.Uint64Var(&cfg.StopCycle, "stopcycle", 0, "stop at this cycle (0 = unbounded)")
	fs.Uint64Var(&cfg.StopRIP, "stoprip", 0, "stop on reaching this RIP")
	fs.Uint64Var(&cfg.StartRIP, "startrip", 0, "RIP to begin timing simulation at (parsed only; not applied by the machine)")
	fs.Uint64Var(&cfg.FastFwdInsns, "fast-fwd-insns", 0, "instructions to fast-forward before timing starts (parsed only; not applied by the machine)")
	fs.Float64Var(&cfg.CoreFreq, "core-freq", 1.0, "core frequency in GHz")
	fs.BoolVar(&cfg.EnableChecker, "enable-checker", false, "shadow functional checker alongside the timing core (parsed only; no checker is started)")
	fs.BoolVar(&cfg.PerfectCache, "perfect-cache", false, "treat every access as an L1 hit (parsed only; the hierarchy does not consult it)")
	fs.StringVar(&cfg.LogFile, "logfile", "", "log output path (empty = stderr)")
	fs.StringVar(&cfg.LogLevel, "loglevel", "info", "log verbosity")
	fs.StringVar(&cfg.Stats, "stats", "", "binary stats output path (empty = no binary stats)")
	fs.StringVar(&cfg.YAMLStats, "yamlstats", "", "YAML stats output path (empty = no YAML stats)")
	fs.Uint64Var(&cfg.SnapshotCycles, "snapshot-cycles", 0, "stats snapshot interval in cycles (parsed only; stats are written once, at exit)")
	fs.StringVar(&cfg.FixtureFile, "fixture", "", "YAML basic-block fixture file, in lieu of a real x86 decoder")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MachineBuilder wires a Config into a machine.Machine, the same chained
// With*/Build(name) shape as the teacher's config.DeviceBuilder, retargeted
// from CGRA mesh dimensions to core count and cache/directory geometry.
type MachineBuilder struct {
	engine  sim.Engine
	cfg     *Config
	monitor *monitoring.Monitor

	dirCapacity int
	dirLatency  uint64
	lineSize    int

	cores []machine.CoreKind
	specs [][]machine.LevelSpec
}

// WithMonitor attaches a monitoring.Monitor to the machine.Builder this
// MachineBuilder eventually constructs (spec §A monitoring), the same
// pass-through shape the teacher's config.DeviceBuilder.WithMonitor has.
func (b MachineBuilder) WithMonitor(monitor *monitoring.Monitor) MachineBuilder {
	b.monitor = monitor
	return b
}

// NewMachineBuilder starts a MachineBuilder for cfg, driven by engine.
func NewMachineBuilder(engine sim.Engine, cfg *Config) MachineBuilder {
	return MachineBuilder{engine: engine, cfg: cfg, dirCapacity: 64, dirLatency: 20, lineSize: 64}
}

// WithDirectory overrides the shared directory's capacity, access latency
// and cache-line size (spec §4.4).
func (b MachineBuilder) WithDirectory(capacity int, latency uint64, lineSize int) MachineBuilder {
	b.dirCapacity, b.dirLatency, b.lineSize = capacity, latency, lineSize
	return b
}

// WithOutOfOrderCore queues an out-of-order core (spec §4.5) to be added
// with the given private cache chain.
func (b MachineBuilder) WithOutOfOrderCore(levels []machine.LevelSpec) MachineBuilder {
	b.cores = append(b.cores, machine.KindOutOfOrder)
	b.specs = append(b.specs, levels)
	return b
}

// WithInOrderCore queues a two-wide in-order Atom-style core (spec §4.6).
func (b MachineBuilder) WithInOrderCore(levels []machine.LevelSpec) MachineBuilder {
	b.cores = append(b.cores, machine.KindInOrder)
	b.specs = append(b.specs, levels)
	return b
}

// Build constructs the Machine named name, loading uop fixtures from
// b.cfg.FixtureFile (spec §1: decoding real x86 bytes is out of scope; a
// fixture translator stands in, mirroring the teacher's
// core.LoadProgramFileFromYAML-driven samples).
func (b MachineBuilder) Build(name string) (*machine.Machine, error) {
	if len(b.cores) == 0 {
		return nil, fmt.Errorf("config: MachineBuilder needs at least one core")
	}

	var translator decode.Translator
	if b.cfg.FixtureFile != "" {
		t, err := decode.LoadFixtureTranslatorYAML(b.cfg.FixtureFile)
		if err != nil {
			return nil, fmt.Errorf("config: loading fixture file: %w", err)
		}
		translator = t
	} else {
		translator = decode.NewFixtureTranslator(nil)
	}

	freq := sim.Freq(b.cfg.CoreFreq) * sim.GHz
	mb := machine.NewBuilder(b.engine, freq, b.dirCapacity, b.dirLatency, b.lineSize)
	if b.monitor != nil {
		mb = mb.WithMonitor(b.monitor)
	}

	for i, kind := range b.cores {
		levels := b.specs[i]
		switch kind {
		case machine.KindOutOfOrder:
			mb = mb.WithOutOfOrderCore(levels, translator, 64, 128, 192, 64, 4, 4, 4)
		case machine.KindInOrder:
			mb = mb.WithInOrderCore(levels, translator, 64, 2, 2)
		}
	}

	m := mb.Build(name)
	m.StopCycle = b.cfg.StopCycle
	m.StopInsns = b.cfg.StopInsns
	m.StopRIP = b.cfg.StopRIP
	return m, nil
}
