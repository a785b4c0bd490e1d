// Package config loads the gNB control plane configuration: defaults,
// overlaid by an optional YAML file, overlaid by GNB_* environment
// variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/signalsfoundry/gnb-controlplane/internal/logging"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("config: invalid")

type Config struct {
	Log       logging.Config `yaml:"log"`
	Tracing   Tracing        `yaml:"tracing"`
	Scheduler Scheduler      `yaml:"scheduler"`
	Timers    Timers         `yaml:"timers"`
	Executors Executors      `yaml:"executors"`
	DU        DU             `yaml:"du"`
	F1AP      F1AP           `yaml:"f1ap"`
	E1AP      E1AP           `yaml:"e1ap"`
	Gateway   Gateway        `yaml:"gateway"`
	Metrics   Metrics        `yaml:"metrics"`
}

type Tracing struct {
	Enabled     bool    `yaml:"enabled"`
	ServiceName string  `yaml:"service_name"`
	Exporter    string  `yaml:"exporter"` // stdout | otlp
	Endpoint    string  `yaml:"endpoint"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

// Scheduler sizes the per-UE control loops.
type Scheduler struct {
	MaxUEs     int `yaml:"max_ues"`
	QueueDepth int `yaml:"queue_depth"`
}

// Timers configures the time controller. Quantum is the duration of one
// slot; the CU-CP ticks once per quantum.
type Timers struct {
	Quantum time.Duration `yaml:"quantum"`
	Mode    string        `yaml:"mode"` // realtime | accelerated
}

type Executors struct {
	QueueSize int `yaml:"queue_size"`
	// DLCells is the number of downlink cell executors of the DU.
	DLCells int `yaml:"dl_cells"`
}

type DU struct {
	ID         uint64 `yaml:"id"`
	Name       string `yaml:"name"`
	Numerology uint8  `yaml:"numerology"`
	Cells      []Cell `yaml:"cells"`
	// SchedConfigTimeout bounds the MAC scheduler answer, in subframes.
	SchedConfigTimeout uint32 `yaml:"sched_config_timeout"`
}

// Cell is a cell served by the DU, announced in F1 setup.
type Cell struct {
	PLMN    string `yaml:"plmn"`
	NCI     uint64 `yaml:"nci"`
	PCI     uint16 `yaml:"pci"`
	TAC     uint32 `yaml:"tac"`
	DLARFCN uint32 `yaml:"dl_arfcn"`
}

type F1AP struct {
	MaxSetupAttempts int `yaml:"max_setup_attempts"`
	// ResponseTimeout is in subframes.
	ResponseTimeout uint32 `yaml:"response_timeout"`
}

type E1AP struct {
	// ResponseTimeout is in quanta.
	ResponseTimeout uint32 `yaml:"response_timeout"`
	MaxUEIDs        uint32 `yaml:"max_ue_ids"`
}

// Gateway addresses. F1Peer is the CU the DU connects to and E1Peer the
// CU-UP the CU-CP drives.
type Gateway struct {
	Listen string `yaml:"listen"`
	F1Peer string `yaml:"f1_peer"`
	E1Peer string `yaml:"e1_peer"`
}

type Metrics struct {
	Listen string `yaml:"listen"`
}

// Default returns a configuration that passes Validate.
func Default() Config {
	return Config{
		Log: logging.Config{Level: "info", Format: "text"},
		Tracing: Tracing{
			ServiceName: "gnb-cp",
			Exporter:    "stdout",
			SampleRatio: 1,
		},
		Scheduler: Scheduler{MaxUEs: 1024, QueueDepth: 16},
		Timers:    Timers{Quantum: time.Millisecond, Mode: "realtime"},
		Executors: Executors{QueueSize: 4096, DLCells: 1},
		DU: DU{
			ID:                 1,
			Name:               "gnb-du-1",
			SchedConfigTimeout: 100,
			Cells: []Cell{
				{PLMN: "00101", NCI: 0x66c000, PCI: 1, TAC: 7, DLARFCN: 632628},
			},
		},
		F1AP:      F1AP{MaxSetupAttempts: 3, ResponseTimeout: 1000},
		E1AP:      E1AP{ResponseTimeout: 1000, MaxUEIDs: 65536},
		Gateway:   Gateway{Listen: ":38472"},
		Metrics:   Metrics{Listen: ":9090"},
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overlays GNB_* variables found through lookup, usually
// os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	var errs []error
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}

	str("GNB_LOG_LEVEL", &c.Log.Level)
	str("GNB_LOG_FORMAT", &c.Log.Format)
	if v, ok := lookup("GNB_TRACING_ENABLED"); ok && v != "" {
		c.Tracing.Enabled = strings.EqualFold(v, "true")
	}
	str("GNB_TRACING_SERVICE_NAME", &c.Tracing.ServiceName)
	if v, ok := lookup("GNB_TRACING_EXPORTER"); ok && v != "" {
		c.Tracing.Exporter = strings.ToLower(v)
	}
	str("GNB_OTLP_ENDPOINT", &c.Tracing.Endpoint)
	if v, ok := lookup("GNB_TRACING_SAMPLE_RATIO"); ok && v != "" {
		r, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("GNB_TRACING_SAMPLE_RATIO: %w", err))
		} else {
			c.Tracing.SampleRatio = r
		}
	}
	num("GNB_MAX_UES", &c.Scheduler.MaxUEs)
	num("GNB_QUEUE_DEPTH", &c.Scheduler.QueueDepth)
	if v, ok := lookup("GNB_TICK_QUANTUM"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("GNB_TICK_QUANTUM: %w", err))
		} else {
			c.Timers.Quantum = d
		}
	}
	str("GNB_TIME_MODE", &c.Timers.Mode)
	str("GNB_GATEWAY_LISTEN", &c.Gateway.Listen)
	str("GNB_F1_PEER", &c.Gateway.F1Peer)
	str("GNB_E1_PEER", &c.Gateway.E1Peer)
	str("GNB_METRICS_LISTEN", &c.Metrics.Listen)

	if len(errs) > 0 {
		return fmt.Errorf("config: environment: %w", errors.Join(errs...))
	}
	return nil
}

// Validate reports every problem found, joined.
func (c Config) Validate() error {
	var errs []error
	bad := func(field, format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: %s: %s", ErrInvalid, field, fmt.Sprintf(format, args...)))
	}

	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		bad("log.format", "%q is neither text nor json", c.Log.Format)
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		bad("tracing.sample_ratio", "%v out of [0,1]", c.Tracing.SampleRatio)
	}
	switch c.Tracing.Exporter {
	case "", "stdout", "otlp", "otlpgrpc":
	default:
		bad("tracing.exporter", "unsupported %q", c.Tracing.Exporter)
	}
	if c.Scheduler.MaxUEs <= 0 {
		bad("scheduler.max_ues", "must be positive, got %d", c.Scheduler.MaxUEs)
	}
	if c.Scheduler.QueueDepth <= 0 {
		bad("scheduler.queue_depth", "must be positive, got %d", c.Scheduler.QueueDepth)
	}
	if c.Timers.Quantum <= 0 {
		bad("timers.quantum", "must be positive, got %s", c.Timers.Quantum)
	}
	switch c.Timers.Mode {
	case "", "realtime", "real-time", "accelerated":
	default:
		bad("timers.mode", "unknown %q", c.Timers.Mode)
	}
	if c.Executors.QueueSize <= 0 {
		bad("executors.queue_size", "must be positive, got %d", c.Executors.QueueSize)
	}
	if c.Executors.DLCells <= 0 {
		bad("executors.dl_cells", "must be positive, got %d", c.Executors.DLCells)
	}
	if c.DU.Numerology > 4 {
		bad("du.numerology", "%d above 4", c.DU.Numerology)
	}
	if len(c.DU.Cells) == 0 {
		bad("du.cells", "no served cell")
	}
	if len(c.DU.Cells) > c.Executors.DLCells {
		bad("du.cells", "%d cells but %d downlink executors", len(c.DU.Cells), c.Executors.DLCells)
	}
	for i, cell := range c.DU.Cells {
		if l := len(cell.PLMN); l != 5 && l != 6 {
			bad(fmt.Sprintf("du.cells[%d].plmn", i), "%q is not 5 or 6 digits", cell.PLMN)
		}
		if cell.PCI > 1007 {
			bad(fmt.Sprintf("du.cells[%d].pci", i), "%d above 1007", cell.PCI)
		}
	}
	if c.F1AP.MaxSetupAttempts <= 0 {
		bad("f1ap.max_setup_attempts", "must be positive, got %d", c.F1AP.MaxSetupAttempts)
	}
	if c.F1AP.ResponseTimeout == 0 {
		bad("f1ap.response_timeout", "must be positive")
	}
	if c.E1AP.ResponseTimeout == 0 {
		bad("e1ap.response_timeout", "must be positive")
	}
	if c.Gateway.Listen == "" {
		bad("gateway.listen", "empty")
	}
	return errors.Join(errs...)
}

// SubframeDuration is the time between two DU timer ticks.
func (c Config) SubframeDuration() time.Duration {
	return c.Timers.Quantum * time.Duration(1<<c.DU.Numerology)
}
