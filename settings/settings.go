// Package settings loads the display and headset calibration used by the
// distortion pass.
package settings

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/hashicorp/go-multierror"

	"github.com/go-theft-auto/videorender"
)

// Config is the on-disk calibration.
type Config struct {
	DisplayScreen DisplayScreen `yaml:"display_screen"`
	HMD           HMD           `yaml:"hmd"`
}

// DisplayScreen is the physical screen placed in the headset.
type DisplayScreen struct {
	DPIX         float32 `yaml:"dpi_x"`
	DPIY         float32 `yaml:"dpi_y"`
	DeviceMargin float32 `yaml:"device_margin"` // mm
}

// HMD is the lens calibration.
type HMD struct {
	Model string  `yaml:"model"`
	IPD   float32 `yaml:"ipd"` // mm
	Scale float32 `yaml:"scale"`
	PanH  float32 `yaml:"pan_h"`
	PanV  float32 `yaml:"pan_v"`
}

// Limits accepted by Validate.
const (
	MinIPD = 40.0
	MaxIPD = 90.0
	MaxPan = 1.0
)

// Default returns the calibration of a 5.5" 1080p phone in Cockpitglasses.
func Default() Config {
	return Config{
		DisplayScreen: DisplayScreen{
			DPIX:         401,
			DPIY:         401,
			DeviceMargin: 4,
		},
		HMD: HMD{
			Model: videorender.HMDModelCockpitGlasses.String(),
			IPD:   63,
			Scale: 1,
		},
	}
}

var _ io.ReaderFrom = (*Config)(nil)
var _ io.WriterTo = Config{}

// Read unmarshals b over the current values, so keys missing from b keep them.
func (cfg *Config) Read(b []byte) (int, error) {
	return len(b), yaml.Unmarshal(b, cfg)
}

// ReadFrom implements io.ReaderFrom.
func (cfg *Config) ReadFrom(r io.Reader) (int64, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return int64(len(b)), fmt.Errorf("unable to read: %w", err)
	}

	n, err := cfg.Read(b)
	return int64(n), err
}

// WriteTo implements io.WriterTo.
func (cfg Config) WriteTo(w io.Writer) (int64, error) {
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return 0, fmt.Errorf("unable to serialize the settings: %w", err)
	}
	return io.Copy(w, bytes.NewReader(b))
}

// ParseHMDModel maps a settings model name to its HMDModel.
func ParseHMDModel(name string) (videorender.HMDModel, error) {
	for _, m := range []videorender.HMDModel{
		videorender.HMDModelUnknown,
		videorender.HMDModelCockpitGlasses,
		videorender.HMDModelCockpitGlasses2,
	} {
		if strings.EqualFold(name, m.String()) {
			return m, nil
		}
	}
	return videorender.HMDModelUnknown, fmt.Errorf("unknown HMD model '%s'", name)
}

// Validate reports every invalid value at once.
func (cfg Config) Validate() error {
	var result *multierror.Error
	if cfg.DisplayScreen.DPIX <= 0 {
		result = multierror.Append(result, fmt.Errorf("display_screen.dpi_x must be positive, got %v", cfg.DisplayScreen.DPIX))
	}
	if cfg.DisplayScreen.DPIY <= 0 {
		result = multierror.Append(result, fmt.Errorf("display_screen.dpi_y must be positive, got %v", cfg.DisplayScreen.DPIY))
	}
	if cfg.DisplayScreen.DeviceMargin < 0 {
		result = multierror.Append(result, fmt.Errorf("display_screen.device_margin must not be negative, got %v", cfg.DisplayScreen.DeviceMargin))
	}
	if _, err := ParseHMDModel(cfg.HMD.Model); err != nil {
		result = multierror.Append(result, fmt.Errorf("hmd.model: %w", err))
	}
	if cfg.HMD.IPD < MinIPD || cfg.HMD.IPD > MaxIPD {
		result = multierror.Append(result, fmt.Errorf("hmd.ipd must be within [%v, %v] mm, got %v", MinIPD, MaxIPD, cfg.HMD.IPD))
	}
	if cfg.HMD.Scale <= 0 {
		result = multierror.Append(result, fmt.Errorf("hmd.scale must be positive, got %v", cfg.HMD.Scale))
	}
	if abs(cfg.HMD.PanH) > MaxPan {
		result = multierror.Append(result, fmt.Errorf("hmd.pan_h must be within [-%v, %v], got %v", MaxPan, MaxPan, cfg.HMD.PanH))
	}
	if abs(cfg.HMD.PanV) > MaxPan {
		result = multierror.Append(result, fmt.Errorf("hmd.pan_v must be within [-%v, %v], got %v", MaxPan, MaxPan, cfg.HMD.PanV))
	}
	return result.ErrorOrNil()
}

func abs(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

// Settings serves a validated Config to the renderer.
type Settings struct {
	screen videorender.DisplayScreen
	lens   videorender.HMDDistortion
}

var _ videorender.Settings = (*Settings)(nil)

// New validates cfg.
func New(cfg Config) (*Settings, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	model, _ := ParseHMDModel(cfg.HMD.Model)
	return &Settings{
		screen: videorender.DisplayScreen{
			DPIX:         cfg.DisplayScreen.DPIX,
			DPIY:         cfg.DisplayScreen.DPIY,
			DeviceMargin: cfg.DisplayScreen.DeviceMargin,
		},
		lens: videorender.HMDDistortion{
			Model: model,
			IPD:   cfg.HMD.IPD,
			Scale: cfg.HMD.Scale,
			PanH:  cfg.HMD.PanH,
			PanV:  cfg.HMD.PanV,
		},
	}, nil
}

// Parse reads YAML from r over Default and validates the result.
func Parse(r io.Reader) (*Settings, error) {
	cfg := Default()
	if _, err := cfg.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("unable to parse the settings: %w", err)
	}
	return New(cfg)
}

// Load reads the settings file at path.
func Load(path string) (*Settings, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open the settings file '%s': %w", path, err)
	}
	defer f.Close()
	return Parse(f)
}

// DisplayScreen implements videorender.Settings.
func (s *Settings) DisplayScreen() videorender.DisplayScreen {
	return s.screen
}

// HMDDistortion implements videorender.Settings.
func (s *Settings) HMDDistortion() videorender.HMDDistortion {
	return s.lens
}
