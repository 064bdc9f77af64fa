package dartscore

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/swdee/go-dartscore/geometry"
	"github.com/swdee/go-dartscore/tracker"
)

// Config holds the tunables of a scoring session
type Config struct {
	// DetectionIntervalS is the minimum spacing in seconds between processed
	// frames
	DetectionIntervalS float64 `yaml:"detection_interval_s"`
	// ThrowDelayS is the time in seconds after a finalized throw before any
	// frame is processed again
	ThrowDelayS float64 `yaml:"throw_delay_s"`
	// IoUThreshold is the overlap above which two dart boxes are the same dart
	IoUThreshold float64 `yaml:"iou_threshold"`
	// ConfidenceFloor is the minimum detection confidence accepted
	ConfidenceFloor float64 `yaml:"confidence_floor"`
	// MaxDarts is the number of tracked darts scored per throw
	MaxDarts int `yaml:"max_darts"`
	// MinLiveCalibration is the number of calibration markers that must be
	// visible in a frame before a throw is finalized
	MinLiveCalibration int `yaml:"min_live_calibration"`
	// BoardSize is the pixel size of the square board reference frame
	BoardSize int `yaml:"board_size"`
	// GameMode is the starting score of a count down game, 0 for free play
	GameMode int `yaml:"game_mode"`
	// ClassNames maps detector class IDs to labels
	ClassNames []string `yaml:"class_names"`
	// UpdateBuffer is the capacity of the session Updates channel
	UpdateBuffer int `yaml:"update_buffer"`
	// MQTT holds the optional score publisher settings
	MQTT MQTTConfig `yaml:"mqtt"`
}

// MQTTConfig contains MQTT broker settings
type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Topic    string `yaml:"topic"`
	QoS      byte   `yaml:"qos"`
	Retain   bool   `yaml:"retain"`
}

// DefaultConfig returns a Config populated with standard defaults
func DefaultConfig() *Config {
	return &Config{
		DetectionIntervalS: 1,
		ThrowDelayS:        7,
		IoUThreshold:       tracker.DefaultIoUThreshold,
		ConfidenceFloor:    0.2,
		MaxDarts:           3,
		MinLiveCalibration: 3,
		BoardSize:          800,
		GameMode:           0,
		ClassNames:         append([]string(nil), DefaultClassNames...),
		UpdateBuffer:       16,
		MQTT: MQTTConfig{
			ClientID: "dartscore",
			Topic:    "dartscore/scores",
		},
	}
}

// Validate clamps values to safe ranges, it only errors on settings that
// have no sensible replacement
func (c *Config) Validate() error {

	if c.DetectionIntervalS < 0 {
		c.DetectionIntervalS = 1
	}
	if c.ThrowDelayS < 0 {
		c.ThrowDelayS = 7
	}
	if c.IoUThreshold <= 0 || c.IoUThreshold >= 1 {
		c.IoUThreshold = tracker.DefaultIoUThreshold
	}
	if c.ConfidenceFloor < 0 || c.ConfidenceFloor > 1 {
		c.ConfidenceFloor = 0.2
	}
	if c.MaxDarts <= 0 {
		c.MaxDarts = 3
	}
	if c.MinLiveCalibration <= 0 {
		c.MinLiveCalibration = 3
	}
	if c.BoardSize <= 0 {
		c.BoardSize = 800
	}
	if c.GameMode < 0 {
		c.GameMode = 0
	}
	if len(c.ClassNames) == 0 {
		c.ClassNames = append([]string(nil), DefaultClassNames...)
	}
	if c.UpdateBuffer <= 0 {
		c.UpdateBuffer = 16
	}
	if c.MQTT.QoS > 2 {
		return fmt.Errorf("invalid mqtt qos %d", c.MQTT.QoS)
	}

	return nil
}

// DetectionInterval returns the minimum spacing between processed frames
func (c *Config) DetectionInterval() time.Duration {
	return seconds(c.DetectionIntervalS)
}

// ThrowDelay returns the cooldown after a finalized throw
func (c *Config) ThrowDelay() time.Duration {
	return seconds(c.ThrowDelayS)
}

// ReferenceSize returns the board reference frame size used for calibration
func (c *Config) ReferenceSize() geometry.Size {
	return geometry.Size{Width: float64(c.BoardSize), Height: float64(c.BoardSize)}
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// LoadConfig reads configuration from the given YAML file path.  Fields not
// present keep their default value and a missing file returns the defaults.
func LoadConfig(path string) (*Config, error) {

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)

	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}
