// Package config loads the iibd YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/iib-interlock/internal/adc"
	"github.com/sweeney/iib-interlock/internal/gpio"
	"github.com/sweeney/iib-interlock/internal/log"
	"github.com/sweeney/iib-interlock/internal/mathx"
	"github.com/sweeney/iib-interlock/internal/profile"
	"github.com/sweeney/iib-interlock/internal/telemetry"
)

// DefaultPath is where iibd looks for its configuration.
const DefaultPath = "/etc/iibd/iibd.yaml"

type Config struct {
	Board BoardConfig `yaml:"board"`
	Ticks TickConfig  `yaml:"ticks"`
	ADC   ADCConfig   `yaml:"adc"`
	RTD   RTDConfig   `yaml:"rtd"`
	Env   EnvConfig   `yaml:"env"`
	GPIO  GPIOConfig  `yaml:"gpio"`
	CAN   CANConfig   `yaml:"can"`
	MQTT  MQTTConfig  `yaml:"mqtt"`
	HTTP  HTTPConfig  `yaml:"http"`
	Store StoreConfig `yaml:"store"`
	Log   LogConfig   `yaml:"log"`
}

type BoardConfig struct {
	ID      uint8  `yaml:"id"`
	Variant string `yaml:"variant"`
	// LEDPolarity has no default: deployed boards use both conventions.
	LEDPolarity string `yaml:"led_polarity"`
}

type TickConfig struct {
	App       time.Duration `yaml:"app"`
	Telemetry time.Duration `yaml:"telemetry"`
	LED       time.Duration `yaml:"led"`
}

type ADCConfig struct {
	Backend  string         `yaml:"backend"` // iio or fake
	Device   string         `yaml:"device"`
	Channels map[string]int `yaml:"channels"`
	MaxPolls int            `yaml:"max_polls"` // 0 waits forever
	FakeRaw  uint16         `yaml:"fake_raw"`
}

type RTDConfig struct {
	Backend         string  `yaml:"backend"` // spi or fake
	Device          string  `yaml:"device"`
	FakeTemperature float64 `yaml:"fake_temperature"`
}

type EnvConfig struct {
	Backend     string  `yaml:"backend"` // htu21d or fixed
	Bus         string  `yaml:"bus"`
	Humidity    float32 `yaml:"humidity"`
	Temperature float32 `yaml:"temperature"`
}

type GPIOConfig struct {
	Backend   string          `yaml:"backend"` // cdev or fake
	Chip      string          `yaml:"chip"`
	Outputs   map[string]int  `yaml:"outputs"`
	Inputs    map[string]int  `yaml:"inputs"`
	ActiveLow map[string]bool `yaml:"active_low"`
}

type CANConfig struct {
	Backend   string `yaml:"backend"` // socketcan, slcan or fake
	Interface string `yaml:"interface"`
	Device    string `yaml:"device"`
	Baud      int    `yaml:"baud"`
	Bitrate   int    `yaml:"bitrate"`
}

type MQTTConfig struct {
	Broker     string        `yaml:"broker"` // empty disables MQTT
	ClientID   string        `yaml:"client_id"`
	BufferSize int           `yaml:"buffer_size"`
	Heartbeat  time.Duration `yaml:"heartbeat"` // 0 disables
}

type HTTPConfig struct {
	Addr string `yaml:"addr"` // empty disables the status server
}

type StoreConfig struct {
	Path       string `yaml:"path"` // empty disables persistence
	MaxHistory int    `yaml:"max_history"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns a configuration for a Raspberry Pi carrier board.
// Unmapped GPIO lines are not requested.
func Default() *Config {
	return &Config{
		Board: BoardConfig{
			ID:      1,
			Variant: "FAC_OS",
		},
		Ticks: TickConfig{
			App:       time.Millisecond,
			Telemetry: 10 * time.Millisecond,
			LED:       500 * time.Millisecond,
		},
		ADC: ADCConfig{
			Backend:  "iio",
			Device:   "/sys/bus/iio/devices/iio:device0",
			MaxPolls: 1000,
			FakeRaw:  adc.DefaultOffset,
		},
		RTD: RTDConfig{
			Backend:         "spi",
			FakeTemperature: 25,
		},
		Env: EnvConfig{
			Backend:     "htu21d",
			Bus:         "1",
			Humidity:    40,
			Temperature: 25,
		},
		GPIO: GPIOConfig{
			Backend: "cdev",
			Chip:    "gpiochip0",
			Outputs: map[string]int{
				"aux_relay":       5,
				"interlock_relay": 6,
				"led1":            17,
				"led2":            27,
				"led3":            22,
				"led4":            23,
				"led5":            24,
				"led6":            25,
				"led7":            4,
				"led8":            18,
				"led9":            20,
				"led10":           21,
				"mux_a0":          26,
				"mux_a1":          16,
			},
			Inputs: map[string]int{
				"driver1_error": 12,
				"driver2_error": 13,
				"gpdi1":         19,
				"gpdi2":         15,
			},
			ActiveLow: map[string]bool{
				"driver1_error": true,
				"driver2_error": true,
			},
		},
		CAN: CANConfig{
			Backend:   "socketcan",
			Interface: "can0",
			Device:    "/dev/ttyACM0",
			Baud:      115200,
			Bitrate:   500000,
		},
		MQTT: MQTTConfig{
			BufferSize: 64,
			Heartbeat:  15 * time.Minute,
		},
		HTTP: HTTPConfig{
			Addr: ":8080",
		},
		Store: StoreConfig{
			Path:       "/var/lib/iibd/iib.db",
			MaxHistory: 1000,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads filename on top of the defaults. A missing file yields the
// defaults.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ensureDefaults()

	return cfg, nil
}

func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ensureDefaults fills zero values a partial file left behind. Fields where
// empty means disabled (MQTT broker, HTTP address, store path) are left alone.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.Ticks.App == 0 {
		c.Ticks.App = def.Ticks.App
	}
	if c.Ticks.Telemetry == 0 {
		c.Ticks.Telemetry = def.Ticks.Telemetry
	}
	if c.Ticks.LED == 0 {
		c.Ticks.LED = def.Ticks.LED
	}

	if c.ADC.Backend == "" {
		c.ADC.Backend = def.ADC.Backend
	}
	if c.ADC.Device == "" {
		c.ADC.Device = def.ADC.Device
	}
	if c.RTD.Backend == "" {
		c.RTD.Backend = def.RTD.Backend
	}
	if c.Env.Backend == "" {
		c.Env.Backend = def.Env.Backend
	}
	if c.Env.Bus == "" {
		c.Env.Bus = def.Env.Bus
	}

	if c.GPIO.Backend == "" {
		c.GPIO.Backend = def.GPIO.Backend
	}
	if c.GPIO.Chip == "" {
		c.GPIO.Chip = def.GPIO.Chip
	}
	if len(c.GPIO.Outputs) == 0 {
		c.GPIO.Outputs = def.GPIO.Outputs
	}

	if c.CAN.Backend == "" {
		c.CAN.Backend = def.CAN.Backend
	}
	if c.CAN.Interface == "" {
		c.CAN.Interface = def.CAN.Interface
	}
	if c.CAN.Device == "" {
		c.CAN.Device = def.CAN.Device
	}
	if c.CAN.Baud == 0 {
		c.CAN.Baud = def.CAN.Baud
	}
	if c.CAN.Bitrate == 0 {
		c.CAN.Bitrate = def.CAN.Bitrate
	}

	if c.MQTT.BufferSize == 0 {
		c.MQTT.BufferSize = def.MQTT.BufferSize
	}
	if c.Store.MaxHistory == 0 {
		c.Store.MaxHistory = def.Store.MaxHistory
	}
	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
}

// Validate reports every problem found, joined. An unknown variant is not an
// error here: the board runs the no-op profile and says so at start.
func (c *Config) Validate() error {
	var errs []error

	if !mathx.Between(c.Board.ID, 1, telemetry.MaxBoardID) {
		errs = append(errs, fmt.Errorf("board.id %d out of range 1..%d", c.Board.ID, telemetry.MaxBoardID))
	}
	if c.Board.LEDPolarity == "" {
		errs = append(errs, errors.New("board.led_polarity is required (fault-on or fault-off)"))
	} else if _, err := profile.ParseLEDPolarity(c.Board.LEDPolarity); err != nil {
		errs = append(errs, fmt.Errorf("board.led_polarity: %w", err))
	}

	if c.Ticks.App <= 0 || c.Ticks.Telemetry <= 0 || c.Ticks.LED <= 0 {
		errs = append(errs, errors.New("ticks must be positive"))
	}

	if !oneOf(c.ADC.Backend, "iio", "fake") {
		errs = append(errs, fmt.Errorf("adc.backend %q (want iio or fake)", c.ADC.Backend))
	}
	for name := range c.ADC.Channels {
		if _, ok := adc.Lookup(name); !ok {
			errs = append(errs, fmt.Errorf("adc.channels: unknown channel %q", name))
		}
	}
	if c.ADC.MaxPolls < 0 {
		errs = append(errs, errors.New("adc.max_polls must not be negative"))
	}
	if !oneOf(c.RTD.Backend, "spi", "fake") {
		errs = append(errs, fmt.Errorf("rtd.backend %q (want spi or fake)", c.RTD.Backend))
	}
	if !oneOf(c.Env.Backend, "htu21d", "fixed") {
		errs = append(errs, fmt.Errorf("env.backend %q (want htu21d or fixed)", c.Env.Backend))
	}
	if !oneOf(c.GPIO.Backend, "cdev", "fake") {
		errs = append(errs, fmt.Errorf("gpio.backend %q (want cdev or fake)", c.GPIO.Backend))
	}
	if _, err := c.Pins(); err != nil {
		errs = append(errs, err)
	}
	if !oneOf(c.CAN.Backend, "socketcan", "slcan", "fake") {
		errs = append(errs, fmt.Errorf("can.backend %q (want socketcan, slcan or fake)", c.CAN.Backend))
	}

	if c.MQTT.BufferSize < 0 {
		errs = append(errs, errors.New("mqtt.buffer_size must not be negative"))
	}
	if c.MQTT.Heartbeat < 0 {
		errs = append(errs, errors.New("mqtt.heartbeat must not be negative"))
	}
	if c.Store.MaxHistory < 0 {
		errs = append(errs, errors.New("store.max_history must not be negative"))
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// Variant resolves the configured variant. An unknown name returns
// profile.NumVariants, which selects the no-op profile.
func (c *Config) Variant() (profile.Variant, error) {
	return profile.ParseVariant(c.Board.Variant)
}

// LEDPolarity parses board.led_polarity.
func (c *Config) LEDPolarity() (profile.LEDPolarity, error) {
	return profile.ParseLEDPolarity(c.Board.LEDPolarity)
}

// Pins converts the named GPIO lines into chip offsets.
func (c *Config) Pins() (gpio.Pins, error) {
	p := gpio.Pins{
		Chip:      c.GPIO.Chip,
		Outputs:   make(map[gpio.Output]int, len(c.GPIO.Outputs)),
		Inputs:    make(map[gpio.Input]int, len(c.GPIO.Inputs)),
		ActiveLow: make(map[gpio.Input]bool, len(c.GPIO.ActiveLow)),
	}
	for name, off := range c.GPIO.Outputs {
		o, err := gpio.ParseOutput(name)
		if err != nil {
			return gpio.Pins{}, fmt.Errorf("gpio.outputs: %w", err)
		}
		p.Outputs[o] = off
	}
	for name, off := range c.GPIO.Inputs {
		in, err := gpio.ParseInput(name)
		if err != nil {
			return gpio.Pins{}, fmt.Errorf("gpio.inputs: %w", err)
		}
		p.Inputs[in] = off
	}
	for name, low := range c.GPIO.ActiveLow {
		in, err := gpio.ParseInput(name)
		if err != nil {
			return gpio.Pins{}, fmt.Errorf("gpio.active_low: %w", err)
		}
		p.ActiveLow[in] = low
	}
	return p, nil
}

func oneOf(s string, allowed ...string) bool {
	for _, a := range allowed {
		if s == a {
			return true
		}
	}
	return false
}
