package decoder

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

const (
	RTL433     = "rtl_433"
	RTLFM      = "rtl_fm"
	Dump1090   = "dump1090"
	CatSniffer = "catsniffer"
)

var (
	// ErrUnknownDecoder is returned for a decoder name without a command profile
	ErrUnknownDecoder = errors.New("unknown decoder")

	// ErrUnsupportedFrequency is returned when a decoder cannot listen on the requested frequency
	ErrUnsupportedFrequency = errors.New("frequency not supported by decoder")
)

// CatSnifferConfig locates the CatSniffer sniffing script and its serial port
type CatSnifferConfig struct {
	Python string `yaml:"python" json:"python"` // interpreter, default python3
	Script string `yaml:"script" json:"script"` // path to cat_sniffer.py
	Port   string `yaml:"port" json:"port"`     // serial device, default /dev/ttyACM1
}

// Config holds the per-host settings of the decoder command profiles
type Config struct {
	DeviceIndex     int              `yaml:"deviceIndex" json:"deviceIndex"`         // RTL-SDR index for rtl_fm and dump1090
	OutputDirectory string           `yaml:"outputDirectory" json:"outputDirectory"` // where rtl_fm writes demodulated audio
	CatSniffer      CatSnifferConfig `yaml:"catsniffer" json:"catsniffer"`
}

// Invocation is a fully built decoder command line
type Invocation struct {
	Decoder   string
	Frequency float64
	Name      string
	Args      []string

	// OutputFile is set for decoders writing binary output, which is kept
	// out of the line stream
	OutputFile string
}

// Decoders returns the names of every known decoder
func Decoders() []string {
	return []string{RTL433, RTLFM, Dump1090, CatSniffer}
}

// Command builds the invocation of decoder listening on freq
func (c *Config) Command(decoder string, freq float64) (*Invocation, error) {
	if freq <= 0 {
		return nil, fmt.Errorf("decoder: frequency must be positive: %g", freq)
	}

	inv := Invocation{
		Decoder:   decoder,
		Frequency: freq,
	}

	hz := strconv.FormatInt(int64(freq), 10)

	switch decoder {
	case RTL433:
		inv.Name = RTL433
		inv.Args = []string{"-f", hz, "-F", "json", "-M", "level", "-M", "time:unix"}

	case RTLFM:
		dir := c.OutputDirectory
		if dir == "" {
			dir = os.TempDir()
		}
		inv.Name = RTLFM
		inv.OutputFile = filepath.Join(dir, fmt.Sprintf("fm_%s.raw", hz))
		inv.Args = []string{
			"-f", hz, "-M", "fm", "-s", "200k", "-A", "fast",
			"-d", strconv.Itoa(c.DeviceIndex),
			inv.OutputFile,
		}

	case Dump1090:
		inv.Name = Dump1090
		inv.Args = []string{"--device-index", strconv.Itoa(c.DeviceIndex), "--interactive"}

	case CatSniffer:
		phy, channel, err := CatSnifferChannel(freq)
		if err != nil {
			return nil, err
		}

		python := c.CatSniffer.Python
		if python == "" {
			python = "python3"
		}
		port := c.CatSniffer.Port
		if port == "" {
			port = "/dev/ttyACM1"
		}
		if c.CatSniffer.Script == "" {
			return nil, fmt.Errorf("decoder: %s script path is not configured", CatSniffer)
		}

		inv.Name = python
		inv.Args = []string{c.CatSniffer.Script, "sniff", port, "--phy", phy, "-c", strconv.Itoa(channel), "--fifo"}

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownDecoder, decoder)
	}

	return &inv, nil
}

// CatSnifferChannel picks the protocol and channel for a 2.4 GHz frequency.
// Below 2420 MHz it listens on BLE advertising channel 37; from 2420 to
// 2475 MHz on the IEEE 802.15.4 channel 11 + (f - 2405 MHz) / 5 MHz.
func CatSnifferChannel(freq float64) (string, int, error) {
	switch {
	case freq < 2400e6 || freq > 2483.5e6:
		return "", 0, fmt.Errorf("%w: %s listens on 2400 - 2483.5 MHz, %g Hz given", ErrUnsupportedFrequency, CatSniffer, freq)
	case freq < 2420e6:
		return "ble", 37, nil
	case freq <= 2475e6:
		return "zigbee", 11 + int((freq-2405e6)/5e6), nil
	default:
		return "ble", 37, nil
	}
}
