package config

const (
	defaultDataDir             = "~/.local/share/gantry/data"
	defaultLogDir              = "~/.local/share/gantry/logs"
	defaultAPIBind             = "127.0.0.1:7416"
	defaultPrinterDevice       = "/dev/ttyUSB0"
	defaultPrinterBaud         = 115200
	defaultAckTimeoutSeconds   = 5
	defaultProbeTimeoutSeconds = 2
	defaultProbeInterval       = 5
	defaultConvertTimeout      = 120
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Printer: Printer{
			Device:              defaultPrinterDevice,
			Baud:                defaultPrinterBaud,
			AckTimeoutSeconds:   defaultAckTimeoutSeconds,
			ProbeTimeoutSeconds: defaultProbeTimeoutSeconds,
			ProbeInterval:       defaultProbeInterval,
		},
		Converter: Converter{
			RequestTimeoutSeconds: defaultConvertTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
