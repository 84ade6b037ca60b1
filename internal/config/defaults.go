package config

const (
	defaultDevice           = "/dev/ttyACM0"
	defaultBaud             = 115200
	defaultReadTimeoutMS    = 100
	defaultSOF0             = 0xAA
	defaultSOF1             = 0x55
	defaultMaxPayload       = 16
	defaultPortName         = "Control Panel"
	defaultSendAttempts     = 5
	defaultBackoffInitialMS = 200
	defaultBackoffMaxMS     = 2000
	defaultReadyTimeoutMS   = 60000
	defaultLogLevel         = "info"
	defaultLogFormat        = "auto"
)
