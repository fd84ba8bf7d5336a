package transport

// Dialer creates TCP handles sharing one configuration.
type Dialer struct {
	config Config
}

// NewDialer creates a Dialer. Zero config fields take their defaults.
func NewDialer(config Config) *Dialer {
	return &Dialer{config: config.withDefaults()}
}

// Config returns the effective handle configuration.
func (d *Dialer) Config() Config {
	return d.config
}

// NewHandle creates an unconnected TCP handle reporting to handler.
func (d *Dialer) NewHandle(handler Handler) Handle {
	return NewConn(d.config, handler)
}
