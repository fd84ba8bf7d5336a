package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/enbility/zeroconf/v3"
)

// AdvertiserConfig configures sink advertisement.
type AdvertiserConfig struct {
	// Instance is the DNS-SD instance name (default: DefaultInstance).
	Instance string

	// Port is the advertised sink port (default: DefaultPort).
	Port int

	// Name is an optional human-readable name published in TXT records.
	Name string

	// Interface restricts advertisement to one network interface.
	// Empty means all interfaces.
	Interface string

	// TTL overrides the record TTL (0 = zeroconf default).
	TTL time.Duration

	// Logger receives operational logging. Defaults to slog.Default().
	Logger *slog.Logger
}

// Advertiser publishes a sink over mDNS.
type Advertiser struct {
	config AdvertiserConfig

	mu     sync.Mutex
	server *zeroconf.Server
}

// NewAdvertiser creates an advertiser. Zero config fields take defaults.
func NewAdvertiser(config AdvertiserConfig) (*Advertiser, error) {
	if config.Instance == "" {
		config.Instance = DefaultInstance
	}
	if config.Port == 0 {
		config.Port = DefaultPort
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if err := ValidateInstanceName(config.Instance); err != nil {
		return nil, err
	}
	return &Advertiser{config: config}, nil
}

// Start begins advertising.
func (a *Advertiser) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		return ErrAlreadyAdvertising
	}

	var opts []zeroconf.ServerOption
	if a.config.TTL > 0 {
		opts = append(opts, zeroconf.TTL(uint32(a.config.TTL.Seconds())))
	}

	server, err := zeroconf.Register(
		a.config.Instance,
		ServiceType,
		Domain,
		a.config.Port,
		TXTRecordsToStrings(EncodeServiceTXT(a.config.Name)),
		selectInterfaces(a.config.Interface),
		opts...,
	)
	if err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceType, err)
	}

	a.config.Logger.Info("advertising sink", "instance", a.config.Instance, "service", ServiceType, "port", a.config.Port)
	a.server = server
	return nil
}

// Stop withdraws the advertisement. It is safe to call when not advertising.
func (a *Advertiser) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}
}

// BrowserConfig configures browsing.
type BrowserConfig struct {
	// Interface restricts browsing to one network interface.
	// Empty means all interfaces.
	Interface string
}

// browseFunc runs a DNS-SD browse until ctx is done, delivering entries.
type browseFunc func(ctx context.Context, service string, entries, removed chan *zeroconf.ServiceEntry) error

// Browser finds sinks over mDNS.
type Browser struct {
	config BrowserConfig
	browse browseFunc
}

// NewBrowser creates a browser.
func NewBrowser(config BrowserConfig) *Browser {
	b := &Browser{config: config}
	b.browse = func(ctx context.Context, service string, entries, removed chan *zeroconf.ServiceEntry) error {
		var opts []zeroconf.ClientOption
		if ifaces := selectInterfaces(config.Interface); ifaces != nil {
			opts = append(opts, zeroconf.SelectIfaces(ifaces))
		}
		return zeroconf.Browse(ctx, service, Domain, entries, removed, opts...)
	}
	return b
}

// Browse searches for sinks until ctx is done. Services are aggregated by
// instance name; each instance is delivered once, when first seen. The
// channel closes early if the underlying browse fails.
func (b *Browser) Browse(ctx context.Context) (<-chan *Service, error) {
	out, _ := b.start(ctx)
	return out, nil
}

// start runs a browse and reports a browse failure on the returned error
// channel before closing the service channel.
func (b *Browser) start(ctx context.Context) (<-chan *Service, <-chan error) {
	ctx, cancel := context.WithCancel(ctx)
	out := make(chan *Service)
	errc := make(chan error, 1)

	entries := make(chan *zeroconf.ServiceEntry)
	removed := make(chan *zeroconf.ServiceEntry)

	go func() {
		defer close(out)
		defer cancel()

		services := make(map[string]*Service)
		for {
			select {
			case entry, ok := <-entries:
				if !ok {
					return
				}
				svc := entryToService(entry)
				if existing, found := services[svc.Instance]; found {
					existing.Addresses = mergeAddresses(existing.Addresses, svc.Addresses)
					continue
				}
				services[svc.Instance] = svc
				select {
				case out <- svc:
				case <-ctx.Done():
					return
				}

			case entry, ok := <-removed:
				if !ok {
					removed = nil
					continue
				}
				if existing, found := services[entry.Instance]; found {
					existing.Addresses = removeAddresses(existing.Addresses, entry)
					if len(existing.Addresses) == 0 {
						delete(services, entry.Instance)
					}
				}

			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		err := b.browse(ctx, ServiceType, entries, removed)
		if err != nil && ctx.Err() == nil {
			errc <- fmt.Errorf("failed to browse %s: %w", ServiceType, err)
			cancel()
		}
	}()

	return out, errc
}

// FindFirst returns the first sink that has a usable address. It gives up
// after BrowseTimeout unless ctx ends sooner.
func (b *Browser) FindFirst(ctx context.Context) (*Service, error) {
	ctx, cancel := context.WithTimeout(ctx, BrowseTimeout)
	defer cancel()

	results, errc := b.start(ctx)

	for {
		select {
		case err := <-errc:
			return nil, err
		case svc, ok := <-results:
			if !ok {
				select {
				case err := <-errc:
					return nil, err
				default:
				}
				if err := ctx.Err(); err != nil {
					return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
				}
				return nil, ErrNotFound
			}
			if _, _, err := svc.Endpoint(); err == nil {
				return svc, nil
			}
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", ErrNotFound, ctx.Err())
		}
	}
}

// selectInterfaces returns the named interface, or nil for all interfaces.
func selectInterfaces(name string) []net.Interface {
	if name == "" {
		return nil
	}
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return nil
	}
	return []net.Interface{*iface}
}

// entryToService converts a zeroconf entry to a Service.
func entryToService(entry *zeroconf.ServiceEntry) *Service {
	txt := StringsToTXTRecords(entry.Text)

	addrs := make([]string, 0, len(entry.AddrIPv4)+len(entry.AddrIPv6))
	for _, ip := range entry.AddrIPv4 {
		addrs = append(addrs, ip.String())
	}
	for _, ip := range entry.AddrIPv6 {
		addrs = append(addrs, ip.String())
	}

	return &Service{
		Instance:  entry.Instance,
		Host:      entry.HostName,
		Port:      entry.Port,
		Addresses: addrs,
		Name:      txt[TXTKeyName],
		Text:      txt,
	}
}

// mergeAddresses adds new addresses to existing list, avoiding duplicates.
func mergeAddresses(existing, added []string) []string {
	seen := make(map[string]bool, len(existing))
	for _, addr := range existing {
		seen[addr] = true
	}
	for _, addr := range added {
		if !seen[addr] {
			existing = append(existing, addr)
			seen[addr] = true
		}
	}
	return existing
}

// removeAddresses removes the addresses of a zeroconf entry from the list.
func removeAddresses(addresses []string, entry *zeroconf.ServiceEntry) []string {
	toRemove := make(map[string]bool)
	for _, ip := range entry.AddrIPv4 {
		toRemove[ip.String()] = true
	}
	for _, ip := range entry.AddrIPv6 {
		toRemove[ip.String()] = true
	}

	result := make([]string, 0, len(addresses))
	for _, addr := range addresses {
		if !toRemove[addr] {
			result = append(result, addr)
		}
	}
	return result
}
