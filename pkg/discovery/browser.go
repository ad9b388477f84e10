package discovery

import (
	"context"
	"fmt"

	"github.com/enbility/zeroconf/v3"
)

// Browser finds targets on the local network.
type Browser interface {
	// Browse streams targets as they are discovered until ctx ends.
	Browse(ctx context.Context) (<-chan *TargetService, error)

	// FindFirst returns the first target accepted by filter.
	FindFirst(ctx context.Context, filter FilterFunc) (*TargetService, error)
}

// FilterFunc selects browse results. A nil filter accepts everything.
type FilterFunc func(*TargetService) bool

// FilterByKind accepts targets of the given kind.
func FilterByKind(kind string) FilterFunc {
	return func(s *TargetService) bool {
		return s.Info.Kind == kind
	}
}

// FilterByName accepts the target with the given name (without prefix).
func FilterByName(name string) FilterFunc {
	return func(s *TargetService) bool {
		return s.InstanceName == InstancePrefix+name
	}
}

// MDNSBrowser implements Browser using zeroconf.
type MDNSBrowser struct {
	config BrowserConfig
}

// NewMDNSBrowser creates a new mDNS browser.
func NewMDNSBrowser(config BrowserConfig) *MDNSBrowser {
	return &MDNSBrowser{config: config}
}

// Browse searches for targets. Services are aggregated by instance name:
// addresses from multiple interfaces are combined into a single entry, which
// is emitted once when first seen.
func (b *MDNSBrowser) Browse(ctx context.Context) (<-chan *TargetService, error) {
	out := make(chan *TargetService)
	entries := make(chan *zeroconf.ServiceEntry)
	removed := make(chan *zeroconf.ServiceEntry)

	go func() {
		defer close(out)
		services := make(map[string]*TargetService)

		for {
			select {
			case entry, ok := <-entries:
				if !ok {
					return
				}
				svc := entryToTarget(entry)
				if svc == nil {
					continue
				}
				if existing, found := services[svc.InstanceName]; found {
					existing.Addresses = mergeAddresses(existing.Addresses, svc.Addresses)
					continue
				}
				services[svc.InstanceName] = svc
				select {
				case out <- svc:
				case <-ctx.Done():
					return
				}

			case entry, ok := <-removed:
				if !ok {
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

	var opts []zeroconf.ClientOption
	if ifaces := interfaces(b.config.Interface); ifaces != nil {
		opts = append(opts, zeroconf.SelectIfaces(ifaces))
	}
	go func() {
		_ = zeroconf.Browse(ctx, ServiceType, Domain, entries, removed, opts...)
	}()

	return out, nil
}

// FindFirst browses until a target passes filter or the configured timeout
// elapses.
func (b *MDNSBrowser) FindFirst(ctx context.Context, filter FilterFunc) (*TargetService, error) {
	if b.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.config.Timeout)
		defer cancel()
	}

	results, err := b.Browse(ctx)
	if err != nil {
		return nil, err
	}
	for svc := range results {
		if filter == nil || filter(svc) {
			return svc, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, ServiceType)
}

// entryToTarget converts a zeroconf entry, or returns nil if its TXT
// records are not those of a target.
func entryToTarget(entry *zeroconf.ServiceEntry) *TargetService {
	info, err := DecodeTargetTXT(StringsToTXTRecords(entry.Text))
	if err != nil {
		return nil
	}

	addrs := make([]string, 0, len(entry.AddrIPv4)+len(entry.AddrIPv6))
	for _, ip := range entry.AddrIPv4 {
		addrs = append(addrs, ip.String())
	}
	for _, ip := range entry.AddrIPv6 {
		addrs = append(addrs, ip.String())
	}

	info.Port = uint16(entry.Port)
	if len(entry.Instance) > len(InstancePrefix) {
		info.Name = entry.Instance[len(InstancePrefix):]
	}

	return &TargetService{
		InstanceName: entry.Instance,
		Host:         entry.HostName,
		Port:         uint16(entry.Port),
		Addresses:    addrs,
		Info:         *info,
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

// removeAddresses drops the entry's addresses from the list.
func removeAddresses(addresses []string, entry *zeroconf.ServiceEntry) []string {
	drop := make(map[string]bool)
	for _, ip := range entry.AddrIPv4 {
		drop[ip.String()] = true
	}
	for _, ip := range entry.AddrIPv6 {
		drop[ip.String()] = true
	}

	result := make([]string, 0, len(addresses))
	for _, addr := range addresses {
		if !drop[addr] {
			result = append(result, addr)
		}
	}
	return result
}

var _ Browser = (*MDNSBrowser)(nil)
