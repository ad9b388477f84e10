package discovery

import (
	"errors"
	"net"
	"strconv"
	"time"
)

// Service constants.
const (
	// ServiceType is the DNS-SD service type advertised by targets.
	ServiceType = "_rvbl._tcp"

	// Domain is the mDNS domain.
	Domain = "local."

	// InstancePrefix starts every instance name.
	InstancePrefix = "RVBL-"

	// ProtocolVersion is the UART update protocol revision advertised.
	ProtocolVersion = 1

	// DefaultPort is the conventional console port.
	DefaultPort = 4444

	// MaxInstanceNameLength is the DNS label limit.
	MaxInstanceNameLength = 63
)

// Target kinds.
const (
	KindSim    = "sim"
	KindBridge = "bridge"
)

// Console framings.
const (
	ConsoleTCP    = "tcp"
	ConsoleTelnet = "telnet"
)

// TXT record keys.
const (
	TXTKeyProtocol = "proto"
	TXTKeyKind     = "kind"
	TXTKeyConsole  = "con"
	TXTKeyBoard    = "board"
	TXTKeyVersion  = "ver"
)

// Discovery errors.
var (
	// ErrMissingRequired indicates a required TXT key is absent.
	ErrMissingRequired = errors.New("missing required TXT record")

	// ErrInvalidValue indicates a TXT value could not be parsed.
	ErrInvalidValue = errors.New("invalid TXT record value")

	// ErrInvalidInstanceName indicates an instance name is empty or too long.
	ErrInvalidInstanceName = errors.New("invalid instance name")

	// ErrNotFound indicates no matching target was seen before the deadline.
	ErrNotFound = errors.New("no target found")
)

// TargetInfo is what a target advertises about itself.
type TargetInfo struct {
	// Name is the instance name suffix (after InstancePrefix).
	Name string

	// Port is the console port.
	Port uint16

	// Kind is KindSim or KindBridge.
	Kind string

	// Console is ConsoleTCP or ConsoleTelnet.
	Console string

	// Board is the board identifier (optional).
	Board string

	// Version is the bootloader or simulator version (optional).
	Version string

	// Protocol is the advertised protocol revision.
	Protocol int
}

// TargetService is a target found by browsing.
type TargetService struct {
	InstanceName string
	Host         string
	Port         uint16
	Addresses    []string
	Info         TargetInfo
}

// Address returns host:port for dialing, preferring an IPv4 address.
func (s *TargetService) Address() string {
	host := s.Host
	for _, a := range s.Addresses {
		ip := net.ParseIP(a)
		if ip == nil {
			continue
		}
		if ip.To4() != nil {
			host = a
			break
		}
		if host == s.Host {
			host = a
		}
	}
	return net.JoinHostPort(host, strconv.Itoa(int(s.Port)))
}

// AdvertiserConfig configures an advertiser.
type AdvertiserConfig struct {
	// Interface restricts advertising to one interface. Empty uses all.
	Interface string

	// TTL is the record time-to-live.
	TTL time.Duration
}

// DefaultAdvertiserConfig returns the default advertiser configuration.
func DefaultAdvertiserConfig() AdvertiserConfig {
	return AdvertiserConfig{TTL: 120 * time.Second}
}

// BrowserConfig configures a browser.
type BrowserConfig struct {
	// Interface restricts browsing to one interface. Empty uses all.
	Interface string

	// Timeout bounds FindFirst.
	Timeout time.Duration
}

// DefaultBrowserConfig returns the default browser configuration.
func DefaultBrowserConfig() BrowserConfig {
	return BrowserConfig{Timeout: 5 * time.Second}
}
