package discovery

import (
	"net"
	"strings"
	"testing"

	"github.com/enbility/zeroconf/v3"
	"github.com/google/go-cmp/cmp"
)

func TestTargetTXTRoundTrip(t *testing.T) {
	info := &TargetInfo{
		Kind:    KindSim,
		Console: ConsoleTCP,
		Board:   "qemu_virt",
		Version: "1.0",
	}

	strs := TXTRecordsToStrings(EncodeTargetTXT(info))
	want := []string{"board=qemu_virt", "con=tcp", "kind=sim", "proto=1", "ver=1.0"}
	if diff := cmp.Diff(want, strs); diff != "" {
		t.Fatalf("TXT strings mismatch (-want +got):\n%s", diff)
	}

	decoded, err := DecodeTargetTXT(StringsToTXTRecords(strs))
	if err != nil {
		t.Fatalf("DecodeTargetTXT failed: %v", err)
	}
	info.Protocol = ProtocolVersion
	if diff := cmp.Diff(info, decoded); diff != "" {
		t.Errorf("decoded info mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeTargetTXTErrors(t *testing.T) {
	tests := []struct {
		name string
		txt  TXTRecordMap
	}{
		{"MissingProto", TXTRecordMap{"kind": "sim", "con": "tcp"}},
		{"BadProto", TXTRecordMap{"proto": "x", "kind": "sim", "con": "tcp"}},
		{"ZeroProto", TXTRecordMap{"proto": "0", "kind": "sim", "con": "tcp"}},
		{"MissingKind", TXTRecordMap{"proto": "1", "con": "tcp"}},
		{"MissingConsole", TXTRecordMap{"proto": "1", "kind": "sim"}},
		{"BadConsole", TXTRecordMap{"proto": "1", "kind": "sim", "con": "ssh"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeTargetTXT(tt.txt); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestStringsToTXTRecords(t *testing.T) {
	txt := StringsToTXTRecords([]string{"a=1", "flag", "b=x=y", ""})
	want := TXTRecordMap{"a": "1", "flag": "", "b": "x=y"}
	if diff := cmp.Diff(want, txt); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestInstanceName(t *testing.T) {
	name, err := InstanceName("bench-1")
	if err != nil || name != "RVBL-bench-1" {
		t.Errorf("InstanceName = %q, %v", name, err)
	}
	if _, err := InstanceName(""); err == nil {
		t.Error("expected error for empty name")
	}
	if _, err := InstanceName(strings.Repeat("x", 60)); err == nil {
		t.Error("expected error for long name")
	}
}

func TestEntryToTarget(t *testing.T) {
	entry := &zeroconf.ServiceEntry{}
	entry.Instance = "RVBL-bench"
	entry.HostName = "bench.local."
	entry.Port = 4444
	entry.Text = []string{"proto=1", "kind=bridge", "con=telnet"}
	entry.AddrIPv4 = []net.IP{net.ParseIP("192.168.1.20")}

	svc := entryToTarget(entry)
	if svc == nil {
		t.Fatal("expected service")
	}
	if svc.Info.Name != "bench" || svc.Info.Kind != KindBridge || svc.Info.Port != 4444 {
		t.Errorf("unexpected info: %+v", svc.Info)
	}
	if got := svc.Address(); got != "192.168.1.20:4444" {
		t.Errorf("Address() = %q", got)
	}

	entry.Text = []string{"something=else"}
	if entryToTarget(entry) != nil {
		t.Error("foreign TXT records should be ignored")
	}
}

func TestTargetServiceAddress(t *testing.T) {
	tests := []struct {
		name string
		svc  TargetService
		want string
	}{
		{"prefers IPv4", TargetService{Host: "h.local.", Port: 1, Addresses: []string{"fe80::1", "10.0.0.2"}}, "10.0.0.2:1"},
		{"IPv6 only", TargetService{Host: "h.local.", Port: 1, Addresses: []string{"fe80::1"}}, "[fe80::1]:1"},
		{"host fallback", TargetService{Host: "h.local.", Port: 2}, "h.local.:2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.svc.Address(); got != tt.want {
				t.Errorf("Address() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMergeAndRemoveAddresses(t *testing.T) {
	addrs := mergeAddresses([]string{"10.0.0.1"}, []string{"10.0.0.1", "fe80::1"})
	if diff := cmp.Diff([]string{"10.0.0.1", "fe80::1"}, addrs); diff != "" {
		t.Fatalf("merge mismatch (-want +got):\n%s", diff)
	}

	entry := &zeroconf.ServiceEntry{}
	entry.AddrIPv6 = []net.IP{net.ParseIP("fe80::1")}
	addrs = removeAddresses(addrs, entry)
	if diff := cmp.Diff([]string{"10.0.0.1"}, addrs); diff != "" {
		t.Errorf("remove mismatch (-want +got):\n%s", diff)
	}
}

func TestFilters(t *testing.T) {
	svc := &TargetService{InstanceName: "RVBL-a", Info: TargetInfo{Kind: KindSim}}
	if !FilterByKind(KindSim)(svc) || FilterByKind(KindBridge)(svc) {
		t.Error("FilterByKind mismatch")
	}
	if !FilterByName("a")(svc) || FilterByName("b")(svc) {
		t.Error("FilterByName mismatch")
	}
}
