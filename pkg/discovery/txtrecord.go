package discovery

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// TXTRecordMap is a map of TXT record key-value pairs.
type TXTRecordMap map[string]string

// EncodeTargetTXT creates TXT records for a target.
func EncodeTargetTXT(info *TargetInfo) TXTRecordMap {
	proto := info.Protocol
	if proto == 0 {
		proto = ProtocolVersion
	}
	txt := TXTRecordMap{
		TXTKeyProtocol: strconv.Itoa(proto),
		TXTKeyKind:     info.Kind,
		TXTKeyConsole:  info.Console,
	}
	if info.Board != "" {
		txt[TXTKeyBoard] = info.Board
	}
	if info.Version != "" {
		txt[TXTKeyVersion] = info.Version
	}
	return txt
}

// DecodeTargetTXT parses target TXT records.
func DecodeTargetTXT(txt TXTRecordMap) (*TargetInfo, error) {
	info := &TargetInfo{}

	protoStr, ok := txt[TXTKeyProtocol]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeyProtocol)
	}
	proto, err := strconv.Atoi(protoStr)
	if err != nil || proto <= 0 {
		return nil, fmt.Errorf("%w: %s=%q", ErrInvalidValue, TXTKeyProtocol, protoStr)
	}
	info.Protocol = proto

	if info.Kind, ok = txt[TXTKeyKind]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeyKind)
	}

	info.Console, ok = txt[TXTKeyConsole]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeyConsole)
	}
	if info.Console != ConsoleTCP && info.Console != ConsoleTelnet {
		return nil, fmt.Errorf("%w: %s=%q", ErrInvalidValue, TXTKeyConsole, info.Console)
	}

	info.Board = txt[TXTKeyBoard]
	info.Version = txt[TXTKeyVersion]
	return info, nil
}

// TXTRecordsToStrings converts a TXTRecordMap to sorted "key=value" strings.
func TXTRecordsToStrings(txt TXTRecordMap) []string {
	result := make([]string, 0, len(txt))
	for k, v := range txt {
		result = append(result, k+"="+v)
	}
	sort.Strings(result)
	return result
}

// StringsToTXTRecords parses "key=value" strings into a TXTRecordMap.
func StringsToTXTRecords(strs []string) TXTRecordMap {
	txt := make(TXTRecordMap)
	for _, s := range strs {
		k, v, found := strings.Cut(s, "=")
		if found {
			txt[k] = v
		} else if k != "" {
			txt[k] = ""
		}
	}
	return txt
}

// InstanceName builds the instance name for a target name.
func InstanceName(name string) (string, error) {
	full := InstancePrefix + name
	if name == "" || len(full) > MaxInstanceNameLength {
		return "", fmt.Errorf("%w: %q", ErrInvalidInstanceName, full)
	}
	return full, nil
}
