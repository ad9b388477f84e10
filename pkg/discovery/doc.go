// Package discovery implements mDNS/DNS-SD discovery of networked RVBL
// targets.
//
// Simulated targets and serial-over-TCP bridges advertise a single service
// type so a validator can find them without being told an address.
//
// # Target Discovery (_rvbl._tcp)
//
// Instance name format: RVBL-<name>
// TXT records include: proto (protocol version), kind (sim or bridge),
// con (console framing: tcp or telnet), and optionally board and ver.
//
// Addresses seen on several interfaces are merged into one entry; an entry
// disappears once every address it was seen on has been withdrawn.
package discovery
