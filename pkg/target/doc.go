// Package target launches and tears down the device under test.
//
// A target is anything that exposes the bootloader console as a byte
// stream: an emulator process on stdio, the in-process simulator, a serial
// port, or a TCP or telnet serial bridge. Every launcher returns a Handle
// whose Terminate is safe to call more than once.
package target
