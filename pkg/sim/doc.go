// Package sim implements a simulated RVBL bootloader.
//
// The simulator speaks the same UART update protocol as the real firmware:
//
//	target: RVBL bootloader banner, then "BOOT?"
//	host:   "u"                 target: "OK"
//	host:   "SEND <n>\n"        target: "READY"
//	host:   <n payload bytes>   target: "CRC?", "CRC32=0x........", "OK"
//	                            target: "REBOOT"
//
// Faults can be injected to exercise every failure path of a host-side
// validator: a silent boot, a rejected update request, a target that dies
// after entering update mode, a corrupted flash write and so on.
package sim
