package target

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQEMUConfigArgs(t *testing.T) {
	tests := []struct {
		name    string
		cfg     QEMUConfig
		want    []string
		wantErr bool
	}{
		{
			name: "stdio defaults",
			cfg:  QEMUConfig{Kernel: "bootloader.elf"},
			want: []string{"-M", "virt", "-display", "none", "-serial", "stdio", "-bios", "none", "-kernel", "bootloader.elf"},
		},
		{
			name: "tcp console with extras",
			cfg:  QEMUConfig{Kernel: "bl.elf", Machine: "sifive_u", Serial: SerialTCP, SerialPort: 4444, ExtraArgs: []string{"-s"}},
			want: []string{"-M", "sifive_u", "-display", "none", "-serial", "tcp:127.0.0.1:4444,server,nowait", "-bios", "none", "-kernel", "bl.elf", "-s"},
		},
		{
			name: "telnet console",
			cfg:  QEMUConfig{Kernel: "bl.elf", Serial: SerialTelnet, SerialPort: 5555},
			want: []string{"-M", "virt", "-display", "none", "-serial", "telnet:127.0.0.1:5555,server,nowait", "-bios", "none", "-kernel", "bl.elf"},
		},
		{name: "no kernel", cfg: QEMUConfig{}, wantErr: true},
		{name: "tcp without port", cfg: QEMUConfig{Kernel: "bl.elf", Serial: SerialTCP}, wantErr: true},
		{name: "unknown serial", cfg: QEMUConfig{Kernel: "bl.elf", Serial: "pty"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.cfg.Args()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Args() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestQEMUConfigLauncher(t *testing.T) {
	l, err := QEMUConfig{Binary: "/opt/qemu", Kernel: "bl.elf"}.Launcher()
	require.NoError(t, err)
	proc, ok := l.(*ProcessLauncher)
	require.True(t, ok)
	assert.Equal(t, "/opt/qemu", proc.Path)

	l, err = QEMUConfig{Kernel: "bl.elf", Serial: SerialTelnet, SerialPort: 4444}.Launcher()
	require.NoError(t, err)
	bridged, ok := l.(*BridgedLauncher)
	require.True(t, ok)
	assert.IsType(t, &TelnetLauncher{}, bridged.Console)
	assert.Equal(t, DefaultEmulator, bridged.Process.(*ProcessLauncher).Path)

	_, err = QEMUConfig{}.Launcher()
	assert.Error(t, err)
}

func TestQEMUConfigString(t *testing.T) {
	s := QEMUConfig{Kernel: "bootloader.elf"}.String()
	assert.Equal(t, "qemu-system-riscv32 -M virt -display none -serial stdio -bios none -kernel bootloader.elf", s)
}
