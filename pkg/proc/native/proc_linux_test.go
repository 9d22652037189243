package native

import (
	"bytes"
	"os"
	"testing"
)

func TestReadOwnMemory(t *testing.T) {
	mem, err := openProcessMemory(os.Getpid())
	if err != nil {
		t.Fatal(err)
	}
	defer mem.Close()

	want := []byte("process::process_manager")
	got := make([]byte, len(want))
	n, err := mem.ReadMemory(got, addressOf(want))
	if err != nil || n != len(want) {
		t.Fatalf("ReadMemory: %d %v", n, err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("read %q, expected %q", got, want)
	}

	if n, err := mem.ReadMemory(got, 0); err == nil {
		t.Fatalf("read of address 0 succeeded (%d bytes)", n)
	}
}

func TestAttachMissingProcess(t *testing.T) {
	// pid_max never reaches this value.
	if _, err := Attach(1<<30, ""); err == nil {
		t.Fatal("attach to a missing process succeeded")
	}
}
