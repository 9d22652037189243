package leb128

import (
	"bytes"
	"testing"
)

func TestDecodeUnsigned(t *testing.T) {
	n, c, err := DecodeUnsigned(bytes.NewBuffer([]byte{0xE5, 0x8E, 0x26}))
	if err != nil {
		t.Fatal(err)
	}
	if n != 624485 {
		t.Fatal("Number was not decoded properly, got: ", n, c)
	}
	if c != 3 {
		t.Fatal("Count not returned correctly")
	}
}

func TestDecodeSigned(t *testing.T) {
	n, c, err := DecodeSigned(bytes.NewBuffer([]byte{0x9b, 0xf1, 0x59}))
	if err != nil {
		t.Fatal(err)
	}
	if n != -624485 {
		t.Fatal("Number was not decoded properly, got: ", n, c)
	}
}

func TestDecodeTruncated(t *testing.T) {
	if _, _, err := DecodeUnsigned(bytes.NewBuffer([]byte{0xE5, 0x8E})); err != ErrTruncated {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
	if _, _, err := DecodeSigned(bytes.NewBuffer(nil)); err != ErrTruncated {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
}
