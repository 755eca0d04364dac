package util

import (
	"strings"
	"testing"
)

func TestHashBytes(t *testing.T) {
	testData := []byte("test data")
	hash := HashBytes(testData)

	if len(hash) != 64 {
		t.Errorf("HashBytes returned %d hex chars, expected 64", len(hash))
	}

	// Hash should be consistent
	if hash != HashBytes(testData) {
		t.Error("HashBytes returned different hashes for same data")
	}

	// Different data should produce different hashes
	if hash == HashBytes([]byte("different data")) {
		t.Error("HashBytes returned same hash for different data")
	}
}

func TestContentHash(t *testing.T) {
	data := []byte("test image data")

	full := ContentHash(data, 0)
	if len(full) != 16 {
		t.Fatalf("ContentHash returned %d chars, expected 16", len(full))
	}
	if short := ContentHash(data, 8); short != full[:8] {
		t.Errorf("ContentHash(8) = %s, expected prefix of %s", short, full)
	}
	if long := ContentHash(data, 99); long != full {
		t.Errorf("ContentHash(99) = %s, expected %s", long, full)
	}
}

func TestObjectKey(t *testing.T) {
	testData := []byte("test image data")
	ext := ".jpg"

	key := ObjectKey(testData, ext)

	if key[2:3] != "/" {
		t.Error("ObjectKey should have slash separator at position 2")
	}
	if !strings.HasSuffix(key, ext) {
		t.Error("ObjectKey should end with extension")
	}
	if key != ObjectKey(testData, ext) {
		t.Error("ObjectKey returned different keys for same data")
	}
	if key == ObjectKey([]byte("other"), ext) {
		t.Error("ObjectKey returned same key for different data")
	}
}
