package digest_test

import (
	"errors"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/jmerrifield20/recordchain/internal/digest"
)

func TestSHA256_knownVector(t *testing.T) {
	got := digest.SHA256.SumString("hello")
	want := "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"
	if got != want {
		t.Errorf("SumString(hello) = %q, want %q", got, want)
	}
	if b := digest.SHA256.Sum([]byte("hello")); b != want {
		t.Errorf("Sum(hello) = %q, want %q", b, want)
	}
}

func TestSumReader_matchesSum(t *testing.T) {
	data := strings.Repeat("record-", 10000)
	got, n, err := digest.SHA256.SumReader(strings.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	if n != int64(len(data)) {
		t.Errorf("bytes read = %d, want %d", n, len(data))
	}
	if got != digest.SHA256.SumString(data) {
		t.Error("streamed digest differs from in-memory digest")
	}
}

func TestSumReader_readError(t *testing.T) {
	boom := errors.New("disk gone")
	_, _, err := digest.SHA256.SumReader(iotest.ErrReader(boom))
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped read error, got %v", err)
	}
}

func TestLookup(t *testing.T) {
	for _, name := range []string{"", "sha256", "SHA3-256", "blake2b-256"} {
		a, err := digest.Lookup(name)
		if err != nil {
			t.Fatalf("Lookup(%q): %v", name, err)
		}
		if a.Size() != 64 {
			t.Errorf("%s: size = %d, want 64", a.Name(), a.Size())
		}
		if len(a.SumString("x")) != 64 {
			t.Errorf("%s: digest length != 64", a.Name())
		}
	}

	if _, err := digest.Lookup("md5"); !errors.Is(err, digest.ErrUnknownAlgorithm) {
		t.Errorf("Lookup(md5): expected ErrUnknownAlgorithm, got %v", err)
	}
}

func TestAlgorithms_differ(t *testing.T) {
	if digest.SHA256.SumString("x") == digest.SHA3_256.SumString("x") {
		t.Error("sha256 and sha3-256 produced the same digest")
	}
	if digest.SHA256.SumString("x") == digest.BLAKE2b256.SumString("x") {
		t.Error("sha256 and blake2b-256 produced the same digest")
	}
}
