package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jmerrifield20/recordchain/internal/chain"
	"github.com/jmerrifield20/recordchain/internal/digest"
	"github.com/jmerrifield20/recordchain/internal/store/file"
	"github.com/jmerrifield20/recordchain/pkg/client"
)

func writeSnapshot(t *testing.T, records []chain.Record) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "blockchain.json")
	st, err := file.New(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := st.Save(context.Background(), records); err != nil {
		t.Fatal(err)
	}
	return path
}

func sampleChain() []chain.Record {
	g := chain.Genesis(digest.SHA256, 1700000000)
	b1 := chain.New(digest.SHA256, 1, 1700000001, digest.SHA256.SumString("a"), g.Hash())
	return chain.Records([]chain.Block{g, b1})
}

func TestVerifySnapshotFile_valid(t *testing.T) {
	path := writeSnapshot(t, sampleChain())

	var out bytes.Buffer
	if err := verifySnapshotFile(&out, path, "sha256"); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !strings.Contains(out.String(), "2 blocks, chain is valid") {
		t.Errorf("unexpected output %q", out.String())
	}
}

func TestVerifySnapshotFile_tampered(t *testing.T) {
	records := sampleChain()
	records[1].FileHash = digest.SHA256.SumString("b")
	path := writeSnapshot(t, records)

	err := verifySnapshotFile(&bytes.Buffer{}, path, "sha256")
	if !errors.Is(err, chain.ErrIntegrity) {
		t.Fatalf("expected integrity error, got %v", err)
	}
	if !strings.Contains(err.Error(), "first bad block is 1") {
		t.Errorf("error does not name the block: %v", err)
	}
}

func TestVerifySnapshotFile_wrongDigest(t *testing.T) {
	path := writeSnapshot(t, sampleChain())
	if err := verifySnapshotFile(&bytes.Buffer{}, path, "blake2b-256"); err == nil {
		t.Error("expected failure when verifying with a different digest")
	}
}

func TestHashFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "note.txt")
	if err := os.WriteFile(path, []byte("hello"), 0o600); err != nil {
		t.Fatal(err)
	}
	sum, err := hashFile(digest.SHA256, path)
	if err != nil {
		t.Fatal(err)
	}
	if sum != "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824" {
		t.Errorf("sum = %s", sum)
	}
	if _, err := hashFile(digest.SHA256, filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestPrintChain(t *testing.T) {
	blocks := []client.Block{
		{Index: 0, Timestamp: 1700000000, FileHash: "GENESIS_HASH", PreviousHash: "0", Hash: "abc"},
	}

	var text bytes.Buffer
	if err := printChain(&text, blocks, "text"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(text.String(), "2023-11-14T22:13:20Z") {
		t.Errorf("text output missing timestamp: %q", text.String())
	}

	var js bytes.Buffer
	if err := printChain(&js, blocks, "json"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(js.String(), `"file_hash": "GENESIS_HASH"`) {
		t.Errorf("json output: %q", js.String())
	}

	if err := printChain(&bytes.Buffer{}, blocks, "xml"); err == nil {
		t.Error("expected error for unknown format")
	}
}
