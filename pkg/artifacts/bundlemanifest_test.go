package artifacts

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func writeTempArtifact(t *testing.T, dir, name, contents string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("failed to write fixture %s: %v", name, err)
	}
	return path
}

func TestComputeFileFNV1a64MatchesKnownDigest(t *testing.T) {
	dir := t.TempDir()
	path := writeTempArtifact(t, dir, "empty.txt", "")

	hash, err := computeFileFNV1a64(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hash != "cbf29ce484222325" {
		t.Fatalf("expected FNV-1a 64 offset basis digest for empty input, got %s", hash)
	}
}

func TestWriteBundleManifestJsonSortsFilesByPath(t *testing.T) {
	dir := t.TempDir()
	b := writeTempArtifact(t, dir, "b.json", "b")
	a := writeTempArtifact(t, dir, "a.json", "a")

	writtenPath, err := WriteBundleManifestJson(dir, []string{b, a})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	contents, err := os.ReadFile(writtenPath)
	if err != nil {
		t.Fatalf("failed to read manifest: %v", err)
	}

	var manifest bundleManifest
	if err := json.Unmarshal(contents, &manifest); err != nil {
		t.Fatalf("failed to parse manifest: %v", err)
	}
	if manifest.SchemaVersion != "1.0" || manifest.HashAlgorithm != "fnv1a_64" {
		t.Fatalf("unexpected manifest header: %+v", manifest)
	}
	if len(manifest.Files) != 2 || manifest.Files[0].Path != "a.json" || manifest.Files[1].Path != "b.json" {
		t.Fatalf("expected files sorted by relative path, got %+v", manifest.Files)
	}
}

func TestWriteBundleManifestJsonRejectsMissingArtifact(t *testing.T) {
	dir := t.TempDir()
	if _, err := WriteBundleManifestJson(dir, []string{filepath.Join(dir, "missing.json")}); err == nil {
		t.Fatal("expected error for missing artifact")
	}
}

func TestWriteBundleManifestJsonRejectsEmptyArtifactList(t *testing.T) {
	dir := t.TempDir()
	if _, err := WriteBundleManifestJson(dir, nil); err == nil {
		t.Fatal("expected error for empty artifact list")
	}
}
