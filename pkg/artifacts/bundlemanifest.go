package artifacts

import (
	"encoding/hex"
	"encoding/json"
	"hash/fnv"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/labops-dev/labops/pkg/errs"
)

// manifestEntry is one hashed bundle artifact, keyed by its path relative to
// the bundle directory.
type manifestEntry struct {
	Path      string `json:"path"`
	SizeBytes int64  `json:"size_bytes"`
	Hash      string `json:"hash"`
}

type bundleManifest struct {
	SchemaVersion string           `json:"schema_version"`
	HashAlgorithm string           `json:"hash_algorithm"`
	Files         []manifestEntry `json:"files"`
}

// computeFileFNV1a64 hashes a file's contents with 64-bit FNV-1a, the same
// well-known constants the bundle manifest has always used, and returns the
// lowercase, zero-padded 16-hex-digit digest.
func computeFileFNV1a64(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", errs.Wrap(errs.IOFailure, "failed to open file for hashing: "+path, err)
	}
	defer file.Close()

	sum := fnv.New64a()
	if _, err := io.Copy(sum, file); err != nil {
		return "", errs.Wrap(errs.IOFailure, "failed while reading file for hashing: "+path, err)
	}

	digest := make([]byte, 8)
	for i, shift := range []uint{56, 48, 40, 32, 24, 16, 8, 0} {
		digest[i] = byte(sum.Sum64() >> shift)
	}
	return hex.EncodeToString(digest), nil
}

// WriteBundleManifestJson hashes every artifact path and writes
// bundle_manifest.json: schema_version, hash_algorithm, and a files array
// sorted by relative path, so a bundle's integrity can be verified offline.
func WriteBundleManifestJson(bundleDir string, artifactPaths []string) (string, error) {
	if bundleDir == "" {
		return "", errs.New(errs.InputInvalid, "bundle directory cannot be empty")
	}
	if len(artifactPaths) == 0 {
		return "", errs.New(errs.InputInvalid, "artifact path list cannot be empty")
	}
	if err := ensureOutputDir(bundleDir); err != nil {
		return "", err
	}

	entries := make([]manifestEntry, 0, len(artifactPaths))
	for _, artifactPath := range artifactPaths {
		if artifactPath == "" {
			return "", errs.New(errs.InputInvalid, "artifact path cannot be empty")
		}

		info, err := os.Stat(artifactPath)
		if err != nil {
			return "", errs.Wrap(errs.IOFailure, "artifact file not found: "+artifactPath, err)
		}
		if info.IsDir() {
			return "", errs.New(errs.InputInvalid, "artifact path must be a regular file: "+artifactPath)
		}

		relativePath, err := filepath.Rel(bundleDir, artifactPath)
		if err != nil || relativePath == "" {
			return "", errs.New(errs.InputInvalid, "failed to compute artifact path relative to bundle: "+artifactPath)
		}
		if relativePath == ".." || len(relativePath) >= 2 && relativePath[:2] == ".." {
			return "", errs.New(errs.InputInvalid, "artifact is outside bundle directory: "+artifactPath)
		}

		hash, err := computeFileFNV1a64(artifactPath)
		if err != nil {
			return "", err
		}

		entries = append(entries, manifestEntry{
			Path:      filepath.ToSlash(relativePath),
			SizeBytes: info.Size(),
			Hash:      hash,
		})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })

	manifest := bundleManifest{
		SchemaVersion: "1.0",
		HashAlgorithm: "fnv1a_64",
		Files:         entries,
	}

	payload, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return "", errs.Wrap(errs.IOFailure, "failed to encode bundle manifest", err)
	}

	writtenPath := filepath.Join(bundleDir, "bundle_manifest.json")
	if err := os.WriteFile(writtenPath, append(payload, '\n'), 0o644); err != nil {
		return "", errs.Wrap(errs.IOFailure, "failed to open output file: "+writtenPath, err)
	}

	return writtenPath, nil
}
