// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package materialize

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kextest "github.com/kraklabs/kex/internal/testing"
	"github.com/kraklabs/kex/pkg/artifact"
)

func runMaterializer(t *testing.T, resultsDir string) (*artifact.Manifest, string) {
	t.Helper()
	out := filepath.Join(t.TempDir(), "kernels")
	m, err := New(resultsDir, out, Options{})
	require.NoError(t, err)
	manifest, err := m.Run(context.Background())
	require.NoError(t, err)
	return manifest, out
}

func kernelFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".cu" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names
}

func TestRun_ConflictDrivenNaming(t *testing.T) {
	results := t.TempDir()
	kextest.WriteResult(t, results, "a", kextest.Result("/src/a.cu", "foo", "bar"))
	kextest.WriteResult(t, results, "b", kextest.Result("/src/b.cu", "foo"))

	manifest, out := runMaterializer(t, results)

	assert.Equal(t, []string{"a_foo.cu", "b_foo.cu", "bar.cu"}, kernelFiles(t, out))
	assert.Equal(t, 2, manifest.TotalSourceFiles)
	assert.Equal(t, 3, manifest.TotalKernelsExtracted)
	assert.Equal(t, 3, manifest.SuccessfullySaved)
	assert.Equal(t, 1, manifest.ConflictsDetected)
	assert.Len(t, manifest.SavedFiles, 3)

	var onDisk artifact.Manifest
	require.NoError(t, artifact.ReadJSON(filepath.Join(out, artifact.ManifestFile), &onDisk))
	assert.Equal(t, *manifest, onDisk)
}

func TestRun_SameBaseNameGetsPathHash(t *testing.T) {
	results := t.TempDir()
	kextest.WriteResult(t, results, "ops_1", kextest.Result("/x/ops.cu", "foo"))
	kextest.WriteResult(t, results, "ops_2", kextest.Result("/y/ops.cu", "foo"))
	kextest.WriteResult(t, results, "other", kextest.Result("/z/other.cu", "foo"))

	manifest, out := runMaterializer(t, results)

	want := []string{
		"ops_" + artifact.PathHash("/x/ops.cu") + "_foo.cu",
		"ops_" + artifact.PathHash("/y/ops.cu") + "_foo.cu",
		"other_foo.cu",
	}
	sort.Strings(want)
	assert.Equal(t, want, kernelFiles(t, out))
	assert.Equal(t, 3, manifest.SuccessfullySaved)
	assert.Equal(t, 1, manifest.ConflictsDetected)
}

func TestRun_RepeatedNameInOneSource(t *testing.T) {
	results := t.TempDir()
	kextest.WriteResult(t, results, "dup", kextest.Result("/src/dup.cu", "foo", "foo"))

	manifest, out := runMaterializer(t, results)

	assert.Equal(t, 0, manifest.ConflictsDetected)
	assert.Equal(t, []string{"foo.cu", "foo_2.cu"}, kernelFiles(t, out))
}

func TestRun_InvalidKernelsSkipped(t *testing.T) {
	results := t.TempDir()
	res := kextest.Result("/src/a.cu", "good")
	res.Kernels = append(res.Kernels,
		artifact.KernelRecord{FuncName: "", FuncContent: "__global__ void x() {}"},
		artifact.KernelRecord{FuncName: "empty", FuncContent: ""},
	)
	kextest.WriteResult(t, results, "a", res)

	manifest, out := runMaterializer(t, results)

	assert.Equal(t, 3, manifest.TotalKernelsExtracted)
	assert.Equal(t, 1, manifest.SuccessfullySaved)
	assert.Equal(t, []string{"good.cu"}, kernelFiles(t, out))
}

func TestRun_CorruptArtifactSkipped(t *testing.T) {
	results := t.TempDir()
	kextest.WriteResult(t, results, "a", kextest.Result("/src/a.cu", "foo"))
	kextest.WriteFile(t, filepath.Join(results, "broken.json"), "{not json")
	kextest.WriteFile(t, filepath.Join(results, "notes.txt"), "ignored")

	manifest, _ := runMaterializer(t, results)
	assert.Equal(t, 1, manifest.TotalSourceFiles)
	assert.Equal(t, 1, manifest.SuccessfullySaved)
}

func TestRun_StripsIncludes(t *testing.T) {
	results := t.TempDir()
	res := artifact.ExtractionResult{
		SourceFile: "/src/a.cu",
		Kernels: []artifact.KernelRecord{{
			FuncName:    "k",
			FuncContent: "#include <cuda.h>\n#include \"local.h\"\n__global__ void k() {}\n",
		}},
	}
	kextest.WriteResult(t, results, "a", res)

	_, out := runMaterializer(t, results)

	data, err := os.ReadFile(filepath.Join(out, "k.cu"))
	require.NoError(t, err)
	assert.Equal(t, "__global__ void k() {}\n", string(data))
}

func TestRun_WriteFailureExcluded(t *testing.T) {
	results := t.TempDir()
	kextest.WriteResult(t, results, "a", kextest.Result("/src/a.cu", "blocked", "fine"))

	out := filepath.Join(t.TempDir(), "kernels")
	kextest.WriteFile(t, filepath.Join(out, "blocked.cu", "keep"), "x")

	m, err := New(results, out, Options{})
	require.NoError(t, err)
	manifest, err := m.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, manifest.SuccessfullySaved)
	assert.Equal(t, []string{filepath.Join(out, "fine.cu")}, manifest.SavedFiles)
}

func TestRun_CustomExtension(t *testing.T) {
	results := t.TempDir()
	kextest.WriteResult(t, results, "a", kextest.Result("/src/a.cu", "k"))

	out := t.TempDir()
	m, err := New(results, out, Options{KernelExt: "cuh"})
	require.NoError(t, err)
	_, err = m.Run(context.Background())
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(out, "k.cuh"))
	assert.NoError(t, err)
}

func TestRun_EmptyResults(t *testing.T) {
	manifest, out := runMaterializer(t, t.TempDir())

	assert.Equal(t, 0, manifest.TotalSourceFiles)
	assert.NotNil(t, manifest.SavedFiles)
	_, err := os.Stat(filepath.Join(out, artifact.ManifestFile))
	assert.NoError(t, err)
}

func TestRun_Cancelled(t *testing.T) {
	results := t.TempDir()
	kextest.WriteResult(t, results, "a", kextest.Result("/src/a.cu", "k"))
	out := t.TempDir()

	m, err := New(results, out, Options{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = m.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	_, statErr := os.Stat(m.ManifestPath())
	assert.True(t, os.IsNotExist(statErr))
}

func TestNew_MissingResultsDir(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "nope"), t.TempDir(), Options{})
	require.ErrorIs(t, err, ErrResultsDirNotFound)

	file := filepath.Join(t.TempDir(), "file.json")
	kextest.WriteFile(t, file, "{}")
	_, err = New(file, t.TempDir(), Options{})
	require.ErrorIs(t, err, ErrResultsDirNotFound)
}
