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

package kernelscan

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `#include <cuda_runtime.h>

// __global__ kernels follow; this comment must not count.
__device__ float square(float x) { return x * x; }

__global__ void vector_add(const float* a, const float* b, float* c, int n) {
    int i = blockIdx.x * blockDim.x + threadIdx.x;
    if (i < n) c[i] = a[i] + b[i];
}

template <typename T, int BLOCK>
__global__ void __launch_bounds__(256, 2)
reduce_sum(const T* in, T* out, int n) {
    __shared__ T buf[BLOCK];
}

static __global__ void scale_kernel(float* x, float s) { x[threadIdx.x] *= s; }

void launch(float* a, float* b, float* c, int n) {
    vector_add<<<(n + 255) / 256, 256>>>(a, b, c, n);
}
`

func TestScan_FindsKernels(t *testing.T) {
	names, err := Scan(context.Background(), []byte(sample))
	require.NoError(t, err)

	assert.Contains(t, names, "vector_add")
	assert.Contains(t, names, "reduce_sum")
	assert.Contains(t, names, "scale_kernel")

	assert.NotContains(t, names, "square")
	assert.NotContains(t, names, "launch")
	assert.NotContains(t, names, "kernels")
	assert.IsNonDecreasing(t, names)
}

func TestScan_NoMarker(t *testing.T) {
	names, err := Scan(context.Background(), []byte("int main() { return 0; }\n"))
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestScanLexical_StripsLaunchBounds(t *testing.T) {
	got := scanLexical([]byte("__global__ void __launch_bounds__(128) k1(int* p) {}\n__global__ void\nk2 (int* p) {}\n"))
	assert.Equal(t, []string{"k1", "k2"}, got)
}

func TestMissing(t *testing.T) {
	assert.Equal(t, []string{"b"}, Missing([]string{"a", "b"}, []string{"a", "c"}))
	assert.Empty(t, Missing([]string{"a"}, []string{"a"}))
	assert.Empty(t, Missing(nil, []string{"a"}))
}
