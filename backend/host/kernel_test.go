package host

import (
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/occa-go/occa/internal/argpack"
	"github.com/occa-go/occa/internal/config"
	"github.com/occa-go/occa/internal/constants"
	"github.com/occa-go/occa/internal/geometry"
	"github.com/occa-go/occa/internal/interfaces"
)

const addVectorsSource = `
void addVectors(void **args, int nargs,
    unsigned long long ox, unsigned long long oy, unsigned long long oz,
    unsigned long long ix, unsigned long long iy, unsigned long long iz) {
  float *a = (float *)args[0];
  float *b = (float *)args[1];
  float *c = (float *)args[2];
  unsigned long long n = *(unsigned long long *)args[3];
  for (unsigned long long i = 0; i < n; i++) {
    c[i] = a[i] + b[i];
  }
}
`

// requireCC skips the test if no C compiler is reachable on PATH, since
// BuildKernelFromSource shells out to one to produce the dlopen'd shared
// object.
func requireCC(t *testing.T) {
	t.Helper()
	cc := config.Compiler(constants.HostShared)
	if _, err := exec.LookPath(cc); err != nil {
		t.Skipf("host compiler %q not found on PATH", cc)
	}
}

func TestKernelBuildAndRunAddVectors(t *testing.T) {
	requireCC(t)

	dir := t.TempDir()
	sourcePath := filepath.Join(dir, "add_vectors.c")
	require.NoError(t, os.WriteFile(sourcePath, []byte(addVectorsSource), 0o644))

	d := New()
	require.NoError(t, d.Setup(0, 0))
	defer d.Teardown()

	raw, err := d.BuildKernelFromSource(sourcePath, "addVectors", interfaces.KernelInfo{})
	require.NoError(t, err)
	k := raw.(*Kernel)
	defer k.Free()

	const n = 4
	floats := func(vs ...float32) []byte {
		buf := make([]byte, 4*len(vs))
		for i, v := range vs {
			bits := math.Float32bits(v)
			buf[4*i+0] = byte(bits)
			buf[4*i+1] = byte(bits >> 8)
			buf[4*i+2] = byte(bits >> 16)
			buf[4*i+3] = byte(bits >> 24)
		}
		return buf
	}

	aMem, err := d.Malloc(4*n, floats(1, 2, 3, 4))
	require.NoError(t, err)
	defer aMem.Free()
	bMem, err := d.Malloc(4*n, floats(10, 20, 30, 40))
	require.NoError(t, err)
	defer bMem.Free()
	cMem, err := d.Malloc(4*n, nil)
	require.NoError(t, err)
	defer cMem.Free()

	list := argpack.NewList()
	require.NoError(t, list.Append(argpack.Buffer(aMem.(*Memory).Handle())))
	require.NoError(t, list.Append(argpack.Buffer(bMem.(*Memory).Handle())))
	require.NoError(t, list.Append(argpack.Buffer(cMem.(*Memory).Handle())))
	countArg, err := argpack.Scalar(uint64(n))
	require.NoError(t, err)
	require.NoError(t, list.Append(countArg))

	g, err := geometry.New(1, geometry.Dim1(1), geometry.Dim1(1))
	require.NoError(t, err)

	require.NoError(t, k.Run(d.CurrentStream(), g, *list))

	out := make([]byte, 4*n)
	require.NoError(t, cMem.CopyToHost(out, uint64(len(out)), 0))

	want := floats(11, 22, 33, 44)
	assert.Equal(t, want, out)
}

func TestKernelPreferredDimSizeIsOne(t *testing.T) {
	k := &Kernel{name: "noop"}
	size, err := k.PreferredDimSize()
	require.NoError(t, err)
	assert.Equal(t, 1, size)
}

func TestKernelFreeIsIdempotent(t *testing.T) {
	k := &Kernel{name: "noop"}
	assert.NoError(t, k.Free())
	assert.NoError(t, k.Free())
}
