package occa

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"

	"github.com/occa-go/occa/internal/interfaces"
)

// Define is a single (name, value) compiler define passed through
// KernelInfo to the translator.
type Define struct {
	Name  string
	Value string
}

// KernelInfo carries the defines and extra compiler flags a
// BuildKernelFromSource call should use.
type KernelInfo struct {
	Defines  []Define
	Flags    string
	Keywords map[string]string
}

// NewKernelInfo returns an empty KernelInfo.
func NewKernelInfo() KernelInfo {
	return KernelInfo{Keywords: map[string]string{}}
}

// AddDefine appends a (name, value) define.
func (ki *KernelInfo) AddDefine(name, value string) {
	ki.Defines = append(ki.Defines, Define{Name: name, Value: value})
}

// salt returns a stable digest of this KernelInfo's contents, folded
// into the compile-cache fingerprint so two builds of the same source
// with different defines never collide.
func (ki KernelInfo) salt() string {
	defines := append([]Define(nil), ki.Defines...)
	sort.Slice(defines, func(i, j int) bool { return defines[i].Name < defines[j].Name })

	h := sha256.New()
	for _, d := range defines {
		h.Write([]byte(d.Name))
		h.Write([]byte{0})
		h.Write([]byte(d.Value))
		h.Write([]byte{0})
	}
	h.Write([]byte(ki.Flags))

	keys := make([]string, 0, len(ki.Keywords))
	for k := range ki.Keywords {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		h.Write([]byte(k))
		h.Write([]byte{0})
		h.Write([]byte(ki.Keywords[k]))
		h.Write([]byte{0})
	}

	return hex.EncodeToString(h.Sum(nil))
}

func (ki KernelInfo) toInternal(prelude string) interfaces.KernelInfo {
	defines := make([]interfaces.Define, len(ki.Defines))
	for i, d := range ki.Defines {
		defines[i] = interfaces.Define{Name: d.Name, Value: d.Value}
	}
	return interfaces.KernelInfo{Defines: defines, Flags: ki.Flags, Keywords: ki.Keywords, Prelude: prelude}
}
