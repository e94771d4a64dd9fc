// Package translator prepends the backend macro header a kernel source
// file needs before it reaches the vendor compiler (spec.md §4.2 step
// 4): OCCA_USING_GPU / OCCA_USING_{BACKEND} feature macros plus the
// caller's kernel_info defines.
package translator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/occa-go/occa/internal/constants"
	"github.com/occa-go/occa/internal/interfaces"
)

// Translator produces the intermediate source a backend hands to its
// external compiler.
type Translator interface {
	// CreateIntermediateSource reads source and returns the final
	// source text with the macro header prepended.
	CreateIntermediateSource(source string, backend constants.ModeTag, info interfaces.KernelInfo) string
}

// Default is the stock translator: a macro header followed by the
// unmodified kernel source.
type Default struct{}

// CreateIntermediateSource implements Translator.
func (Default) CreateIntermediateSource(source string, backend constants.ModeTag, info interfaces.KernelInfo) string {
	var b strings.Builder

	if info.Prelude != "" {
		b.WriteString(info.Prelude)
		if !strings.HasSuffix(info.Prelude, "\n") {
			b.WriteString("\n")
		}
	}

	b.WriteString("#define OCCA_USING_GPU 1\n")
	fmt.Fprintf(&b, "#define OCCA_USING_%s 1\n", strings.ToUpper(string(backend)))

	defines := append([]interfaces.Define(nil), info.Defines...)
	sort.Slice(defines, func(i, j int) bool { return defines[i].Name < defines[j].Name })
	for _, d := range defines {
		fmt.Fprintf(&b, "#define %s %s\n", d.Name, d.Value)
	}

	if len(info.Keywords) > 0 {
		keys := make([]string, 0, len(info.Keywords))
		for k := range info.Keywords {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "#define %s %s\n", k, info.Keywords[k])
		}
	}

	b.WriteString(source)
	return b.String()
}
