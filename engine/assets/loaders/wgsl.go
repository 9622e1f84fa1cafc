package loaders

import (
	"fmt"
	"io/fs"

	"github.com/gogpu/naga"
)

// WGSLLoader compiles WGSL sources from FS to SPIR-V.
type WGSLLoader struct {
	FS fs.FS
}

func (wl *WGSLLoader) Load(path string) ([]uint32, error) {
	src, err := fs.ReadFile(wl.FS, path)
	if err != nil {
		return nil, err
	}
	return CompileWGSL(string(src))
}

// CompileWGSL runs naga and returns the module as words.
func CompileWGSL(source string) ([]uint32, error) {
	spirv, err := naga.Compile(source)
	if err != nil {
		return nil, fmt.Errorf("failed to compile shader: %w", err)
	}
	return Words(spirv)
}
