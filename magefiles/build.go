//go:build mage

package main

import (
	"fmt"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/target"
)

const (
	shaderSrc = "assets/shaders/src"
	shaderOut = "assets/shaders"
)

// Ray tracing stages compiled to SPIR-V. The compute stages are embedded WGSL
// and compiled at runtime.
var shaderStages = []string{"*.rgen", "*.rmiss", "*.rchit", "*.rint"}

type Build mg.Namespace

// Shaders compiles the ray tracing stages that changed since the last build.
func (Build) Shaders() error {
	var sources []string
	for _, pattern := range shaderStages {
		matches, err := filepath.Glob(filepath.Join(shaderSrc, pattern))
		if err != nil {
			return err
		}
		sources = append(sources, matches...)
	}
	if len(sources) == 0 {
		return fmt.Errorf("no shader sources in %s", shaderSrc)
	}
	includes, err := filepath.Glob(filepath.Join(shaderSrc, "*.glsl"))
	if err != nil {
		return err
	}

	for _, src := range sources {
		out := filepath.Join(shaderOut, filepath.Base(src)+".spv")
		stale, err := target.Path(out, append([]string{src}, includes...)...)
		if err != nil {
			return err
		}
		if !stale {
			continue
		}
		if err := run(glslc(), "--target-env=vulkan1.2", "-O", "-I", shaderSrc, src, "-o", out); err != nil {
			return err
		}
	}
	return nil
}

// Binary builds the renderer.
func (Build) Binary() error {
	mg.Deps(Build.Shaders)
	return run("go", "build", "-o", "bin/gkNextRenderer", ".")
}
