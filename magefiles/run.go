//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

type Run mg.Namespace

// Renderer compiles the shaders and runs the renderer with validation enabled.
func (Run) Renderer() error {
	mg.Deps(Build.Shaders)
	fmt.Println("Run renderer...")
	return sh.RunV("go", "run", ".", "--validation", "--log-level", "debug")
}

// Tests runs the unit tests. None of them need a GPU.
func (Run) Tests() error {
	return run("go", "test", "./...")
}
