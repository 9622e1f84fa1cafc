//go:build mage

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// glslc is the shader compiler; GLSLC points at a Vulkan SDK install that is
// not on PATH.
func glslc() string {
	if path := os.Getenv("GLSLC"); path != "" {
		return path
	}
	return "glslc"
}

// run executes cmd. Output is streamed with -v, otherwise it is only printed
// when the command fails.
func run(cmd string, args ...string) error {
	fmt.Printf("Executing: %s %s\n", cmd, strings.Join(args, " "))
	if mg.Verbose() {
		return sh.RunV(cmd, args...)
	}
	out, err := sh.Output(cmd, args...)
	if err != nil {
		if out != "" {
			fmt.Println("... failed command output:")
			fmt.Println(out)
		}
		return fmt.Errorf("error executing %s: %w", cmd, err)
	}
	return nil
}
