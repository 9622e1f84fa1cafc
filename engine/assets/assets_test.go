package assets

import (
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/tigrazone/gkNextRenderer/engine/assets/loaders"
)

func spirv(words ...uint32) []byte {
	out := make([]byte, 4*(len(words)+1))
	binary.LittleEndian.PutUint32(out, loaders.SPIRVMagic)
	for i, w := range words {
		binary.LittleEndian.PutUint32(out[4*(i+1):], w)
	}
	return out
}

func TestWords(t *testing.T) {
	type spec struct {
		data []byte
		ok   bool
	}
	specs := []spec{
		{spirv(1, 2, 3), true},
		{nil, false},
		{[]byte{3, 2, 35}, false},
		{[]byte{0, 0, 0, 0, 1, 2, 3, 4}, false},
	}
	for index, s := range specs {
		words, err := loaders.Words(s.data)
		if s.ok != (err == nil) {
			t.Fatalf("[spec %d] expected ok=%v; got %v", index, s.ok, err)
		}
		if err != nil && !errors.Is(err, loaders.ErrNotSPIRV) {
			t.Fatalf("[spec %d] expected ErrNotSPIRV; got %v", index, err)
		}
		if s.ok && (len(words) != 4 || words[3] != 3) {
			t.Fatalf("[spec %d] unexpected words %v", index, words)
		}
	}
}

func TestLibraryPrefersFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "Denoise.comp.spv"), spirv(42), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "RayTracing.rgen.spv"), spirv(7), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	lib, err := NewShaderLibrary(dir)
	if err != nil {
		t.Fatalf("library: %v", err)
	}
	defer lib.Close()

	type spec struct {
		name string
		kind ShaderKind
	}
	specs := []spec{
		{"Denoise.comp", ShaderKindSPIRV},
		{"RayTracing.rgen", ShaderKindSPIRV},
		{"Accumulate.comp", ShaderKindWGSL},
		{"Compose.comp", ShaderKindWGSL},
	}
	for index, s := range specs {
		info, ok := lib.Info(s.name)
		if !ok || info.Kind != s.kind {
			t.Fatalf("[spec %d] expected %s to resolve as %s; got %+v", index, s.name, s.kind, info)
		}
	}
	words, err := lib.SPIRV("Denoise.comp")
	if err != nil || words[1] != 42 {
		t.Fatalf("expected the file module; got %v, %v", words, err)
	}
	if _, err := lib.SPIRV("Missing.rchit"); !errors.Is(err, ErrShaderNotFound) {
		t.Fatalf("expected ErrShaderNotFound; got %v", err)
	}
	if len(lib.Names()) != 4 {
		t.Fatalf("expected 4 shaders; got %v", lib.Names())
	}
}

func TestMissingDirectoryUsesEmbedded(t *testing.T) {
	lib, err := NewShaderLibrary(filepath.Join(t.TempDir(), "absent"))
	if err != nil {
		t.Fatalf("library: %v", err)
	}
	if len(lib.Names()) != len(embeddedSources) {
		t.Fatalf("expected only embedded shaders; got %v", lib.Names())
	}
}

func TestEmbeddedCompile(t *testing.T) {
	lib, err := NewShaderLibrary("")
	if err != nil {
		t.Fatalf("library: %v", err)
	}
	for name := range embeddedSources {
		words, err := lib.SPIRV(name)
		if err != nil {
			// naga still lacks parts of WGSL; the GLSL build is the primary path
			t.Skipf("naga cannot compile %s: %v", name, err)
		}
		if words[0] != loaders.SPIRVMagic {
			t.Fatalf("%s: bad magic %#x", name, words[0])
		}
	}
}

// decoratedBindings collects the Binding decorations of a SPIR-V module.
func decoratedBindings(words []uint32) map[uint32]bool {
	const (
		opDecorate      = 71
		decorateBinding = 33
	)
	bindings := map[uint32]bool{}
	for i := 5; i < len(words); {
		count := int(words[i] >> 16)
		if count == 0 {
			break
		}
		if words[i]&0xFFFF == opDecorate && count >= 4 && i+3 < len(words) && words[i+2] == decorateBinding {
			bindings[words[i+3]] = true
		}
		i += count
	}
	return bindings
}

var bindingDecl = regexp.MustCompile(`@binding\((\d+)\)\s+var(?:<[^>]*>)?\s+(\w+)`)

func TestComputeBindingsAreUsed(t *testing.T) {
	type spec struct {
		name     string
		bindings []uint32
	}
	specs := []spec{
		{"Accumulate.comp", []uint32{0, 1, 2, 3, 4, 5, 6}},
		{"Denoise.comp", []uint32{0, 1, 4, 5}},
		{"Compose.comp", []uint32{0, 1, 2, 3, 4}},
	}
	lib, err := NewShaderLibrary("")
	if err != nil {
		t.Fatalf("library: %v", err)
	}
	for index, s := range specs {
		data, err := embedded.ReadFile(embeddedSources[s.name])
		if err != nil {
			t.Fatalf("[spec %d] read %s: %v", index, s.name, err)
		}
		source := string(data)
		declared := map[string]string{}
		for _, m := range bindingDecl.FindAllStringSubmatch(source, -1) {
			declared[m[1]] = m[2]
		}
		for _, b := range s.bindings {
			name, ok := declared[strconv.Itoa(int(b))]
			if !ok {
				t.Fatalf("[spec %d] %s does not declare binding %d", index, s.name, b)
			}
			// a declaration alone is not a read
			if b != 0 && strings.Count(source, name+")")+strings.Count(source, name+",") < 1 {
				t.Fatalf("[spec %d] %s never reads binding %d (%s)", index, s.name, b, name)
			}
		}

		words, err := lib.SPIRV(s.name)
		if err != nil {
			t.Logf("[spec %d] naga cannot compile %s: %v", index, s.name, err)
			continue
		}
		decorated := decoratedBindings(words)
		for _, b := range s.bindings {
			if !decorated[b] {
				t.Fatalf("[spec %d] %s: binding %d missing from the compiled module", index, s.name, b)
			}
		}
	}
}

func TestPreload(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "RayTracing.rgen.spv"), spirv(7), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "RayTracing.rmiss.spv"), []byte("not spirv"), 0o644); err != nil {
		t.Fatal(err)
	}
	lib, err := NewShaderLibrary(dir)
	if err != nil {
		t.Fatalf("library: %v", err)
	}

	err = lib.Preload(2)
	if err == nil || !errors.Is(err, loaders.ErrNotSPIRV) {
		t.Fatalf("expected the broken module to be reported; got %v", err)
	}
	lib.mutex.RLock()
	_, cached := lib.cache["RayTracing.rgen"]
	lib.mutex.RUnlock()
	if !cached {
		t.Fatalf("expected the valid module to be cached")
	}
	if err := lib.Preload(0); err == nil {
		t.Fatalf("expected an error without workers")
	}
}

func TestWatchReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Compose.comp.spv")
	if err := os.WriteFile(path, spirv(1), 0o644); err != nil {
		t.Fatal(err)
	}
	lib, err := NewShaderLibrary(dir)
	if err != nil {
		t.Fatalf("library: %v", err)
	}
	defer lib.Close()
	if words, _ := lib.SPIRV("Compose.comp"); words[1] != 1 {
		t.Fatalf("unexpected initial module %v", words)
	}
	if err := lib.Watch(); err != nil {
		t.Fatalf("watch: %v", err)
	}

	if err := os.WriteFile(path, spirv(2), 0o644); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for !lib.Changed() {
		if time.Now().After(deadline) {
			t.Fatalf("no change reported")
		}
		time.Sleep(10 * time.Millisecond)
	}
	// the write may arrive as several events
	time.Sleep(50 * time.Millisecond)
	if words, _ := lib.SPIRV("Compose.comp"); words[1] != 2 {
		t.Fatalf("expected the reloaded module; got %v", words)
	}

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	deadline = time.Now().Add(5 * time.Second)
	for {
		if info, _ := lib.Info("Compose.comp"); info.Kind == ShaderKindWGSL {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected a fallback to the embedded source")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
