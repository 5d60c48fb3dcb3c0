package shader

import (
	"encoding/binary"
	"errors"
	"sync/atomic"
	"testing"
)

const registryTestSource = `
@vertex
fn vertex(@location(0) position: vec3<f32>) -> @builtin(position) vec4<f32> {
    return vec4<f32>(position, #{SCALE}.0);
}

@fragment
fn fragment() -> @location(0) vec4<f32> {
    return vec4<f32>(1.0, 0.0, 0.0, 1.0);
}
`

func countingCompiler(calls *atomic.Int32) CompileFunc {
	return func(string) ([]byte, error) {
		calls.Add(1)
		return []byte{0x03, 0x02, 0x23, 0x07}, nil
	}
}

func TestRegistryResolveCaches(t *testing.T) {
	var calls atomic.Int32
	r := NewRegistry(WithCompiler(countingCompiler(&calls)))
	r.Register("test", registryTestSource)

	defs := Defs{{Name: "SCALE", Value: 1}}
	a, err := r.Resolve("test", StageVertex, defs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := r.Resolve("test", StageVertex, Defs{{Name: "SCALE", Value: 1}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a != b {
		t.Error("equal requests should return the cached module")
	}
	if !a.HasEntryPoint("vertex") || a.HasEntryPoint("fragment") {
		t.Errorf("vertex module entry points = %v", a.EntryPoints)
	}
	if got := a.VertexInputs["vertex"]; len(got) != 1 || got[0].Location != 0 {
		t.Errorf("vertex inputs = %+v", got)
	}

	if _, err := r.Resolve("test", StageVertex, Defs{{Name: "SCALE", Value: 2}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("expected 2 compilations, got %d", calls.Load())
	}
	if hits, misses := r.Stats(); hits != 1 || misses != 2 {
		t.Errorf("stats = %d hits %d misses, want 1/2", hits, misses)
	}
}

func TestRegistryErrors(t *testing.T) {
	var calls atomic.Int32
	r := NewRegistry(WithCompiler(countingCompiler(&calls)))

	if _, err := r.Resolve("missing", StageVertex, nil); !errors.Is(err, ErrUnknownShader) {
		t.Errorf("expected ErrUnknownShader, got %v", err)
	}

	r.Register("frag_only", "@fragment\nfn fragment() -> @location(0) vec4<f32> { return vec4<f32>(0.0); }")
	if _, err := r.Resolve("frag_only", StageVertex, nil); !errors.Is(err, ErrNoEntryPoint) {
		t.Errorf("expected ErrNoEntryPoint, got %v", err)
	}

	r.Register("test", registryTestSource)
	if _, err := r.Resolve("test", StageVertex, nil); !errors.Is(err, ErrUndefined) {
		t.Errorf("expected ErrUndefined for a missing SCALE define, got %v", err)
	}

	compileErr := errors.New("bad wgsl")
	failing := NewRegistry(WithCompiler(func(string) ([]byte, error) { return nil, compileErr }))
	failing.Register("test", registryTestSource)
	if _, err := failing.Resolve("test", StageFragment, Defs{{Name: "SCALE", Value: 1}}); !errors.Is(err, compileErr) {
		t.Errorf("expected the compiler error to be wrapped, got %v", err)
	}
}

func TestRegistryReRegisterInvalidates(t *testing.T) {
	var calls atomic.Int32
	r := NewRegistry(WithCompiler(countingCompiler(&calls)))
	defs := Defs{{Name: "SCALE", Value: 1}}

	r.Register("test", registryTestSource)
	first, _ := r.Resolve("test", StageFragment, defs)
	r.Register("test", registryTestSource+"\n// edited")
	second, err := r.Resolve("test", StageFragment, defs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first == second {
		t.Error("re-registering a changed source should drop cached modules")
	}
}

func TestRegistryResolveAll(t *testing.T) {
	var calls atomic.Int32
	r := NewRegistry(WithCompiler(countingCompiler(&calls)), WithWorkers(2))
	r.Register("test", registryTestSource)

	reqs := []Request{
		{Handle: "test", Stage: StageVertex, Defs: Defs{{Name: "SCALE", Value: 1}}},
		{Handle: "test", Stage: StageFragment, Defs: Defs{{Name: "SCALE", Value: 1}}},
		{Handle: "missing", Stage: StageVertex},
	}
	modules, err := r.ResolveAll(reqs)
	if !errors.Is(err, ErrUnknownShader) {
		t.Errorf("expected the joined error to contain ErrUnknownShader, got %v", err)
	}
	if len(modules) != 3 || modules[0] == nil || modules[1] == nil || modules[2] != nil {
		t.Fatalf("unexpected modules %v", modules)
	}
	if modules[0].Stage != StageVertex || modules[1].Stage != StageFragment {
		t.Error("modules must be returned in request order")
	}
}

func TestRegistryNagaCompile(t *testing.T) {
	r := NewRegistry()
	r.Register("test", registryTestSource)
	m, err := r.Resolve("test", StageFragment, Defs{{Name: "SCALE", Value: 1}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(m.SPIRV) < 20 {
		t.Fatalf("SPIR-V output too small: %d bytes", len(m.SPIRV))
	}
	if magic := binary.LittleEndian.Uint32(m.SPIRV[:4]); magic != 0x07230203 {
		t.Errorf("invalid SPIR-V magic 0x%08X", magic)
	}
}
