package scripting

import (
	"fmt"
	"os"
	"path/filepath"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/l1jgo/vision/internal/lighting"
)

// Engine wraps a single gopher-lua VM for scripted lighting rules.
// Single-goroutine access only (scene loop).
type Engine struct {
	vm  *lua.LState
	log *zap.Logger
}

// NewEngine creates a Lua engine and loads all scripts from the given directory.
func NewEngine(scriptsDir string, log *zap.Logger) (*Engine, error) {
	if log == nil {
		log = zap.NewNop()
	}
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})

	// Set API version global
	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	e := &Engine{vm: vm, log: log}

	// Core scripts first, then optional feature directories.
	for _, sub := range []string{"core", "lighting", "vision"} {
		p := filepath.Join(scriptsDir, sub)
		if err := e.loadDir(p); err != nil {
			vm.Close()
			return nil, fmt.Errorf("load %s scripts: %w", sub, err)
		}
	}

	return e, nil
}

// loadDir loads all .lua files in a directory.
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // skip missing dirs
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// Has reports whether a global Lua function is defined.
func (e *Engine) Has(name string) bool {
	_, ok := e.vm.GetGlobal(name).(*lua.LFunction)
	return ok
}

// LightWeights calls calc_light_weights(darkness), which returns a table
// {bright=, dim=, dark=}. Any failure falls back to the built-in curve.
func (e *Engine) LightWeights(darkness float64) lighting.Weights {
	fallback := lighting.DefaultCurve.Weights(darkness)

	fn := e.vm.GetGlobal("calc_light_weights")
	if fn == lua.LNil {
		return fallback
	}

	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, lua.LNumber(darkness)); err != nil {
		e.log.Error("lua calc_light_weights error", zap.Error(err))
		return fallback
	}

	result := e.vm.Get(-1)
	e.vm.Pop(1)

	rt, ok := result.(*lua.LTable)
	if !ok {
		e.log.Error("lua calc_light_weights returned non-table")
		return fallback
	}

	return lighting.Weights{
		Bright: float64(lua.LVAsNumber(rt.RawGetString("bright"))),
		Dim:    float64(lua.LVAsNumber(rt.RawGetString("dim"))),
		Dark:   float64(lua.LVAsNumber(rt.RawGetString("dark"))),
	}
}

// Curve returns a lighting.Curve backed by calc_light_weights, or nil when
// no script defines it.
func (e *Engine) Curve() lighting.Curve {
	if !e.Has("calc_light_weights") {
		return nil
	}
	return lighting.CurveFunc(e.LightWeights)
}

// ExploreAllowed calls can_explore(source_id, x, y), letting scripts veto
// exploration for particular sources. Missing or failing scripts allow it.
func (e *Engine) ExploreAllowed(sourceID string, x, y float64) bool {
	fn := e.vm.GetGlobal("can_explore")
	if fn == lua.LNil {
		return true
	}
	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, lua.LString(sourceID), lua.LNumber(x), lua.LNumber(y)); err != nil {
		e.log.Error("lua can_explore error", zap.String("source", sourceID), zap.Error(err))
		return true
	}
	result := e.vm.Get(-1)
	e.vm.Pop(1)
	return lua.LVAsBool(result)
}

// Close shuts down the Lua VM.
func (e *Engine) Close() {
	e.vm.Close()
}
