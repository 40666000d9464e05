package engine

import "time"

// ToolkitPreset returns the built-in config for the EPANET command-line solver.
func ToolkitPreset(binary string) ToolkitConfig {
	if binary == "" {
		binary = "runepanet"
	}
	return ToolkitConfig{Name: "toolkit", Binary: binary}
}

// TopologyPreset returns a config that reads networks but cannot simulate.
// It lets the viewer browse and draw networks on hosts without a solver.
func TopologyPreset() ToolkitConfig {
	return ToolkitConfig{Name: "topology"}
}

// RegisterBuiltins registers the built-in engines on the given registry.
func RegisterBuiltins(reg *Registry, binary, workDir string, timeout time.Duration) {
	reg.Register("toolkit", func() (Engine, error) {
		cfg := ToolkitPreset(binary)
		cfg.WorkDir = workDir
		return NewToolkitEngine(cfg, WithTimeout(timeout)), nil
	})
	reg.Register("topology", func() (Engine, error) {
		return NewToolkitEngine(TopologyPreset()), nil
	})
}
