package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultLoadsEmbeddedBaseline(t *testing.T) {
	c, err := Default()
	if err != nil {
		t.Fatalf("Default() = %v", err)
	}
	if c.OnTheFly.NbProcess != 4 {
		t.Errorf("NbProcess = %d, want 4", c.OnTheFly.NbProcess)
	}
	if c.Global.GasMass != 28.0 {
		t.Errorf("GasMass = %v, want 28.0", c.Global.GasMass)
	}
	if err := c.Validate(); err != nil {
		t.Errorf("embedded defaults failed Validate(): %v", err)
	}
}

func TestLoadWithEmptyPathReturnsDefaults(t *testing.T) {
	c, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") = %v", err)
	}
	if c.OnTheFly.NbProcess != 4 {
		t.Errorf("NbProcess = %d, want 4", c.OnTheFly.NbProcess)
	}
}

func TestLoadOverlaysOnTopOfDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "override.yaml")
	if err := os.WriteFile(path, []byte("on_the_fly:\n  nb_process: 8\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() = %v", err)
	}
	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}
	if c.OnTheFly.NbProcess != 8 {
		t.Errorf("NbProcess = %d, want 8 (overridden)", c.OnTheFly.NbProcess)
	}
	if c.Global.GasMass != 28.0 {
		t.Errorf("GasMass = %v, want 28.0 (kept from defaults)", c.Global.GasMass)
	}
}

func TestLoadMissingFileErrors(t *testing.T) {
	if _, err := Load("/nonexistent/path/defaults.yaml"); err == nil {
		t.Error("expected an error reading a missing override file")
	}
}

func TestValidateRejectsNonPositiveNbProcess(t *testing.T) {
	c := &Config{Global: GlobalParams{GasMass: 28}}
	err := c.Validate()
	ce, ok := err.(*ConfigError)
	if !ok || ce.Field != "on_the_fly.nb_process" {
		t.Errorf("err = %v, want ConfigError on on_the_fly.nb_process", err)
	}
}

func TestValidateRejectsLowFluxCutoffOutOfRange(t *testing.T) {
	c := &Config{
		OnTheFly: OnTheFlyParams{NbProcess: 1, LowFluxMode: true, LowFluxCutoff: 1.5},
		Global:   GlobalParams{GasMass: 28},
	}
	err := c.Validate()
	ce, ok := err.(*ConfigError)
	if !ok || ce.Field != "on_the_fly.low_flux_cutoff" {
		t.Errorf("err = %v, want ConfigError on on_the_fly.low_flux_cutoff", err)
	}
}

func TestValidateAllowsLowFluxCutoffWhenModeDisabled(t *testing.T) {
	c := &Config{
		OnTheFly: OnTheFlyParams{NbProcess: 1, LowFluxMode: false, LowFluxCutoff: 5},
		Global:   GlobalParams{GasMass: 28},
	}
	if err := c.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil when low_flux_mode is off", err)
	}
}

func TestValidateRejectsDecayWithoutHalflife(t *testing.T) {
	c := &Config{
		OnTheFly: OnTheFlyParams{NbProcess: 1},
		Global:   GlobalParams{GasMass: 28, EnableDecay: true, Halflife: 0},
	}
	err := c.Validate()
	ce, ok := err.(*ConfigError)
	if !ok || ce.Field != "global.halflife" {
		t.Errorf("err = %v, want ConfigError on global.halflife", err)
	}
}

func TestValidateRejectsNonPositiveGasMass(t *testing.T) {
	c := &Config{OnTheFly: OnTheFlyParams{NbProcess: 1}, Global: GlobalParams{GasMass: 0}}
	err := c.Validate()
	ce, ok := err.(*ConfigError)
	if !ok || ce.Field != "global.gas_mass" {
		t.Errorf("err = %v, want ConfigError on global.gas_mass", err)
	}
}

func TestValidateRejectsZeroWidthMoment(t *testing.T) {
	c := &Config{
		OnTheFly: OnTheFlyParams{NbProcess: 1},
		Global:   GlobalParams{GasMass: 28, Moments: []Moment{{Center: 1, Width: 0}}},
	}
	err := c.Validate()
	ce, ok := err.(*ConfigError)
	if !ok || ce.Field != "global.moments[0].width" {
		t.Errorf("err = %v, want ConfigError on global.moments[0].width", err)
	}
}
