package core

import (
	"fmt"
	"sort"
	"strings"
)

// Recognised variable names.
const (
	VarPythonVersion         = "python.version"
	VarExtraDepends          = "EXTRA_DEPENDS"
	VarInstallType           = "INSTALL_TYPE"
	VarTestWithXvfb          = "TEST_WITH_XVFB"
	VarUsePre                = "USE_PRE"
	VarMesaGLVersionOverride = "MESA_GL_VERSION_OVERRIDE"
	VarLibGLAlwaysIndirect   = "LIBGL_ALWAYS_INDIRECT"
)

// InstallType selects how the package under test is installed.
type InstallType string

const (
	InstallPip          InstallType = "pip"
	InstallConda        InstallType = "conda"
	InstallSetup        InstallType = "setup"
	InstallSdist        InstallType = "sdist"
	InstallWheel        InstallType = "wheel"
	InstallRequirements InstallType = "requirements"
)

var installTypes = map[InstallType]bool{
	InstallPip:          true,
	InstallConda:        true,
	InstallSetup:        true,
	InstallSdist:        true,
	InstallWheel:        true,
	InstallRequirements: true,
}

// Variables is the typed view of a job's bindings. Unrecognised names land in Env.
type Variables struct {
	PythonVersion         string            `json:"pythonVersion" yaml:"pythonVersion"`
	ExtraDepends          []string          `json:"extraDepends,omitempty" yaml:"extraDepends,omitempty"`
	InstallType           InstallType       `json:"installType" yaml:"installType"`
	TestWithXvfb          bool              `json:"testWithXvfb" yaml:"testWithXvfb"`
	UsePre                bool              `json:"usePre" yaml:"usePre"`
	MesaGLVersionOverride string            `json:"mesaGLVersionOverride,omitempty" yaml:"mesaGLVersionOverride,omitempty"`
	LibGLAlwaysIndirect   string            `json:"libGLAlwaysIndirect,omitempty" yaml:"libGLAlwaysIndirect,omitempty"`
	Env                   map[string]string `json:"env,omitempty" yaml:"env,omitempty"`
}

// NewVariables interprets bindings. Absent options take their defaults: no extra
// dependencies, pip install, no virtual display, no pre-releases.
func NewVariables(b Bindings) (Variables, error) {
	v := Variables{InstallType: InstallPip}
	for _, kv := range b {
		switch kv.Name {
		case VarPythonVersion:
			v.PythonVersion = strings.TrimSpace(kv.Value)
		case VarExtraDepends:
			v.ExtraDepends = strings.Fields(kv.Value)
		case VarInstallType:
			it := InstallType(strings.ToLower(strings.TrimSpace(kv.Value)))
			if it == "" {
				it = InstallPip
			}
			if !installTypes[it] {
				return Variables{}, &ConfigurationError{Msg: fmt.Sprintf("unknown %s %q (want one of %s)", VarInstallType, kv.Value, knownInstallTypes())}
			}
			v.InstallType = it
		case VarTestWithXvfb:
			on, err := parseTruth(kv.Value)
			if err != nil {
				return Variables{}, &ConfigurationError{Msg: VarTestWithXvfb, Err: err}
			}
			v.TestWithXvfb = on
		case VarUsePre:
			on, err := parseTruth(kv.Value)
			if err != nil {
				return Variables{}, &ConfigurationError{Msg: VarUsePre, Err: err}
			}
			v.UsePre = on
		case VarMesaGLVersionOverride:
			v.MesaGLVersionOverride = kv.Value
		case VarLibGLAlwaysIndirect:
			v.LibGLAlwaysIndirect = kv.Value
		default:
			if v.Env == nil {
				v.Env = make(map[string]string)
			}
			v.Env[kv.Name] = kv.Value
		}
	}
	return v, nil
}

// Conda reports whether the job provisions a conda environment.
func (v Variables) Conda() bool { return v.InstallType == InstallConda }

func knownInstallTypes() string {
	names := make([]string, 0, len(installTypes))
	for it := range installTypes {
		names = append(names, string(it))
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
