package core

// Job is one concrete configuration handed to the runner: a platform image plus
// the environment of a single matrix entry.
type Job struct {
	ID        string    `json:"id" yaml:"id"`
	Name      string    `json:"name" yaml:"name"`   // "<group> <label>"
	Group     string    `json:"group" yaml:"group"` // job template name
	Label     string    `json:"label" yaml:"label"` // matrix label
	Template  string    `json:"template" yaml:"template"`
	VMImage   string    `json:"vmImage" yaml:"vmImage"`
	Variables Variables `json:"variables" yaml:"variables"`
	Env       Bindings  `json:"env" yaml:"env"` // everything the runner exports, in order
}

// Environ returns the job environment as NAME=value pairs.
func (j Job) Environ() []string { return j.Env.Environ() }
