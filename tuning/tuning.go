// Package tuning holds the runtime knobs of the physics bridge: jump sensing,
// entity defaults and slab constants. Values come from a YAML file checked
// against an embedded JSON schema and can be reloaded while the world runs.
package tuning

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed schema.json
var schemaJSON string

type Tuning struct {
	PerTick    PerTick    `yaml:"per_tick" json:"per_tick"`
	Simulation Simulation `yaml:"simulation" json:"simulation"`
	Slab       Slab       `yaml:"slab" json:"slab"`
}

// PerTick values are read every time an entity moves or jumps.
type PerTick struct {
	// JumpSensorLengthScale scales the entity's forward half extent to get
	// the distance of the jump sensor ahead of the entity centre.
	JumpSensorLengthScale float32 `yaml:"jump_sensor_length_scale" json:"jump_sensor_length_scale"`
	// JumpSensorDropScale scales the entity's vertical half extent to get the
	// distance of the jump sensor centre below the entity centre. At 1 the
	// sensor straddles the entity's base plane.
	JumpSensorDropScale float32 `yaml:"jump_sensor_drop_scale" json:"jump_sensor_drop_scale"`
	// JumpForce is added to the vertical force of a jumping entity.
	JumpForce float32 `yaml:"jump_force" json:"jump_force"`
}

type Simulation struct {
	Friction       float32 `yaml:"friction" json:"friction"`
	LinearDamping  float32 `yaml:"linear_damping" json:"linear_damping"`
	TicksPerSecond int     `yaml:"ticks_per_second" json:"ticks_per_second"`
}

type Slab struct {
	Friction float32 `yaml:"friction" json:"friction"`
	// HalfThickness lowers the slab so authored ground level sits on its top face.
	HalfThickness float32 `yaml:"half_thickness" json:"half_thickness"`
}

func Default() Tuning {
	return Tuning{
		PerTick: PerTick{
			JumpSensorLengthScale: 1.6,
			JumpSensorDropScale:   1.0,
			JumpForce:             600,
		},
		Simulation: Simulation{
			Friction:       0.2,
			LinearDamping:  0.8,
			TicksPerSecond: 60,
		},
		Slab: Slab{
			Friction:      0.5,
			HalfThickness: 0.5,
		},
	}
}

// FixedStep is the substep length implied by TicksPerSecond.
func (t Tuning) FixedStep() float32 {
	if t.Simulation.TicksPerSecond <= 0 {
		return 1.0 / 60.0
	}
	return 1.0 / float32(t.Simulation.TicksPerSecond)
}

var compileSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	return jsonschema.CompileString("tuning.schema.json", schemaJSON)
})

// Parse validates raw YAML against the schema and overlays it on Default.
// Keys missing from raw keep their default value.
func Parse(raw []byte) (Tuning, error) {
	t := Default()

	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if doc == nil {
		return t, nil
	}
	if err := validate(doc); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return Default(), fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func Load(path string) (Tuning, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Default(), err
	}
	return Parse(raw)
}

// validate runs the schema over a decoded YAML document. The document goes
// through JSON first so the validator sees JSON value types.
func validate(doc any) error {
	schema, err := compileSchema()
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	return schema.Validate(v)
}

// Source hands out the tuning in effect right now.
type Source interface {
	Current() Tuning
}

// Static is a Source whose value only changes through Set.
type Static struct {
	mu sync.RWMutex
	t  Tuning
}

func NewStatic(t Tuning) *Static {
	return &Static{t: t}
}

func (s *Static) Current() Tuning {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.t
}

func (s *Static) Set(t Tuning) {
	s.mu.Lock()
	s.t = t
	s.mu.Unlock()
}
