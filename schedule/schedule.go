// Package schedule provides the stage/state system scheduler used to
// drive the orchestrator's Wander/Morph/Hold state machine
// and the ambient per-frame stages (time update, GPU submission, ...).
//
// It is a trimmed descendant of an entity-component-system scheduler:
// the entity/component storage is gone (this domain has one homogeneous
// atom population living entirely in GPU buffers, not a tree of
// heterogeneous game objects), but the Stage/State/System vocabulary and
// the builder API are kept.
package schedule

import (
	"fmt"
	"reflect"
	"runtime"
	"slices"

	"github.com/gekko3d/atomfield/logging"
)

type State int

// UnstatefulState is the state used by systems scheduled with RunAlways
// in an app that never calls UseStates.
const UnstatefulState State = 0

type UpdateType int

const (
	FixedUpdate UpdateType = iota
	DynamicUpdate
)

type Stage struct {
	Name       string
	UpdateType UpdateType
}

var (
	Prelude    = Stage{Name: "Prelude", UpdateType: DynamicUpdate}
	PreUpdate  = Stage{Name: "PreUpdate", UpdateType: DynamicUpdate}
	Update     = Stage{Name: "Update", UpdateType: DynamicUpdate}
	PostUpdate = Stage{Name: "PostUpdate", UpdateType: DynamicUpdate}
	PreRender  = Stage{Name: "PreRender", UpdateType: DynamicUpdate}
	Render     = Stage{Name: "Render", UpdateType: DynamicUpdate}
	PostRender = Stage{Name: "PostRender", UpdateType: DynamicUpdate}
	Finale     = Stage{Name: "Finale", UpdateType: DynamicUpdate}
)

type statePhase int

const (
	enter   statePhase = 0
	execute statePhase = 1
	exit    statePhase = 2
)

// System is any function whose parameters are either *Commands or a
// pointer to a previously registered resource. Reflection resolves the
// arguments at call time; see App.callSystem.
type System any

type systemScheduleBuilder struct {
	system        System
	inStage       Stage
	runAlways     bool
	inState       State
	inStatePhase  statePhase
	stateProvided bool
}

type stateScheduleBuilder struct {
	state  State
	phase  statePhase
	always bool
}

func OnEnter(state State) stateScheduleBuilder   { return stateScheduleBuilder{state: state, phase: enter} }
func OnExecute(state State) stateScheduleBuilder { return stateScheduleBuilder{state: state, phase: execute} }
func OnExit(state State) stateScheduleBuilder    { return stateScheduleBuilder{state: state, phase: exit} }
func Always() stateScheduleBuilder               { return stateScheduleBuilder{always: true} }

// NewSystem starts a system-schedule builder. Named NewSystem (not
// System, which would shadow the System type) for clarity at call sites.
func NewSystem(fn System) systemScheduleBuilder {
	return systemScheduleBuilder{system: fn, inStage: Update}
}

func (b systemScheduleBuilder) InStage(s Stage) systemScheduleBuilder {
	b.inStage = s
	return b
}

func (b systemScheduleBuilder) InState(s stateScheduleBuilder) systemScheduleBuilder {
	b.runAlways = s.always
	b.inState = s.state
	b.inStatePhase = s.phase
	b.stateProvided = true
	return b
}

func (b systemScheduleBuilder) RunAlways() systemScheduleBuilder {
	b.runAlways = true
	return b
}

type stagePosition int

const (
	stageBefore stagePosition = iota
	stageAfter
)

type stagePositionBuilder struct {
	position stagePosition
	target   Stage
}

func BeforeStage(s Stage) stagePositionBuilder { return stagePositionBuilder{stageBefore, s} }
func AfterStage(s Stage) stagePositionBuilder  { return stagePositionBuilder{stageAfter, s} }

// Module installs systems and resources into an App.
type Module interface {
	Install(app *App, cmd *Commands)
}

type App struct {
	stages           []Stage
	systemsStateless map[string][]System
	systems          map[string]map[State]map[statePhase][]System

	stateful     bool
	initialState State
	finalState   State
	state        State
	started      bool
	pendingState State
	transitioning bool

	resources map[reflect.Type]any
}

func NewApp() *App {
	app := &App{
		systemsStateless: make(map[string][]System),
		systems:          make(map[string]map[State]map[statePhase][]System),
		resources:        make(map[reflect.Type]any),
	}
	for _, s := range []Stage{Prelude, PreUpdate, Update, PostUpdate, PreRender, Render, PostRender, Finale} {
		app.stages = append(app.stages, s)
		app.initStage(s)
	}
	return app
}

func (app *App) UseStates(initial, final State) *App {
	app.stateful = true
	app.initialState = initial
	app.finalState = final
	app.state = initial
	for _, s := range app.stages {
		app.initStage(s)
	}
	return app
}

func (app *App) UseModules(modules ...Module) *App {
	cmd := &Commands{app: app}
	for _, m := range modules {
		m.Install(app, cmd)
	}
	return app
}

func (app *App) UseStage(stage Stage, where stagePositionBuilder) *App {
	idx := -1
	for i, s := range app.stages {
		if s.Name == where.target.Name {
			idx = i
			break
		}
	}
	if idx == -1 {
		panic(fmt.Sprintf("stage %v not found", where.target.Name))
	}
	insertAt := idx
	if where.position == stageAfter {
		insertAt = idx + 1
	}
	app.stages = slices.Insert(app.stages, insertAt, stage)
	app.initStage(stage)
	return app
}

func (app *App) UseSystem(b systemScheduleBuilder) *App {
	if b.runAlways || !b.stateProvided {
		if _, ok := app.systemsStateless[b.inStage.Name]; ok {
			app.systemsStateless[b.inStage.Name] = append(app.systemsStateless[b.inStage.Name], b.system)
			return app
		}
		panic(fmt.Sprintf("stage %v doesn't exist", b.inStage.Name))
	}
	if !app.stateful {
		panic("trying to use a stateful system in a stateless app")
	}
	systemsInStage, ok := app.systems[b.inStage.Name]
	if !ok {
		panic(fmt.Sprintf("stage %v doesn't exist", b.inStage.Name))
	}
	systemsInState, ok := systemsInStage[b.inState]
	if !ok {
		panic(fmt.Sprintf("state %v doesn't exist", b.inState))
	}
	systemsInState[b.inStatePhase] = append(systemsInState[b.inStatePhase], b.system)
	return app
}

func (app *App) initStage(stage Stage) {
	app.systemsStateless[stage.Name] = make([]System, 0)
	if app.stateful {
		app.systems[stage.Name] = make(map[State]map[statePhase][]System)
		for s := app.initialState; s <= app.finalState; s++ {
			app.systems[stage.Name][s] = map[statePhase][]System{
				enter:   {},
				execute: {},
				exit:    {},
			}
		}
	}
}

func (app *App) addResources(resources ...any) {
	for _, r := range resources {
		t := reflect.TypeOf(r)
		if t.Kind() != reflect.Ptr {
			panic(fmt.Sprintf("resource %T must be registered as a pointer", r))
		}
		key := t.Elem()
		if _, ok := app.resources[key]; ok {
			panic(fmt.Sprintf("%s is already registered as a resource", key))
		}
		app.resources[key] = r
	}
}

// Logger returns the registered Logger resource, or a no-op logger if
// none was registered. Never nil.
func (app *App) Logger() logging.Logger {
	if app == nil {
		return logging.NewNop()
	}
	for _, r := range app.resources {
		if l, ok := r.(logging.Logger); ok {
			return l
		}
	}
	return logging.NewNop()
}

// ChangeState requests a state transition, applied at the start of the
// next RunFrame so the current frame's systems finish against the old
// state first.
func (app *App) ChangeState(newState State) {
	app.pendingState = newState
	app.transitioning = true
}

// State returns the currently active state.
func (app *App) State() State { return app.state }

// RunFrame executes one pass of every stage in order, applying any
// pending state transition first.
func (app *App) RunFrame() {
	if !app.started {
		app.started = true
		app.callState(app.state, enter)
	} else if app.transitioning {
		app.transitioning = false
		app.callState(app.state, exit)
		app.state = app.pendingState
		app.callState(app.state, enter)
	}

	for _, stage := range app.stages {
		for _, sys := range app.systemsStateless[stage.Name] {
			app.callSystem(sys)
		}
		if app.stateful {
			for _, sys := range app.systems[stage.Name][app.state][execute] {
				app.callSystem(sys)
			}
		}
	}
}

func (app *App) callState(state State, phase statePhase) {
	if !app.stateful {
		return
	}
	for _, stage := range app.stages {
		for _, sys := range app.systems[stage.Name][state][phase] {
			app.callSystem(sys)
		}
	}
}

var typeOfCommands = reflect.TypeOf(Commands{})

func (app *App) callSystem(system System) {
	systemType := reflect.TypeOf(system)
	systemValue := reflect.ValueOf(system)

	args := make([]reflect.Value, systemType.NumIn())
	for i := 0; i < systemType.NumIn(); i++ {
		argType := systemType.In(i)
		underlying := argType.Elem()

		if underlying == typeOfCommands {
			args[i] = reflect.ValueOf(&Commands{app: app})
			continue
		}
		resource, ok := app.resources[underlying]
		if !ok {
			msg := fmt.Sprintf("unable to resolve system dependency %s in %s",
				argType, runtime.FuncForPC(systemValue.Pointer()).Name())
			panic(msg)
		}
		args[i] = reflect.ValueOf(resource)
	}
	systemValue.Call(args)
}
