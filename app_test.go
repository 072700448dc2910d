package scanview

import (
	"bytes"
	"fmt"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type MockResource1 struct {
	name string
}
type MockResource2 struct {
	name string
}

func NewMockResource1(name string) *MockResource1 {
	return &MockResource1{name: name}
}
func NewMockResource2(name string) *MockResource2 {
	return &MockResource2{name: name}
}

func TestApp_addResources(t *testing.T) {
	app := &App{
		resources: make(map[reflect.Type]any),
	}

	resource1 := NewMockResource1("Resource1")
	app.addResources(resource1)
	assert.Contains(t, app.resources, reflect.TypeOf(resource1).Elem(), "Resource1 should be in resources map.")

	// Expect panic when trying to add the same type of resource again
	require.PanicsWithValue(t, fmt.Sprintf("%s is already in resources", reflect.TypeOf(resource1)), func() {
		app.addResources(resource1)
	})

	resource2 := NewMockResource2("Resource2")
	app.addResources(resource2)
	assert.Contains(t, app.resources, reflect.TypeOf(resource2).Elem(), "Resource2 should be in resources map.")
}

func TestResourceLookup(t *testing.T) {
	app := newApp()
	app.addResources(NewMockResource1("one"))

	r, ok := Resource[*MockResource1](app)
	require.True(t, ok)
	assert.Equal(t, "one", r.name)

	_, ok = Resource[*MockResource2](app)
	assert.False(t, ok)
	_, ok = Resource[MockResource1](app)
	assert.False(t, ok, "non-pointer lookups never match")
}

func TestApp_callSystemInjectsResources(t *testing.T) {
	app := newApp()
	app.addResources(NewMockResource1("one"), NewMockResource2("two"))

	var got []string
	app.callSystem(func(r1 *MockResource1, cmd *Commands, r2 *MockResource2) {
		require.NotNil(t, cmd)
		got = append(got, r1.name, r2.name)
	})
	assert.Equal(t, []string{"one", "two"}, got)
}

func TestApp_callSystemPanicsOnMissingDependency(t *testing.T) {
	app := newApp()
	assert.Panics(t, func() {
		app.callSystem(func(*MockResource1) {})
	})
}

func TestApp_RunStepsStagesInOrderUntilQuit(t *testing.T) {
	app := newApp()
	var order []string
	app.UseSystem(System(func() { order = append(order, "render") }).InStage(Render))
	app.UseSystem(System(func() { order = append(order, "update") }))
	app.UseSystem(System(func() { order = append(order, "prelude") }).InStage(Prelude))
	app.UseSystem(System(func(cmd *Commands) {
		if app.Frames() == 1 {
			cmd.Quit()
		}
	}).InStage(Finale))

	var exits []int
	cmd := app.Commands()
	cmd.OnExit(func() { exits = append(exits, 1) })
	cmd.OnExit(func() { exits = append(exits, 2) })

	app.Run()

	assert.Equal(t, []string{"prelude", "update", "render", "prelude", "update", "render"}, order)
	assert.Equal(t, []int{2, 1}, exits, "exit hooks run in reverse order")
	assert.Equal(t, uint64(1), app.Frames(), "the quitting frame is not counted")
}

func TestApp_UseStage(t *testing.T) {
	app := newApp()
	custom := Stage{Name: "Custom"}
	app.UseStage(custom, AfterStage(Update))

	idx := -1
	for i, s := range app.stages {
		if s == custom {
			idx = i
		}
	}
	require.NotEqual(t, -1, idx)
	assert.Equal(t, Update, app.stages[idx-1])

	assert.Panics(t, func() { app.UseStage(custom, BeforeStage(Render)) }, "duplicate stage")
	assert.Panics(t, func() { app.UseStage(Stage{Name: "Other"}, BeforeStage(Stage{Name: "Missing"})) })
	assert.Panics(t, func() { app.UseSystem(System(func() {}).InStage(Stage{Name: "Missing"})) })
}

func TestAppLoggerFallsBackToNop(t *testing.T) {
	var app *App
	assert.NotNil(t, app.Logger())

	app = NewAppBuilder().UseModule(LoggingModule{Prefix: "test"}).Build()
	_, ok := app.Logger().(*DefaultLogger)
	assert.True(t, ok)
}

func TestNamedLoggerSharesOutputAndLevel(t *testing.T) {
	var buf bytes.Buffer
	app := NewAppBuilder().UseModule(LoggingModule{Prefix: "scanview", Output: &buf}).Build()
	root := app.Logger()
	loader := Named(root, "loader")

	loader.Infof("scan %s ready", "a")
	loader.Debugf("hidden")
	root.SetDebug(true)
	loader.Debugf("shown")
	root.Warnf("careful")

	out := buf.String()
	assert.Contains(t, out, "[scanview/loader] INFO: scan a ready")
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[scanview/loader] DEBUG: shown")
	assert.Contains(t, out, "[scanview] WARN: careful")
	assert.True(t, loader.DebugEnabled())

	nop := NewNopLogger()
	assert.Equal(t, nop, Named(nop, "x"))
}

func TestTimeSystemAdvances(t *testing.T) {
	app := NewAppBuilder().UseModule(TimeModule{}).Build()
	clock, ok := Resource[*Time](app)
	require.True(t, ok)

	before := clock.Now()
	app.Step()
	assert.False(t, clock.Now().Before(before))
	assert.GreaterOrEqual(t, clock.Dt.Nanoseconds(), int64(0))
}
