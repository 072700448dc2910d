package scanview

import (
	"fmt"
	"runtime"

	"github.com/go-gl/glfw/v3.3/glfw"
)

type WindowState struct {
	windowGlfw   *glfw.Window
	WindowWidth  int
	WindowHeight int
	windowTitle  string
}

// Glfw exposes the native window for the renderer surface.
func (s *WindowState) Glfw() *glfw.Window { return s.windowGlfw }

func (s *WindowState) SetTitle(title string) {
	s.windowTitle = title
	s.windowGlfw.SetTitle(title)
}

func createWindowState(width, height int, title string) (*WindowState, error) {
	runtime.LockOSThread()
	if err := glfw.Init(); err != nil {
		return nil, fmt.Errorf("failed to init glfw: %w", err)
	}

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI) // no OpenGL context, WebGPU owns the surface
	glfw.WindowHint(glfw.Resizable, glfw.True)

	win, err := glfw.CreateWindow(width, height, title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, fmt.Errorf("failed to create window: %w", err)
	}

	fbw, fbh := win.GetFramebufferSize()
	return &WindowState{
		windowGlfw:   win,
		WindowWidth:  fbw,
		WindowHeight: fbh,
		windowTitle:  title,
	}, nil
}

// PlatformWindowModule provides the single shared WindowState resource.
// Install is a no-op when one already exists.
type PlatformWindowModule struct {
	Width  int
	Height int
	Title  string
}

func NewPlatformWindow(width, height int, title string) *PlatformWindowModule {
	if width <= 0 {
		width = 1280
	}
	if height <= 0 {
		height = 720
	}
	if title == "" {
		title = "scanview"
	}
	return &PlatformWindowModule{
		Width:  width,
		Height: height,
		Title:  title,
	}
}

func (m PlatformWindowModule) Install(app *App, cmd *Commands) {
	if _, ok := Resource[*WindowState](app); ok {
		return
	}

	ws, err := createWindowState(m.Width, m.Height, m.Title)
	if err != nil {
		panic(err)
	}
	cmd.AddResources(ws)
	cmd.UseSystem(System(windowCloseSystem).InStage(Finale))
	cmd.OnExit(func() {
		ws.windowGlfw.Destroy()
		glfw.Terminate()
	})
}

func windowCloseSystem(s *WindowState, cmd *Commands) {
	if s.windowGlfw.ShouldClose() {
		cmd.Quit()
	}
}
