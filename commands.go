package scanview

type Commands struct {
	app *App
}

func (cmd *Commands) AddResources(resources ...any) *Commands {
	cmd.app.addResources(resources...)
	return cmd
}

func (cmd *Commands) UseSystem(system systemScheduleBuilder) *Commands {
	cmd.app.UseSystem(system)
	return cmd
}

// OnExit registers fn to run once after the main loop ends.
func (cmd *Commands) OnExit(fn func()) *Commands {
	cmd.app.onExit = append(cmd.app.onExit, fn)
	return cmd
}

// Quit stops the App after the running system returns.
func (cmd *Commands) Quit() {
	cmd.app.quit = true
}
