package scanview

import (
	"time"
)

type Time struct {
	Time time.Time
	Dt   time.Duration
}

// Now returns the frame time. Viewer behaviors use it as their clock so
// a whole frame sees one instant.
func (t *Time) Now() time.Time { return t.Time }

type TimeModule struct {
}

func (mod TimeModule) Install(app *App, cmd *Commands) {
	cmd.AddResources(&Time{
		Time: time.Now(),
		Dt:   0,
	})
	cmd.UseSystem(System(timeSystem).InStage(Prelude))
}

func timeSystem(timeResource *Time) {
	now := time.Now()

	timeResource.Dt = now.Sub(timeResource.Time)
	timeResource.Time = now
}
