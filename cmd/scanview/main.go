// scanview opens a plant scan in a window.
//
// Controls:
//
//	Left drag     - Orbit (pan the photo in photo mode)
//	Right drag    - Pan
//	Scroll        - Zoom
//	Click marker  - Look through that camera
//	Click organ   - Select organ
//	Right click   - Pick a segmented point
//	P / L / O     - Proximity, same label or sphere selection from the picked point
//	C / M         - Calibrate scale, measure
//	1..7          - Toggle mesh, points, segmented, skeleton, angles, cameras, workspace
//	R             - Reset view
//	S             - Snapshot
//	Esc           - Leave photo, cancel tool
package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gekko3d/scanview"
	"github.com/gekko3d/scanview/viewer/scan"
)

var (
	configPath string
	debug      bool
	width      int
	height     int
	snapshot   string
	logFile    string
)

func main() {
	root := &cobra.Command{
		Use:           "scanview",
		Short:         "Plant scan viewer",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	viewCmd := &cobra.Command{
		Use:   "view <scan.json>",
		Short: "Open a scan in a window",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runView(cmd, args[0])
		},
	}
	viewCmd.Flags().StringVar(&configPath, "config", "", "YAML config file")
	viewCmd.Flags().BoolVar(&debug, "debug", false, "Debug logging")
	viewCmd.Flags().IntVar(&width, "width", 0, "Window width")
	viewCmd.Flags().IntVar(&height, "height", 0, "Window height")
	viewCmd.Flags().StringVar(&snapshot, "snapshot", "", "Write snapshots (S key) to this PNG file")
	viewCmd.Flags().StringVar(&logFile, "log-file", "", "Append logs to this file instead of the terminal")

	infoCmd := &cobra.Command{
		Use:   "info <scan.json>",
		Short: "Display scan information",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInfo(args[0])
		},
	}

	root.AddCommand(viewCmd, infoCmd)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func runView(cmd *cobra.Command, path string) error {
	cfg := scanview.DefaultConfig()
	if configPath != "" {
		var err error
		if cfg, err = scanview.LoadConfig(configPath); err != nil {
			return err
		}
	}
	if cmd.Flags().Changed("debug") {
		cfg.Debug = debug
	}
	if width > 0 {
		cfg.Window.Width = width
	}
	if height > 0 {
		cfg.Window.Height = height
	}
	if snapshot != "" {
		cfg.SnapshotPath = snapshot
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("cannot access scan: %w", err)
	}

	logging := scanview.LoggingModule{Prefix: "scanview", Debug: cfg.Debug}
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		defer f.Close()
		logging.Output = f
	}

	app := scanview.NewAppBuilder().
		UseModule(logging).
		UseModule(scanview.TimeModule{}).
		UseModule(scanview.NewPlatformWindow(cfg.Window.Width, cfg.Window.Height, cfg.Window.Title)).
		UseModule(scanview.InputModule{}).
		UseModule(scanview.ViewerModule{Config: cfg, ScanPath: path}).
		Build()
	app.Run()
	return nil
}

func runInfo(path string) error {
	s, err := scan.Load(path)
	if err != nil {
		return err
	}
	ws := s.Workspace
	fmt.Printf("Scan:       %s\n", s.Id)
	fmt.Printf("Workspace:  x %v  y %v  z %v\n", ws.X, ws.Y, ws.Z)
	fmt.Printf("            %.1f x %.1f x %.1f\n", ws.Width(), ws.Height(), ws.Depth())

	poses, err := s.Poses()
	switch {
	case errors.Is(err, scan.ErrNoCamera):
		fmt.Println("Cameras:    none")
	case err != nil:
		return err
	default:
		fmt.Printf("Cameras:    %d poses", len(poses))
		if m := s.Camera.Model; m != nil {
			fmt.Printf(" (%s %dx%d)", m.Model, m.Width, m.Height)
		}
		fmt.Println()
	}

	var data []string
	if s.Data.Mesh != "" {
		data = append(data, "mesh")
	}
	if s.Data.PointCloud != "" {
		data = append(data, "point cloud")
	}
	if s.Data.SegmentedPointCloud != "" {
		data = append(data, "segmented point cloud")
	}
	if s.Data.Skeleton != nil {
		data = append(data, fmt.Sprintf("skeleton (%d points)", len(s.Data.Skeleton.Points)))
	}
	if n := s.Data.Angles.OrganCount(); n > 0 {
		data = append(data, fmt.Sprintf("angles (%d organs)", n))
	}
	if len(data) == 0 {
		data = append(data, "none")
	}
	fmt.Printf("Data:       %s\n", strings.Join(data, ", "))
	return nil
}
