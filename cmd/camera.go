package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/coder/quartz"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/attendance-cam/internal/camera"
	"github.com/kozaktomas/attendance-cam/internal/frame"
	"github.com/kozaktomas/attendance-cam/internal/liveness"
	"github.com/kozaktomas/attendance-cam/internal/recognizer"
	"github.com/kozaktomas/attendance-cam/internal/roster"
)

var cameraCmd = &cobra.Command{
	Use:   "camera",
	Short: "Camera diagnostics",
}

var cameraCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Grab one frame from the configured camera",
	Example: `  attendance-cam camera check
  attendance-cam camera check --out frame.jpg --recognize`,
	Args: cobra.NoArgs,
	RunE: runCameraCheck,
}

func init() {
	rootCmd.AddCommand(cameraCmd)
	cameraCmd.AddCommand(cameraCheckCmd)

	cameraCheckCmd.Flags().String("out", "", "Write the captured frame to this JPEG file")
	cameraCheckCmd.Flags().Bool("recognize", false, "Run the frame through the recognizer")
}

func runCameraCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger()
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if path := camera.LocalDevice(cfg.Camera.Device); path != "" {
		if !liveness.StatProbe(path) {
			return fmt.Errorf("camera %s not present", path)
		}
		fmt.Printf("Device %s present\n", path)
	}

	source, err := camera.Open(cfg.Camera.Device, cameraOptions(cfg), quartz.NewReal(), logger.Named("camera"))
	if err != nil {
		return fmt.Errorf("opening camera: %w", err)
	}
	defer source.Close()

	f, err := readFirstFrame(ctx, source)
	if err != nil {
		return err
	}
	fmt.Printf("Captured %dx%d frame (%d bytes)\n", f.Width, f.Height, len(f.Data))

	if out := mustGetString(cmd, "out"); out != "" {
		if err := os.WriteFile(out, f.Data, 0o600); err != nil {
			return fmt.Errorf("writing %s: %w", out, err)
		}
		fmt.Printf("Saved to %s\n", out)
	}

	if mustGetBool(cmd, "recognize") {
		store, closeStore, err := openRosterStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeStore()

		rec := recognizer.New(
			recognizer.NewClient(cfg.Recognition.EmbeddingURL, cfg.Recognition.Timeout),
			store, cfg.Recognition.Tolerance, logger.Named("recognizer"),
		)
		if _, err := rec.Reload(ctx); errors.Is(err, roster.ErrNoRoster) {
			fmt.Println("Roster is empty, run 'attendance-cam roster enroll' first")
			return nil
		} else if err != nil {
			return err
		}
		det, err := rec.Recognize(ctx, f)
		if err != nil {
			return fmt.Errorf("recognizing: %w", err)
		}
		switch {
		case !det.HasFace():
			fmt.Println("No face found")
		default:
			fmt.Printf("Face at %+v: %s\n", *det.Box, det.Identity)
		}
	}
	return nil
}

// readFirstFrame retries until the source delivers or ctx expires. ffmpeg
// sources need a moment before the first frame arrives.
func readFirstFrame(ctx context.Context, source camera.Source) (*frame.Frame, error) {
	for {
		f, err := source.ReadFrame(ctx)
		if err == nil {
			return f, nil
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("no frame from camera: %w", err)
		}
		if !errors.Is(err, camera.ErrNoFrame) {
			return nil, err
		}
	}
}
