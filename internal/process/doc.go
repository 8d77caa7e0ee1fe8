// Package process supervises one external program at a time: start it,
// stream its output to the logger, restart it when it dies and stop it
// with SIGTERM before falling back to SIGKILL.
//
// Launcher modules use a Supervisor to start playback software, media
// servers or scripts from consequences.
//
//	s := process.NewSupervisor(process.Config{
//	    Name:             "player",
//	    Binary:           "/usr/bin/mpv",
//	    Args:             []string{"--fs", "intro.mp4"},
//	    RestartOnFailure: true,
//	})
//	if err := s.Start(ctx); err != nil {
//	    return err
//	}
//	defer s.Stop()
//
// Processes run in their own process group so Stop reaches their children.
package process
