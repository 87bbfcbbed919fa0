package shell

import (
	"os"
	"os/signal"
	"syscall"
)

// TrapSignals keeps SIGINT and SIGTERM from killing demosh while a demo is
// playing. Children still receive them from the terminal, so Ctrl-C stops the
// running command and playback carries on. Call the returned func to restore
// the default behavior.
func TrapSignals() (release func()) {
	ch := make(chan os.Signal, 1)
	done := make(chan struct{})
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		for {
			select {
			case <-ch:
			case <-done:
				return
			}
		}
	}()

	return func() {
		signal.Stop(ch)
		close(done)
	}
}
