package notifier

import (
	"fmt"
	"os/exec"
)

// DesktopNotifier sends desktop notifications through an external command,
// notify-send by default. A missing command is reported as an error so the
// caller can decide to keep going.
type DesktopNotifier struct {
	Command string
	Title   string
}

func (d *DesktopNotifier) Notify(content string) error {
	command := d.Command
	if command == "" {
		command = "notify-send"
	}

	title := d.Title
	if title == "" {
		title = "torrentcli"
	}

	if err := exec.Command(command, title, content).Run(); err != nil {
		return fmt.Errorf("running %s: %w", command, err)
	}

	return nil
}
