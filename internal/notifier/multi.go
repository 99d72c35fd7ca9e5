package notifier

import "errors"

// MultiNotifier fans one notification out to several sinks. Every sink is
// attempted even when an earlier one fails.
type MultiNotifier struct {
	Notifiers []Notifier
}

func (m *MultiNotifier) Notify(content string) error {
	var errs []error

	for _, n := range m.Notifiers {
		if err := n.Notify(content); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
