package notifications

import (
	stderrors "errors"
)

// MultiNotifier fans an alert out to every notifier. Delivery continues past
// failures and the joined error is returned.
type MultiNotifier struct {
	notifiers []Notifier
}

func NewMultiNotifier(notifiers ...Notifier) *MultiNotifier {
	var kept []Notifier
	for _, n := range notifiers {
		if n != nil {
			kept = append(kept, n)
		}
	}
	return &MultiNotifier{notifiers: kept}
}

func (m *MultiNotifier) SendAlert(level, message string) error {
	var errs []error
	for _, n := range m.notifiers {
		if err := n.SendAlert(level, message); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}
