package ui

import (
	"context"
	"strings"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"NebulaSketch/internal/ai"
)

// BillingAuthorizer backs the session's Authorizer contract with a modal
// key dialog. Authorization means "pro tier usable": it starts true when a
// key arrived from the environment and is dropped again whenever the
// backend rejects the credential.
type BillingAuthorizer struct {
	mu         sync.RWMutex
	win        fyne.Window
	client     *ai.Client
	authorized bool
}

func NewBillingAuthorizer(win fyne.Window, client *ai.Client, authorized bool) *BillingAuthorizer {
	return &BillingAuthorizer{win: win, client: client, authorized: authorized}
}

func (b *BillingAuthorizer) HasAuthorization() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.authorized
}

func (b *BillingAuthorizer) Invalidate() {
	b.mu.Lock()
	b.authorized = false
	b.mu.Unlock()
}

// RequestAuthorization shows the key dialog and blocks the calling
// goroutine until it closes. Cancelling the dialog leaves the status
// unchanged; confirming installs the key and grants access.
func (b *BillingAuthorizer) RequestAuthorization(ctx context.Context) error {
	entered := make(chan string, 1)
	fyne.Do(func() {
		entry := widget.NewPasswordEntry()
		entry.SetPlaceHolder("Gemini API key with billing enabled")
		items := []*widget.FormItem{widget.NewFormItem("API key", entry)}
		dialog.ShowForm("Enable Pro critiques", "Authorize", "Cancel", items, func(ok bool) {
			if ok {
				entered <- strings.TrimSpace(entry.Text)
			} else {
				entered <- ""
			}
		}, b.win)
	})

	select {
	case key := <-entered:
		if key == "" {
			return nil
		}
		if err := b.client.Configure(ctx, key); err != nil {
			return err
		}
		b.mu.Lock()
		b.authorized = true
		b.mu.Unlock()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
