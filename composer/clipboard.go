package composer

import (
	"io"
	"os"
	"strings"

	"github.com/aymanbagabas/go-osc52/v2"
)

// CopiedMessage is the confirmation raised after every successful copy.
const CopiedMessage = "SQL copied to clipboard"

// Clipboard receives copied snippets.
type Clipboard interface {
	Copy(text string) error
}

// OSC52Clipboard copies through the terminal with an OSC 52 escape
// sequence, which also works over SSH.
type OSC52Clipboard struct {
	Out io.Writer
	// Tmux and Screen wrap the sequence for the multiplexer in use.
	Tmux   bool
	Screen bool
}

// NewOSC52Clipboard returns a clipboard writing to out (stdout if nil),
// wrapping sequences for tmux or screen when the environment says so.
func NewOSC52Clipboard(out io.Writer) OSC52Clipboard {
	if out == nil {
		out = os.Stdout
	}
	return OSC52Clipboard{
		Out:    out,
		Tmux:   os.Getenv("TMUX") != "",
		Screen: strings.HasPrefix(os.Getenv("TERM"), "screen"),
	}
}

func (c OSC52Clipboard) Copy(text string) error {
	seq := osc52.New(text)
	switch {
	case c.Tmux:
		seq = seq.Tmux()
	case c.Screen:
		seq = seq.Screen()
	}
	out := c.Out
	if out == nil {
		out = os.Stdout
	}
	_, err := seq.WriteTo(out)
	return err
}

type NotificationKind int

const (
	NotifyInfo NotificationKind = iota
	NotifyError
)

// Notification is a transient message for the user.
type Notification struct {
	Kind    NotificationKind
	Message string
	Icon    string
}

// Notifier shows notifications.
type Notifier interface {
	Notify(n Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notification)

func (f NotifierFunc) Notify(n Notification) { f(n) }

// CopySnippet writes the snippet's raw text to the clipboard and raises
// exactly one notification: the confirmation, or the failure.
func CopySnippet(clip Clipboard, notifier Notifier, text string) error {
	if err := clip.Copy(text); err != nil {
		if notifier != nil {
			notifier.Notify(Notification{Kind: NotifyError, Message: "copy failed: " + err.Error()})
		}
		return err
	}
	if notifier != nil {
		notifier.Notify(Notification{Kind: NotifyInfo, Message: CopiedMessage, Icon: "✂️"})
	}
	return nil
}
