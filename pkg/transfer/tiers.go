package transfer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
)

// FileDownloader writes the document into Dir under its file name.
type FileDownloader struct {
	Dir string
}

func (FileDownloader) Name() string { return "download" }

func (d FileDownloader) Deliver(ctx context.Context, doc Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir := d.Dir
	if dir == "" {
		dir = "."
	}
	path := filepath.Join(dir, filepath.Base(doc.Filename))
	if err := os.WriteFile(path, doc.Data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

var errNoClipboard = errors.New("no clipboard command available")

// clipboardCommands are tried in order when CommandClipboard has no Command.
var clipboardCommands = [][]string{
	{"wl-copy"},
	{"xclip", "-selection", "clipboard"},
	{"xsel", "--clipboard", "--input"},
	{"pbcopy"},
	{"clip.exe"},
}

// CommandClipboard pipes the document into a clipboard utility.
type CommandClipboard struct {
	Command []string
}

func (CommandClipboard) Name() string { return "clipboard" }

func (c CommandClipboard) Deliver(ctx context.Context, doc Document) error {
	argv := c.Command
	if len(argv) == 0 {
		for _, candidate := range clipboardCommands {
			if _, err := exec.LookPath(candidate[0]); err == nil {
				argv = candidate
				break
			}
		}
	}
	if len(argv) == 0 {
		return errNoClipboard
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdin = bytes.NewReader(doc.Data)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", argv[0], err, bytes.TrimSpace(out))
	}
	return nil
}

// WriterFallback prints the document so it can be copied by hand.
type WriterFallback struct {
	W io.Writer
}

func (WriterFallback) Name() string { return "fallback" }

func (f WriterFallback) Deliver(_ context.Context, doc Document) error {
	w := f.W
	if w == nil {
		w = os.Stdout
	}
	if _, err := w.Write(doc.Data); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// TierFunc adapts a function into a Tier.
type TierFunc struct {
	Label string
	Fn    func(ctx context.Context, doc Document) error
}

func (t TierFunc) Name() string { return t.Label }

func (t TierFunc) Deliver(ctx context.Context, doc Document) error {
	if t.Fn == nil {
		return errors.New("tier not configured")
	}
	return t.Fn(ctx, doc)
}
