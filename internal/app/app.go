// Package app runs the user-facing side of an established channel: the host
// prints text messages and stores files, the client sends stdin lines or a
// single file. Every text or file message is acknowledged so that the client
// knows when it may hang up.
package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pterm/pterm"

	"github.com/1ureka/bitseal/internal/channel"
	"github.com/1ureka/bitseal/internal/protocol"
	"github.com/1ureka/bitseal/internal/util"
)

// Options configures both roles. Zero values fall back to the current
// directory, stdin and stdout.
type Options struct {
	OutDir   string    // host: where received files are written
	SendFile string    // client: send this file and exit
	Input    io.Reader // client: one text message per line
	Output   io.Writer // received text messages
}

// maxFileSize is the largest file that fits into one message next to its
// envelope header and a 255-byte name.
const maxFileSize = protocol.MaxMessageSize - envelopeHeaderSize - 255

// peer handles inbound messages for one channel.
type peer struct {
	ctx  context.Context
	conn *channel.Conn
	opts Options
	acks chan *Envelope
}

func newPeer(ctx context.Context, conn *channel.Conn, opts Options) *peer {
	if opts.OutDir == "" {
		opts.OutDir = "."
	}
	if opts.Input == nil {
		opts.Input = os.Stdin
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	return &peer{ctx: ctx, conn: conn, opts: opts, acks: make(chan *Envelope, 1)}
}

// ---------------------------------------------------------------------------
// Public API
// ---------------------------------------------------------------------------

// RunAsHost receives messages until the channel or ctx is done.
func RunAsHost(ctx context.Context, conn *channel.Conn, opts Options) error {
	p := newPeer(ctx, conn, opts)
	conn.OnMessage(p.handle)

	select {
	case <-conn.Done():
	case <-ctx.Done():
	}
	return conn.Err()
}

// RunAsClient sends opts.SendFile, or every line of opts.Input, waiting for
// the host's acknowledgement after each message. It returns once everything
// is acknowledged.
func RunAsClient(ctx context.Context, conn *channel.Conn, opts Options) error {
	p := newPeer(ctx, conn, opts)
	conn.OnMessage(p.handle)

	if p.opts.SendFile != "" {
		return p.sendFile(p.opts.SendFile)
	}
	return p.sendLines(p.opts.Input)
}

// ---------------------------------------------------------------------------
// Sending
// ---------------------------------------------------------------------------

func (p *peer) sendFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.Size() > maxFileSize {
		return fmt.Errorf("%s is %s, the limit is %s", path,
			strings.TrimSpace(util.FormatBytes(float64(info.Size()))),
			strings.TrimSpace(util.FormatBytes(maxFileSize)))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	name := filepath.Base(path)
	if err := p.sendAndWait(&Envelope{Kind: KindFile, Name: name, Body: data}); err != nil {
		return err
	}

	util.LogSuccess("sent %s (%s)", name, strings.TrimSpace(util.FormatBytes(float64(len(data)))))
	return nil
}

func (p *peer) sendLines(in io.Reader) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)

	// The scanner cannot be interrupted; it is abandoned on shutdown.
	go func() {
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 64*1024), protocol.MaxMessageSize-envelopeHeaderSize)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-p.ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	for {
		select {
		case line := <-lines:
			if line == "" {
				continue
			}
			if err := p.sendAndWait(&Envelope{Kind: KindText, Body: []byte(line)}); err != nil {
				return err
			}
		case err := <-scanErr:
			return err
		case <-p.conn.Done():
			return p.closedErr()
		case <-p.ctx.Done():
			return p.ctx.Err()
		}
	}
}

// sendAndWait sends env and blocks until the matching acknowledgement.
func (p *peer) sendAndWait(env *Envelope) error {
	msg, err := env.Marshal()
	if err != nil {
		return err
	}
	if err := p.conn.Send(p.ctx, msg); err != nil {
		return err
	}

	select {
	case ack := <-p.acks:
		if ack.Name != env.Name {
			return fmt.Errorf("acknowledgement for %q while waiting for %q", ack.Name, env.Name)
		}
		if len(ack.Body) > 0 {
			return fmt.Errorf("peer rejected %q: %s", env.Name, ack.Body)
		}
		return nil
	case <-p.conn.Done():
		return p.closedErr()
	case <-p.ctx.Done():
		return p.ctx.Err()
	}
}

func (p *peer) closedErr() error {
	if err := p.conn.Err(); err != nil {
		return err
	}
	return errors.New("channel closed by peer")
}

// ---------------------------------------------------------------------------
// Receiving
// ---------------------------------------------------------------------------

// handle runs on the transport's receive goroutine.
func (p *peer) handle(msg []byte) {
	env, err := ParseEnvelope(msg)
	if err != nil {
		util.LogWarning("dropping message: %v", err)
		return
	}

	switch env.Kind {
	case KindText:
		fmt.Fprintf(p.opts.Output, "%s %s\n", pterm.FgCyan.Sprint("peer>"), env.Body)
		p.ack(env, nil)

	case KindFile:
		path, err := p.save(env)
		if err != nil {
			util.LogError("failed to store %q: %v", env.Name, err)
		} else {
			util.LogSuccess("received %s (%s) -> %s", env.Name,
				strings.TrimSpace(util.FormatBytes(float64(len(env.Body)))), path)
		}
		p.ack(env, err)

	case KindAck:
		select {
		case p.acks <- env:
		default:
			util.LogDebug("unsolicited acknowledgement for %q", env.Name)
		}
	}
}

func (p *peer) ack(env *Envelope, failure error) {
	reply := &Envelope{Kind: KindAck, Name: env.Name}
	if failure != nil {
		reply.Body = []byte(failure.Error())
	}
	msg, err := reply.Marshal()
	if err != nil {
		util.LogError("failed to build acknowledgement: %v", err)
		return
	}
	if err := p.conn.Send(p.ctx, msg); err != nil {
		util.LogWarning("failed to acknowledge %q: %v", env.Name, err)
	}
}

// save writes a received file into OutDir under its base name, adding a
// numeric suffix instead of overwriting.
func (p *peer) save(env *Envelope) (string, error) {
	name := filepath.Base(filepath.Clean("/" + strings.ReplaceAll(env.Name, `\`, "/")))
	if name == "/" || name == "." || name == ".." {
		return "", fmt.Errorf("unusable file name %q", env.Name)
	}

	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	for i := 0; i < 1000; i++ {
		candidate := name
		if i > 0 {
			candidate = fmt.Sprintf("%s (%d)%s", stem, i, ext)
		}
		path := filepath.Join(p.opts.OutDir, candidate)

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", err
		}
		if _, err := f.Write(env.Body); err != nil {
			f.Close()
			return "", err
		}
		return path, f.Close()
	}
	return "", fmt.Errorf("too many files named %q", name)
}
