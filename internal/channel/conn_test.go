package channel

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/1ureka/bitseal/internal/protocol"
	"github.com/1ureka/bitseal/internal/record"
)

// Compile-time interface check.
var _ Transport = (*mockTransport)(nil)

// mockTransport is one end of an in-memory link. Frames sent by one side are
// delivered in order to the other side's OnFrame handler by a single
// goroutine. The mangle hook, if set, rewrites each outgoing frame into zero
// or more frames on the wire.
type mockTransport struct {
	peer   *mockTransport
	queue  chan []byte
	mangle func([]byte) [][]byte

	mu   sync.Mutex
	sent int

	done chan struct{}
	once sync.Once
}

func mockTransports() (a, b *mockTransport) {
	a = &mockTransport{queue: make(chan []byte, 8192), done: make(chan struct{})}
	b = &mockTransport{queue: make(chan []byte, 8192), done: make(chan struct{})}
	a.peer, b.peer = b, a
	return a, b
}

func (m *mockTransport) SendFrame(ctx context.Context, frame []byte) error {
	select {
	case <-m.done:
		return context.Canceled
	default:
	}

	out := [][]byte{append([]byte(nil), frame...)}
	if m.mangle != nil {
		out = m.mangle(out[0])
	}

	m.mu.Lock()
	m.sent++
	m.mu.Unlock()

	for _, f := range out {
		select {
		case m.peer.queue <- f:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (m *mockTransport) OnFrame(fn func([]byte)) {
	go func() {
		for {
			select {
			case f := <-m.queue:
				fn(f)
			case <-m.done:
				return
			}
		}
	}()
}

func (m *mockTransport) Done() <-chan struct{} { return m.done }

func (m *mockTransport) Close() error {
	m.once.Do(func() { close(m.done) })
	return nil
}

func (m *mockTransport) sentFrames() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sent
}

// connPair returns two connected Conns and a channel per side that receives
// completed messages.
func connPair(t *testing.T, ta, tb *mockTransport) (a, b *Conn, inA, inB chan []byte) {
	t.Helper()

	key := bytes.Repeat([]byte{0x33}, protocol.KeySize)
	saltA := []byte{0xa0, 0xa1, 0xa2, 0xa3}
	saltB := []byte{0xb0, 0xb1, 0xb2, 0xb3}

	sa, err := record.NewSession(key, saltA, saltB, record.AESGCM{})
	if err != nil {
		t.Fatalf("NewSession(A): %v", err)
	}
	sb, err := record.NewSession(key, saltB, saltA, record.AESGCM{})
	if err != nil {
		t.Fatalf("NewSession(B): %v", err)
	}

	a = New(sa, ta, Options{})
	b = New(sb, tb, Options{})
	inA = make(chan []byte, 16)
	inB = make(chan []byte, 16)
	a.OnMessage(func(msg []byte) { inA <- msg })
	b.OnMessage(func(msg []byte) { inB <- msg })

	t.Cleanup(func() { ta.Close(); tb.Close() })
	return a, b, inA, inB
}

func expectMessage(t *testing.T, in <-chan []byte, want []byte) {
	t.Helper()
	select {
	case got := <-in:
		if !bytes.Equal(got, want) {
			t.Fatalf("message mismatch: got %d bytes, want %d", len(got), len(want))
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("message of %d bytes never arrived", len(want))
	}
}

func expectNoMessage(t *testing.T, in <-chan []byte) {
	t.Helper()
	select {
	case got := <-in:
		t.Fatalf("unexpected message of %d bytes", len(got))
	case <-time.After(100 * time.Millisecond):
	}
}

func makeTestData(size int, seed byte) []byte {
	data := make([]byte, size)
	for i := range data {
		data[i] = seed + byte(i*7)
	}
	return data
}

func TestSendBothDirections(t *testing.T) {
	ta, tb := mockTransports()
	a, b, inA, inB := connPair(t, ta, tb)
	ctx := context.Background()

	sizes := []int{1, protocol.FragmentSize, protocol.FragmentSize + 1, 100 * 1024, 1 << 20}
	for i, size := range sizes {
		msg := makeTestData(size, byte(i))
		if err := a.Send(ctx, msg); err != nil {
			t.Fatalf("A.Send(%d): %v", size, err)
		}
		expectMessage(t, inB, msg)

		reply := makeTestData(size, byte(i+100))
		if err := b.Send(ctx, reply); err != nil {
			t.Fatalf("B.Send(%d): %v", size, err)
		}
		expectMessage(t, inA, reply)
	}

	if a.Err() != nil || b.Err() != nil {
		t.Fatalf("unexpected channel errors: %v / %v", a.Err(), b.Err())
	}
}

func TestConcurrentSendersKeepMessagesIntact(t *testing.T) {
	ta, tb := mockTransports()
	a, _, _, inB := connPair(t, ta, tb)

	const senders = 4
	msgs := make(map[byte][]byte)
	for i := 0; i < senders; i++ {
		msgs[byte(i)] = makeTestData(3*protocol.FragmentSize+i, byte(i))
	}

	var wg sync.WaitGroup
	for id, msg := range msgs {
		wg.Add(1)
		go func(msg []byte) {
			defer wg.Done()
			if err := a.Send(context.Background(), msg); err != nil {
				t.Errorf("Send(%d): %v", id, err)
			}
		}(msg)
	}
	wg.Wait()

	for i := 0; i < senders; i++ {
		select {
		case got := <-inB:
			want, ok := msgs[got[0]]
			if !ok || !bytes.Equal(got, want) {
				t.Fatalf("corrupted message (first byte %d, %d bytes)", got[0], len(got))
			}
			delete(msgs, got[0])
		case <-time.After(5 * time.Second):
			t.Fatalf("only %d of %d messages arrived", i, senders)
		}
	}
}

func TestDuplicatedFramesAreDropped(t *testing.T) {
	ta, tb := mockTransports()
	ta.mangle = func(f []byte) [][]byte { return [][]byte{f, f} }
	a, b, _, inB := connPair(t, ta, tb)

	msg := makeTestData(5*protocol.FragmentSize, 9)
	if err := a.Send(context.Background(), msg); err != nil {
		t.Fatalf("Send: %v", err)
	}
	expectMessage(t, inB, msg)
	expectNoMessage(t, inB)

	if b.Err() != nil {
		t.Fatalf("replays must not close the channel: %v", b.Err())
	}
	select {
	case <-b.Done():
		t.Fatal("transport closed after replays")
	default:
	}
}

func TestTamperedFrameClosesChannel(t *testing.T) {
	ta, tb := mockTransports()
	ta.mangle = func(f []byte) [][]byte {
		f[len(f)-1] ^= 0x01
		return [][]byte{f}
	}
	a, b, _, inB := connPair(t, ta, tb)

	if err := a.Send(context.Background(), []byte("hello")); err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case <-b.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("receiver did not close after a forged frame")
	}
	if !protocol.IsKind(b.Err(), protocol.KindDecryptFailure) {
		t.Fatalf("Err: got %v, want DecryptFailure", b.Err())
	}
	expectNoMessage(t, inB)
}

func TestOversizedMessageSendsNothing(t *testing.T) {
	ta, tb := mockTransports()
	a, _, _, _ := connPair(t, ta, tb)

	err := a.Send(context.Background(), make([]byte, protocol.MaxMessageSize+1))
	if !protocol.IsKind(err, protocol.KindMessageTooLarge) {
		t.Fatalf("got %v, want MessageTooLarge", err)
	}
	if n := ta.sentFrames(); n != 0 {
		t.Fatalf("%d frames sent for a rejected message", n)
	}
	if a.Err() != nil {
		t.Fatalf("rejected message must not fail the channel: %v", a.Err())
	}
}

func TestEmptyMessageSendsNothing(t *testing.T) {
	ta, tb := mockTransports()
	a, _, _, inB := connPair(t, ta, tb)

	if err := a.Send(context.Background(), nil); err != nil {
		t.Fatalf("Send(nil): %v", err)
	}
	if n := ta.sentFrames(); n != 0 {
		t.Fatalf("%d frames sent for an empty message", n)
	}
	expectNoMessage(t, inB)
}

func TestSendAfterTransportClosed(t *testing.T) {
	ta, tb := mockTransports()
	a, _, _, _ := connPair(t, ta, tb)

	ta.Close()
	if err := a.Send(context.Background(), []byte("late")); err == nil {
		t.Fatal("Send on a closed transport succeeded")
	}
}
