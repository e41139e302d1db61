// Package pipeline implements the Pipeline Bridge (C10): each Peer Session's
// media/tensor transport runs on its own cooperative worker goroutine with an
// attached command channel, mirroring the spec's "two-phase construction"
// redesign (build() returns a value, start() spawns the worker and blocks on
// Ready, both fallible) instead of starting the worker from a constructor.
package pipeline

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/beyondnet/beyond/internal/berr"
)

const component = "pipeline"

// Command is one instruction sent to a Bridge's worker loop.
type Command int

const (
	CommandReady Command = iota
	CommandPrepare
	CommandInvoke
	CommandStop
	CommandExit
)

// InvokePayload carries one tensor frame plus the caller's opaque context,
// mirroring the wrapped gst-buffer handoff from §4.10.
type InvokePayload struct {
	Tensor      []byte
	UserContext any
}

// OutputEvent is published whenever the pipeline produces a decoded output
// tensor or an irrecoverable bus error, letting the owning Peer Session
// dequeue the matching pending request.
type OutputEvent struct {
	Tensor      []byte
	Err         error
	UserContext any
}

type command struct {
	kind    Command
	payload InvokePayload
	reply   chan error
}

// Bridge owns one Transport-backed pipeline and its worker goroutine. It is
// built with Build (fallible, no goroutine yet) and only starts running
// after Start succeeds.
type Bridge struct {
	transport Transport
	cmds      chan command
	outputs   chan OutputEvent
	wg        sync.WaitGroup
	logger    zerolog.Logger
}

// Build validates the transport configuration without starting any
// goroutine or touching the network.
func Build(t Transport, logger zerolog.Logger) (*Bridge, error) {
	if err := t.validate(); err != nil {
		return nil, err
	}
	return &Bridge{
		transport: t,
		cmds:      make(chan command, 8),
		outputs:   make(chan OutputEvent, 32),
		logger:    logger.With().Str("component", component).Logger(),
	}, nil
}

// Start opens the transport and spawns the worker goroutine, blocking until
// the worker reports Ready (or fails to open).
func (b *Bridge) Start(ctx context.Context) error {
	ready := make(chan error, 1)
	b.wg.Add(1)
	go b.run(ctx, ready)
	return <-ready
}

func (b *Bridge) run(ctx context.Context, ready chan<- error) {
	defer b.wg.Done()

	conn, err := b.transport.open()
	if err != nil {
		ready <- err
		return
	}
	defer conn.Close()
	ready <- nil

	for {
		select {
		case <-ctx.Done():
			return
		case c := <-b.cmds:
			switch c.kind {
			case CommandInvoke:
				err := conn.writeTensor(c.payload.Tensor)
				if c.reply != nil {
					c.reply <- err
				}
				if err != nil {
					b.publish(OutputEvent{Err: err, UserContext: c.payload.UserContext})
					continue
				}
				go b.readOne(conn, c.payload.UserContext)
			case CommandStop, CommandExit:
				if c.reply != nil {
					c.reply <- nil
				}
				return
			}
		}
	}
}

func (b *Bridge) readOne(conn pipelineConn, userContext any) {
	tensor, err := conn.readTensor()
	b.publish(OutputEvent{Tensor: tensor, Err: err, UserContext: userContext})
}

func (b *Bridge) publish(ev OutputEvent) {
	select {
	case b.outputs <- ev:
	default:
		b.logger.Warn().Msg("output event dropped, channel full")
	}
}

// Outputs exposes the stream of decoded tensors / bus errors for the owning
// Peer Session to dequeue against its FIFO.
func (b *Bridge) Outputs() <-chan OutputEvent {
	return b.outputs
}

// Invoke is non-blocking from the caller's perspective: the tensor is handed
// to the worker's command channel and the reply is observed asynchronously
// via Outputs.
func (b *Bridge) Invoke(tensor []byte, userContext any) error {
	select {
	case b.cmds <- command{kind: CommandInvoke, payload: InvokePayload{Tensor: tensor, UserContext: userContext}}:
		return nil
	default:
		return berr.New(berr.TransportFault, component, "Invoke")
	}
}

// Stop halts the worker cooperatively and waits for it to exit.
func (b *Bridge) Stop() error {
	reply := make(chan error, 1)
	select {
	case b.cmds <- command{kind: CommandStop, reply: reply}:
	default:
		return berr.New(berr.SequenceError, component, "Stop")
	}
	err := <-reply
	b.wg.Wait()
	return err
}
