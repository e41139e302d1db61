package credential

import (
	"github.com/rs/zerolog"
)

// Command names one of the six operations the async worker accepts.
type Command int

const (
	CommandGenerate Command = iota
	CommandCleanup
	CommandCrypto
	CommandGetKey
	CommandGenerateSign
	CommandVerifySign
)

type cryptoJob struct {
	encrypt bool
	id      KeyID
	data    []byte
	iv      []byte
}

type signJob struct {
	data []byte
}

type verifyJob struct {
	signature []byte
	data      []byte
}

type job struct {
	cmd     Command
	crypto  cryptoJob
	sign    signJob
	verify  verifyJob
	getKey  KeyID
	reply   chan error
}

// AsyncEngine wraps an Engine behind a single cooperative worker goroutine,
// per the async mode described in §4.6: the worker processes one command at
// a time from an in-process channel, and posts a tagged Event for every
// completed Prepare/Deactivate/Crypto operation. get_result and get_key stay
// synchronous reads, safe to call any time because only the worker goroutine
// ever mutates the wrapped Engine.
type AsyncEngine struct {
	engine *Engine
	jobs   chan job
	events chan Event
	quit   chan struct{}
	logger zerolog.Logger

	lastAuthentic bool
}

// NewAsyncEngine starts the worker goroutine and returns the wrapping
// AsyncEngine. The event channel has a small buffer so a slow consumer does
// not stall the worker indefinitely; events are dropped (not blocked on)
// once the buffer is full, matching "observe via event, don't rely on it."
func NewAsyncEngine(engine *Engine, logger zerolog.Logger) *AsyncEngine {
	a := &AsyncEngine{
		engine: engine,
		jobs:   make(chan job, 16),
		events: make(chan Event, 32),
		quit:   make(chan struct{}),
		logger: logger.With().Str("component", facadeComponent).Str("mode", "async").Logger(),
	}
	go a.run()
	return a
}

// Events returns the read side of the event channel.
func (a *AsyncEngine) Events() <-chan Event {
	return a.events
}

func (a *AsyncEngine) run() {
	for {
		select {
		case j := <-a.jobs:
			a.process(j)
		case <-a.quit:
			for {
				select {
				case j := <-a.jobs:
					a.process(j)
				default:
					return
				}
			}
		}
	}
}

func (a *AsyncEngine) process(j job) {
	switch j.cmd {
	case CommandGenerate:
		err := a.engine.Prepare()
		a.publish(err, EventPrepareDone, EventPrepareError)
		j.reply <- err

	case CommandCleanup:
		err := a.engine.Deactivate()
		a.publish(err, EventDeactivateDone, EventDeactivateError)
		j.reply <- err

	case CommandCrypto:
		var err error
		if j.crypto.encrypt {
			err = a.engine.Encrypt(j.crypto.id, j.crypto.data, j.crypto.iv)
		} else {
			err = a.engine.Decrypt(j.crypto.id, j.crypto.data, j.crypto.iv)
		}
		a.publish(err, EventCryptoDone, EventCryptoError)
		j.reply <- err

	case CommandGetKey:
		_, err := a.engine.GetKey(j.getKey)
		a.publish(err, EventCryptoDone, EventCryptoError)
		j.reply <- err

	case CommandGenerateSign:
		sig, err := a.engine.Sign(j.sign.data)
		if err == nil {
			a.engine.result = sig
		}
		a.publish(err, EventCryptoDone, EventCryptoError)
		j.reply <- err

	case CommandVerifySign:
		authentic, err := a.engine.Verify(j.verify.signature, j.verify.data)
		a.lastAuthentic = authentic
		a.publish(err, EventCryptoDone, EventCryptoError)
		j.reply <- err
	}
}

func (a *AsyncEngine) publish(err error, done, failed EventTag) {
	tag := done
	if err != nil {
		tag = failed
	}
	select {
	case a.events <- Event{Tag: tag, Err: err}:
	default:
		a.logger.Warn().Str("event", tag.String()).Msg("event channel full, dropping")
	}
}

func (a *AsyncEngine) submit(j job) error {
	j.reply = make(chan error, 1)
	a.jobs <- j
	return <-j.reply
}

// Generate enqueues a Prepare (key/cert/secret-key generation) command.
func (a *AsyncEngine) Generate() error {
	return a.submit(job{cmd: CommandGenerate})
}

// Cleanup enqueues a Deactivate command.
func (a *AsyncEngine) Cleanup() error {
	return a.submit(job{cmd: CommandCleanup})
}

// Encrypt enqueues an encrypt command.
func (a *AsyncEngine) Encrypt(id KeyID, data, iv []byte) error {
	return a.submit(job{cmd: CommandCrypto, crypto: cryptoJob{encrypt: true, id: id, data: data, iv: iv}})
}

// Decrypt enqueues a decrypt command.
func (a *AsyncEngine) Decrypt(id KeyID, data, iv []byte) error {
	return a.submit(job{cmd: CommandCrypto, crypto: cryptoJob{encrypt: false, id: id, data: data, iv: iv}})
}

// GetKeyAsync enqueues a GetKey command (the key material becomes available
// to the synchronous GetKey call once the command completes).
func (a *AsyncEngine) GetKeyAsync(id KeyID) error {
	return a.submit(job{cmd: CommandGetKey, getKey: id})
}

// Sign enqueues a sign command; the signature is retrieved via GetResult.
func (a *AsyncEngine) Sign(data []byte) error {
	return a.submit(job{cmd: CommandGenerateSign, sign: signJob{data: data}})
}

// Verify enqueues a verify command; the result is retrieved via Authentic.
func (a *AsyncEngine) Verify(signature, data []byte) error {
	return a.submit(job{cmd: CommandVerifySign, verify: verifyJob{signature: signature, data: data}})
}

// Authentic returns the boolean result of the most recent Verify command.
func (a *AsyncEngine) Authentic() bool {
	return a.lastAuthentic
}

// GetResult synchronously reads the most recent operation's result.
func (a *AsyncEngine) GetResult() ([]byte, error) {
	return a.engine.GetResult()
}

// GetKey synchronously reads key material named by id.
func (a *AsyncEngine) GetKey(id KeyID) ([]byte, error) {
	return a.engine.GetKey(id)
}

// Close stops the worker goroutine. Cooperative: the worker finishes every
// job already accepted on the channel before it exits. Close itself only
// signals the worker and returns without waiting for it to exit.
func (a *AsyncEngine) Close() {
	close(a.quit)
}
