package session

import (
	"bytes"
	"crypto/rsa"
	"sync"

	"github.com/rs/zerolog"

	"github.com/beyondnet/beyond/internal/berr"
	"github.com/beyondnet/beyond/internal/credential"
	"github.com/beyondnet/beyond/internal/handshake"
	"github.com/beyondnet/beyond/internal/rpcauth"
	"github.com/beyondnet/beyond/internal/transport"
)

// InputConfig mirrors the Configure RPC's fields (§6).
type InputConfig struct {
	InputType      string
	Preprocessing  string
	Postprocessing string
	Framework      string
	Accel          string
}

// PipelineEndpoints is what Prepare hands back for the caller to build its
// local media/tensor pipeline against.
type PipelineEndpoints struct {
	RequestPort  int
	ResponsePort int
}

// Device is the client-side half of a Peer Session (C9): it owns the
// Credential Engine used to bootstrap the handshake, the RPC Client, and the
// session's FIFO request queue.
type Device struct {
	mu sync.Mutex

	state  State
	client *transport.Client
	engine *credential.Engine
	uuid   string
	logger zerolog.Logger

	caPublicKey *rsa.PublicKey

	inputConfig  *InputConfig
	queue        *RequestQueue
	peerID       string
	nonces       *rpcauth.ClientNonceTracker
	inputTensors  []TensorInfo
	outputTensors []TensorInfo
	endpoints     PipelineEndpoints
}

// NewDevice constructs an unconfigured Device bound to client and the
// Credential Engine used for ExchangeKey. uuid is the Device's own identity,
// checked bytewise by the Edge during the handshake.
func NewDevice(client *transport.Client, engine *credential.Engine, uuid string, logger zerolog.Logger) *Device {
	return &Device{
		state:  StateIdle,
		client: client,
		engine: engine,
		uuid:   uuid,
		queue:  NewRequestQueue(),
		logger: logger.With().Str("component", "session_device").Logger(),
	}
}

// SetCAPublicKey configures the public key used to seal the handshake
// credential. A nil key selects the spec's degenerate "insecure" literal
// path (see internal/handshake's documented limitation).
func (d *Device) SetCAPublicKey(pub *rsa.PublicKey) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.caPublicKey = pub
}

// Configure accepts input pipeline configuration in Idle, Configured or
// Activated state. Before Activate there is no peer_id to authenticate an
// RPC with, so the configuration is only recorded locally; once Activated it
// is also sent to the Edge as a Configure RPC.
func (d *Device) Configure(cfg InputConfig) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	next := StateConfigured
	if d.state == StateActivated {
		next = StateActivated
	}
	if _, err := transition(d.state, next); err != nil {
		return err
	}
	if next != StateActivated {
		d.inputConfig = &cfg
		d.state = next
		return nil
	}

	resp, err := d.client.Configure(transport.ConfigureRequest{
		InputType:      cfg.InputType,
		Preprocessing:  cfg.Preprocessing,
		Postprocessing: cfg.Postprocessing,
		Framework:      cfg.Framework,
		Accel:          cfg.Accel,
	})
	if err != nil {
		return err
	}
	if resp.Status != transport.StatusOK {
		return berr.New(berr.TransportFault, component, "Configure")
	}

	d.inputConfig = &cfg
	d.state = next
	return nil
}

// Activate performs the key-exchange handshake (§4.7) and moves the session
// into Activated.
func (d *Device) Activate() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	next, err := transition(d.state, StateActivated)
	if err != nil {
		return err
	}

	result, err := handshake.BuildExchangeKeyRequest(d.engine, d.uuid, d.caPublicKey)
	if err != nil {
		return err
	}

	resp, err := d.client.ExchangeKey(result.Ciphertext)
	if err != nil {
		return err
	}
	if resp.Status != transport.StatusOK {
		return berr.New(berr.AuthFault, component, "Activate")
	}

	d.peerID = resp.ID
	d.nonces = rpcauth.NewClientNonceTracker(result.Nonce)
	d.client.Bind(d.peerID, d.nonces)
	d.state = next
	return nil
}

// LoadModel attempts server-side LoadModel first; on NotFound it falls back
// to streaming the file via UploadModel in UploadChunkSize chunks.
func (d *Device) LoadModel(path string, openFile func(path string) ([]byte, error)) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != StateActivated {
		return berr.New(berr.SequenceError, component, "LoadModel")
	}

	resp, err := d.client.LoadModel(path)
	if err != nil {
		return err
	}
	if resp.Status == transport.StatusOK {
		return nil
	}
	if resp.Status != transport.Status(berr.NotFound.Errno()) {
		return berr.New(berr.TransportFault, component, "LoadModel")
	}

	content, err := openFile(path)
	if err != nil {
		return berr.Wrap(berr.NotFound, component, "LoadModel", err)
	}

	uploadResp, err := d.client.UploadModel(bytes.NewReader(content))
	if err != nil {
		return err
	}
	if uploadResp.Status != transport.StatusOK {
		return berr.New(berr.TransportFault, component, "LoadModel")
	}
	return nil
}

// GetInputTensorInfo returns the cached value if set, otherwise round-trips
// to the Edge.
func (d *Device) GetInputTensorInfo() ([]TensorInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.inputTensors != nil {
		return d.inputTensors, nil
	}
	resp, err := d.client.GetInputTensorInfo()
	if err != nil {
		return nil, err
	}
	if resp.Status != transport.StatusOK {
		return nil, berr.New(berr.TransportFault, component, "GetInputTensorInfo")
	}
	infos, err := fromWireList(resp.Info)
	if err != nil {
		return nil, err
	}
	d.inputTensors = infos
	return infos, nil
}

func (d *Device) SetInputTensorInfo(infos []TensorInfo) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	resp, err := d.client.SetInputTensorInfo(toWireList(infos))
	if err != nil {
		return err
	}
	if resp.Status != transport.StatusOK {
		return berr.New(berr.TransportFault, component, "SetInputTensorInfo")
	}
	d.inputTensors = infos
	return nil
}

func (d *Device) GetOutputTensorInfo() ([]TensorInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.outputTensors != nil {
		return d.outputTensors, nil
	}
	resp, err := d.client.GetOutputTensorInfo()
	if err != nil {
		return nil, err
	}
	if resp.Status != transport.StatusOK {
		return nil, berr.New(berr.TransportFault, component, "GetOutputTensorInfo")
	}
	infos, err := fromWireList(resp.Info)
	if err != nil {
		return nil, err
	}
	d.outputTensors = infos
	return infos, nil
}

func (d *Device) SetOutputTensorInfo(infos []TensorInfo) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	resp, err := d.client.SetOutputTensorInfo(toWireList(infos))
	if err != nil {
		return err
	}
	if resp.Status != transport.StatusOK {
		return berr.New(berr.TransportFault, component, "SetOutputTensorInfo")
	}
	d.outputTensors = infos
	return nil
}

// Prepare asks the Edge to build its side of the pipeline and returns the
// endpoints the caller should point its local pipeline builder at.
func (d *Device) Prepare() (PipelineEndpoints, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	next, err := transition(d.state, StatePrepared)
	if err != nil {
		return PipelineEndpoints{}, err
	}

	resp, err := d.client.Prepare()
	if err != nil {
		return PipelineEndpoints{}, err
	}
	if resp.Status != transport.StatusOK {
		return PipelineEndpoints{}, berr.New(berr.TransportFault, component, "Prepare")
	}

	d.endpoints = PipelineEndpoints{RequestPort: resp.RequestPort, ResponsePort: resp.ResponsePort}
	d.state = next
	return d.endpoints, nil
}

// Invoke enqueues a pending request and returns immediately; the caller's
// pipeline sink dequeues it via Queue() when output for it arrives.
func (d *Device) Invoke(userContext any) error {
	d.mu.Lock()
	state := d.state
	d.mu.Unlock()

	if state != StatePrepared && state != StateStreaming {
		return berr.New(berr.SequenceError, component, "Invoke")
	}

	d.mu.Lock()
	if d.state == StatePrepared {
		d.state = StateStreaming
	}
	d.mu.Unlock()

	d.queue.Push(PendingRequest{UserContext: userContext})
	return nil
}

// Queue exposes the session's FIFO for the pipeline bridge to dequeue from.
func (d *Device) Queue() *RequestQueue {
	return d.queue
}

// Stop halts the session; both local and remote pipeline resources are
// expected to be freed by the caller's pipeline bridge before Destroy.
func (d *Device) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	next, err := transition(d.state, StateStopped)
	if err != nil {
		return err
	}

	resp, err := d.client.Stop()
	if err != nil {
		return err
	}
	if resp.Status != transport.StatusOK {
		return berr.New(berr.TransportFault, component, "Stop")
	}

	d.state = next
	return nil
}

// Destroy releases the session. It is legal only from Stopped.
func (d *Device) Destroy() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	next, err := transition(d.state, StateDestroyed)
	if err != nil {
		return err
	}
	d.state = next
	return d.client.Close()
}

func (d *Device) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

func (d *Device) PeerID() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.peerID
}

func toWireList(infos []TensorInfo) []transport.TensorInfoWire {
	out := make([]transport.TensorInfoWire, len(infos))
	for i, info := range infos {
		out[i] = info.ToWire()
	}
	return out
}

func fromWireList(wire []transport.TensorInfoWire) ([]TensorInfo, error) {
	out := make([]TensorInfo, len(wire))
	for i, w := range wire {
		info, err := TensorInfoFromWire(w)
		if err != nil {
			return nil, err
		}
		out[i] = info
	}
	return out, nil
}
