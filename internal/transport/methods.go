package transport

// Method names the RPC service's methods, per §6's wire protocol table.
type Method string

const (
	MethodConfigure             Method = "Configure"
	MethodExchangeKey           Method = "ExchangeKey"
	MethodLoadModel             Method = "LoadModel"
	MethodUploadModel           Method = "UploadModel"
	MethodGetInputTensorInfo    Method = "GetInputTensorInfo"
	MethodSetInputTensorInfo    Method = "SetInputTensorInfo"
	MethodGetOutputTensorInfo   Method = "GetOutputTensorInfo"
	MethodSetOutputTensorInfo   Method = "SetOutputTensorInfo"
	MethodPrepare               Method = "Prepare"
	MethodStop                  Method = "Stop"
	MethodGetInfo               Method = "GetInfo"
)

// UploadChunkSize is the fixed chunk size for UploadModel streaming.
const UploadChunkSize = 4096

// Envelope wraps every RPC exchanged over the transport. Metadata is absent
// for ExchangeKey (§4.8: "for every RPC except ExchangeKey"). Payload holds
// the msgpack encoding of the method-specific request or response.
type Envelope struct {
	Method     Method  `msgpack:"method"`
	PeerID     string  `msgpack:"id,omitempty"`
	Nonce      uint64  `msgpack:"nonce,omitempty"`
	Payload    []byte  `msgpack:"payload"`
}

// Status is the RPC-level outcome code carried in every response envelope.
type Status int32

const (
	StatusOK Status = 0
)

// TensorInfoWire is the wire-level TensorInfo from §3.
type TensorInfoWire struct {
	Type string `msgpack:"type"`
	Size int    `msgpack:"size"`
	Name string `msgpack:"name"`
	Dims []int  `msgpack:"dims"`
}

type ConfigureRequest struct {
	InputType      string `msgpack:"input_type"`
	Preprocessing  string `msgpack:"preprocessing"`
	Postprocessing string `msgpack:"postprocessing"`
	Framework      string `msgpack:"framework"`
	Accel          string `msgpack:"accel"`
}

type StatusResponse struct {
	Status Status `msgpack:"status"`
}

type ExchangeKeyRequest struct {
	Key []byte `msgpack:"key"`
}

type ExchangeKeyResponse struct {
	Status Status `msgpack:"status"`
	ID     string `msgpack:"id"`
}

type LoadModelRequest struct {
	Filename string `msgpack:"filename"`
}

type UploadModelChunk struct {
	Content []byte `msgpack:"content"`
	Done    bool   `msgpack:"done"`
}

type TensorInfoResponse struct {
	Info   []TensorInfoWire `msgpack:"info"`
	Status Status           `msgpack:"status"`
}

type SetTensorInfoRequest struct {
	Info []TensorInfoWire `msgpack:"info"`
}

type PrepareResponse struct {
	RequestPort  int    `msgpack:"request_port"`
	ResponsePort int    `msgpack:"response_port"`
	Status       Status `msgpack:"status"`
}

type RuntimeInfo struct {
	Name    string   `msgpack:"name"`
	Devices []string `msgpack:"devices"`
}

type GetInfoResponse struct {
	Runtimes    []RuntimeInfo `msgpack:"runtimes"`
	FreeMemory  uint64        `msgpack:"free_memory"`
	FreeStorage uint64        `msgpack:"free_storage"`
	Status      Status        `msgpack:"status"`
}
