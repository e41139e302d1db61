package session

import (
	"github.com/beyondnet/beyond/internal/berr"
	"github.com/beyondnet/beyond/internal/transport"
)

// TensorType enumerates the wire-level element types from §3.
type TensorType string

const (
	TensorInt8    TensorType = "int8"
	TensorUint8   TensorType = "uint8"
	TensorInt16   TensorType = "int16"
	TensorUint16  TensorType = "uint16"
	TensorInt32   TensorType = "int32"
	TensorUint32  TensorType = "uint32"
	TensorInt64   TensorType = "int64"
	TensorUint64  TensorType = "uint64"
	TensorFloat16 TensorType = "float16"
	TensorFloat32 TensorType = "float32"
)

// pipelineRank is the fixed tensor rank the external pipeline engine expects
// on the wire (§9's redesign flag: dims are a first-class, explicitly padded
// field rather than a switch over rank 1..4).
const pipelineRank = 4

// TensorInfo is the domain-level counterpart of transport.TensorInfoWire,
// with Dims normalised to 1..4 ordered positive entries.
type TensorInfo struct {
	Type TensorType
	Size int
	Name string
	Dims []int
}

func (t TensorInfo) validate() error {
	if len(t.Dims) < 1 || len(t.Dims) > pipelineRank {
		return berr.New(berr.InvalidArgument, component, "TensorInfo.validate")
	}
	for _, d := range t.Dims {
		if d <= 0 {
			return berr.New(berr.InvalidArgument, component, "TensorInfo.validate")
		}
	}
	return nil
}

// EncodeDims pads Dims to the pipeline engine's fixed rank with 1s (a
// trailing singleton dimension has no effect on element count), so the wire
// representation never needs a rank tag alongside it.
func (t TensorInfo) EncodeDims() ([pipelineRank]int, error) {
	var out [pipelineRank]int
	if err := t.validate(); err != nil {
		return out, err
	}
	for i := range out {
		out[i] = 1
	}
	copy(out[:], t.Dims)
	return out, nil
}

// ToWire converts to the transport envelope representation.
func (t TensorInfo) ToWire() transport.TensorInfoWire {
	return transport.TensorInfoWire{
		Type: string(t.Type),
		Size: t.Size,
		Name: t.Name,
		Dims: append([]int(nil), t.Dims...),
	}
}

// TensorInfoFromWire reconstructs a TensorInfo from the wire form, rejecting
// a dims slice outside the 1..4 bound from §3.
func TensorInfoFromWire(w transport.TensorInfoWire) (TensorInfo, error) {
	t := TensorInfo{
		Type: TensorType(w.Type),
		Size: w.Size,
		Name: w.Name,
		Dims: append([]int(nil), w.Dims...),
	}
	if err := t.validate(); err != nil {
		return TensorInfo{}, err
	}
	return t, nil
}
