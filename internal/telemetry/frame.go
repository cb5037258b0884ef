// Package telemetry reports the board's signals to the controller over CAN
// and handles the controller's reset, data-request and parameter frames.
package telemetry

import (
	"encoding/binary"
	"errors"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// Message identifiers.
const (
	HeartbeatID   uint32 = 0x001
	ItlkBaseID    uint32 = 0x00F // + board id
	DataSendID    uint32 = 0x020
	ParamsSetID   uint32 = 0x030
	ResetID       uint32 = 0x040
	DataRequestID uint32 = 0x050

	// ParamsMask is the acceptance mask of the parameter-set filter.
	ParamsMask uint32 = 0xFFFFF
)

// MaxBoardID keeps ItlkBaseID+board clear of the other identifiers.
const MaxBoardID = 16

// FrameLen is the payload length of data, request and parameter frames.
const FrameLen = 8

const LayerNum = 2201

// LayerTypeIIB is the gopacket layer of an IIB data frame payload.
var LayerTypeIIB = gopacket.RegisterLayerType(LayerNum,
	gopacket.LayerTypeMetadata{Name: "IIB", Decoder: gopacket.DecodeFunc(decodeIIB)})

var ErrShortFrame = errors.New("telemetry: short frame")

// Layer is the 8-byte payload shared by every board frame:
//
//	[board, aux, index_lo, index_hi, value_le x4]
//
// Data frames carry aux=0 and the signal index; parameter frames carry the
// target in aux and the channel and field in the index bytes.
type Layer struct {
	layers.BaseLayer
	Board uint8
	Aux   uint8
	Index uint16
	Value uint32
}

// LayerType returns the type of the IIB layer in the layer catalog
func (l *Layer) LayerType() gopacket.LayerType {
	return LayerTypeIIB
}

func (l *Layer) CanDecode() gopacket.LayerClass {
	return LayerTypeIIB
}

func (l *Layer) NextLayerType() gopacket.LayerType {
	return gopacket.LayerTypeZero
}

// SerializeTo writes the 8-byte payload.
func (l *Layer) SerializeTo(b gopacket.SerializeBuffer, opts gopacket.SerializeOptions) error {
	bytes, err := b.AppendBytes(FrameLen)
	if err != nil {
		return err
	}
	bytes[0] = l.Board
	bytes[1] = l.Aux
	binary.LittleEndian.PutUint16(bytes[2:4], l.Index)
	binary.LittleEndian.PutUint32(bytes[4:8], l.Value)
	return nil
}

// DecodeFromBytes decodes a full 8-byte payload.
func (l *Layer) DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error {
	if len(data) < FrameLen {
		df.SetTruncated()
		return ErrShortFrame
	}
	l.BaseLayer = layers.BaseLayer{
		Contents: data[:FrameLen],
		Payload:  data[FrameLen:],
	}
	l.Board = data[0]
	l.Aux = data[1]
	l.Index = binary.LittleEndian.Uint16(data[2:4])
	l.Value = binary.LittleEndian.Uint32(data[4:8])
	return nil
}

func decodeIIB(data []byte, p gopacket.PacketBuilder) error {
	l := &Layer{}
	if err := l.DecodeFromBytes(data, p); err != nil {
		return err
	}
	p.AddLayer(l)
	return nil
}

// Encode serializes l into a fresh payload.
func Encode(l *Layer) ([]byte, error) {
	buf := gopacket.NewSerializeBuffer()
	if err := gopacket.SerializeLayers(buf, gopacket.SerializeOptions{}, l); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode parses a received payload.
func Decode(data []byte) (*Layer, error) {
	pkt := gopacket.NewPacket(data, LayerTypeIIB, gopacket.NoCopy)
	if el := pkt.ErrorLayer(); el != nil {
		return nil, el.Error()
	}
	l, ok := pkt.Layer(LayerTypeIIB).(*Layer)
	if !ok {
		return nil, ErrShortFrame
	}
	return l, nil
}
